package p2p

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrPeerClosed is returned by Send once a peer's connection is closed.
var ErrPeerClosed = errors.New("p2p: peer connection closed")

// Peer wraps one live WebSocket connection. Writes are serialized
// through writeMu since gorilla/websocket forbids concurrent writers on
// a single *websocket.Conn.
type Peer struct {
	Addr string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu         sync.RWMutex
	lastSeen   time.Time
	closed     bool
	handshaken bool
}

// NewPeer wraps conn, recording addr as the peer's dial/remote address.
func NewPeer(addr string, conn *websocket.Conn) *Peer {
	return &Peer{Addr: addr, conn: conn, lastSeen: time.Now()}
}

// Send writes env as a single WebSocket text frame.
func (p *Peer) Send(env *Envelope) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.Closed() {
		return ErrPeerClosed
	}
	if err := p.conn.WriteJSON(env); err != nil {
		return errors.Wrap(err, "p2p: write envelope")
	}
	return nil
}

// Receive blocks for the next envelope. Unknown types are left to the
// caller to drop.
func (p *Peer) Receive() (*Envelope, error) {
	var env Envelope
	if err := p.conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	p.Touch()
	return &env, nil
}

// Touch marks the peer as having produced traffic just now.
func (p *Peer) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = time.Now()
}

// IdleFor reports how long it has been since the peer's last traffic.
func (p *Peer) IdleFor() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.lastSeen)
}

// MarkHandshaken records that the version/verack exchange completed.
func (p *Peer) MarkHandshaken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handshaken = true
}

// Handshaken reports whether the peer completed version/verack.
func (p *Peer) Handshaken() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handshaken
}

// Close shuts down the underlying connection, safe to call more than once.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	log.WithField("peer", p.Addr).Debug("p2p: closing peer connection")
	return p.conn.Close()
}

// Closed reports whether Close has been called on this peer.
func (p *Peer) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
