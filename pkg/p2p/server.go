package p2p

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// HeartbeatInterval is how often live peers are pinged and asked for
// get_peers.
const HeartbeatInterval = 30 * time.Second

// DeadPeerTimeout is how long a peer may go quiet before it is marked
// dead and closed.
const DeadPeerTimeout = 120 * time.Second

// ProtocolVersion is advertised in the version handshake payload.
const ProtocolVersion = "decoin/1"

// PeerSet is the shared, mutation-serialized collection of live peers.
type PeerSet struct {
	mu    sync.RWMutex
	byID  map[string]*Peer
	nonce int64
}

// NewPeerSet constructs an empty PeerSet.
func NewPeerSet() *PeerSet {
	return &PeerSet{byID: make(map[string]*Peer)}
}

// Add registers a live peer under its address.
func (ps *PeerSet) Add(p *Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.byID[p.Addr] = p
}

// Remove drops a peer from the set.
func (ps *PeerSet) Remove(addr string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.byID, addr)
}

// Addresses returns every live peer's address.
func (ps *PeerSet) Addresses() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]string, 0, len(ps.byID))
	for addr := range ps.byID {
		out = append(out, addr)
	}
	return out
}

// All returns a snapshot slice of every live peer.
func (ps *PeerSet) All() []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]*Peer, 0, len(ps.byID))
	for _, p := range ps.byID {
		out = append(out, p)
	}
	return out
}

// Broadcast sends env to every live peer except the one at excludeAddr,
// flooding it out to every other known peer.
func (ps *PeerSet) Broadcast(env *Envelope, excludeAddr string) {
	for _, p := range ps.All() {
		if p.Addr == excludeAddr {
			continue
		}
		if err := p.Send(env); err != nil {
			log.WithError(err).WithField("peer", p.Addr).Debug("p2p: broadcast send failed")
		}
	}
}

// Server accepts inbound peer connections over a gorilla/mux-routed
// WebSocket upgrade endpoint, dials outbound ones, and runs the
// heartbeat/discovery loop.
type Server struct {
	NodeID     string
	Dispatcher *Dispatcher
	Peers      *PeerSet

	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer wires a Server around dispatcher, which must share the same
// Peers set.
func NewServer(nodeID string, dispatcher *Dispatcher) *Server {
	s := &Server{
		NodeID:     nodeID,
		Dispatcher: dispatcher,
		Peers:      dispatcher.Peers,
		upgrader:   websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		router:     mux.NewRouter(),
	}
	s.router.HandleFunc("/p2p", s.handleUpgrade)
	return s
}

// Handler exposes the mux.Router that serves the /p2p upgrade route,
// for mounting on an HTTP listener.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("p2p: upgrade failed")
		return
	}
	peer := NewPeer(r.RemoteAddr, conn)
	s.adopt(peer)

	if err := s.sendVersion(peer); err != nil {
		log.WithError(err).WithField("peer", peer.Addr).Warn("p2p: version send failed on accept")
	}
}

// Dial connects outward to addr's /p2p WebSocket endpoint and begins
// the handshake by sending version.
func (s *Server) Dial(addr string) error {
	url := "ws://" + addr + "/p2p"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return errors.Wrap(err, "p2p: dial peer")
	}
	peer := NewPeer(addr, conn)
	s.adopt(peer)
	return s.sendVersion(peer)
}

// sendVersion sends this node's version envelope to peer. Both the
// accept path (handleUpgrade) and the dial path (Dial) must send one:
// each side of a new connection announces itself immediately so the
// other can reply verack and kick off get_chain/get_validators sync.
func (s *Server) sendVersion(peer *Peer) error {
	version, _ := NewEnvelope(KindVersion, s.NodeID, VersionPayload{
		Version:     ProtocolVersion,
		NodeID:      s.NodeID,
		ChainHeight: s.Dispatcher.Chain.Len(),
		Services:    "full",
	})
	return peer.Send(version)
}

func (s *Server) adopt(peer *Peer) {
	s.Peers.Add(peer)
	go s.readLoop(peer)
}

func (s *Server) readLoop(peer *Peer) {
	defer func() {
		s.Peers.Remove(peer.Addr)
		_ = peer.Close()
	}()

	for {
		env, err := peer.Receive()
		if err != nil {
			log.WithError(err).WithField("peer", peer.Addr).Debug("p2p: peer read loop ending")
			return
		}
		s.Dispatcher.Handle(peer, env)
	}
}

// RunHeartbeat pings every live peer and requests get_peers every
// HeartbeatInterval, closing any peer idle past DeadPeerTimeout, until
// done is closed. Intended to run as its own goroutine.
func (s *Server) RunHeartbeat(done <-chan struct{}) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	var nonce int64
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			nonce++
			ping, _ := NewEnvelope(KindPing, s.NodeID, PingPayload{Nonce: nonce})
			getPeers, _ := NewEnvelope(KindGetPeers, s.NodeID, struct{}{})

			for _, p := range s.Peers.All() {
				if p.IdleFor() > DeadPeerTimeout {
					s.Peers.Remove(p.Addr)
					_ = p.Close()
					continue
				}
				_ = p.Send(ping)
				_ = p.Send(getPeers)
			}
		}
	}
}
