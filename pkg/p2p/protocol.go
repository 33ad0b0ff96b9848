package p2p

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"decoin/pkg/core/block"
	"decoin/pkg/core/transactions"
)

// ChainSyncer is the subset of chain.Store the protocol dispatcher
// needs. Kept as a narrow interface (rather than importing pkg/core/chain
// directly) so pkg/node can wire concrete types without a p2p<->chain
// import cycle.
type ChainSyncer interface {
	Len() int64
	Snapshot() []*block.Block
	Blocks(start int64, count int) []*block.Block
	ReplaceChain(newBlocks []*block.Block) bool
	AppendBlock(blk *block.Block) error
}

// MempoolSyncer is the subset of mempool.Pool the protocol needs.
type MempoolSyncer interface {
	Take(n int) []*transactions.Transaction
	Has(txHash string) bool
}

// TransactionAdmitter validates and admits a transaction, satisfied
// by chain.Store.AppendTransaction.
type TransactionAdmitter interface {
	AppendTransaction(tx *transactions.Transaction) error
}

// ValidatorSyncer is the subset of consensus.Registry the protocol
// needs, expressed in p2p's own wire shapes to avoid a p2p<->consensus
// import cycle.
type ValidatorSyncer interface {
	ListValidators() []ValidatorEntry
	HasValidator(address string) bool
	RegisterValidator(address string, stake float64) bool
}

// mempoolRangeLimit and blockRangeLimit are the "first/clamped to 100"
// caps on range-style sync responses.
const (
	mempoolRangeLimit = 100
	blockRangeLimit   = 100
)

// Dispatcher wires an incoming Envelope to chain/mempool/validator
// state and to the peer set for re-broadcast.
type Dispatcher struct {
	NodeID     string
	Version    string
	Chain      ChainSyncer
	Mempool    MempoolSyncer
	Admitter   TransactionAdmitter
	Validators ValidatorSyncer
	Peers      *PeerSet
}

// Handle processes one envelope received from src. Unknown types are
// dropped silently.
func (d *Dispatcher) Handle(src *Peer, env *Envelope) {
	switch env.Type {
	case KindVersion:
		d.handleVersion(src, env)
	case KindVerack:
		src.MarkHandshaken()
	case KindPing:
		d.handlePing(src, env)
	case KindPong:
		// liveness already recorded by Peer.Touch on receive; the nonce
		// is not matched against the ping that carried it.
	case KindGetPeers:
		d.handleGetPeers(src)
	case KindPeers:
		// received peer addresses are not logged or dialed.
	case KindGetChain:
		d.handleGetChain(src)
	case KindChain:
		d.handleChain(src, env)
	case KindGetBlocks:
		d.handleGetBlocks(src, env)
	case KindBlocks:
		// range responses are informational; full chain sync drives adoption.
	case KindNewBlock:
		d.handleNewBlock(src, env)
	case KindNewTransaction:
		d.handleNewTransaction(src, env)
	case KindGetMempool:
		d.handleGetMempool(src)
	case KindMempool:
		d.handleMempool(src, env)
	case KindGetValidators:
		d.handleGetValidators(src)
	case KindValidatorList:
		d.handleValidatorList(src, env)
	case KindRegisterValidator:
		d.handleRegisterValidator(src, env)
	default:
		log.WithField("type", env.Type).Debug("p2p: dropping unknown message type")
	}
}

func (d *Dispatcher) handleVersion(src *Peer, env *Envelope) {
	var payload VersionPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	ack, _ := NewEnvelope(KindVerack, d.NodeID, VerackPayload{Accepted: true})
	_ = src.Send(ack)
	src.MarkHandshaken()

	getChain, _ := NewEnvelope(KindGetChain, d.NodeID, struct{}{})
	_ = src.Send(getChain)
	getValidators, _ := NewEnvelope(KindGetValidators, d.NodeID, struct{}{})
	_ = src.Send(getValidators)
}

func (d *Dispatcher) handlePing(src *Peer, env *Envelope) {
	var payload PingPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	pong, _ := NewEnvelope(KindPong, d.NodeID, PongPayload{Nonce: payload.Nonce})
	_ = src.Send(pong)
}

func (d *Dispatcher) handleGetPeers(src *Peer) {
	peers, _ := NewEnvelope(KindPeers, d.NodeID, PeersPayload{Peers: d.Peers.Addresses()})
	_ = src.Send(peers)
}

func (d *Dispatcher) handleGetChain(src *Peer) {
	chain, _ := NewEnvelope(KindChain, d.NodeID, d.Chain.Snapshot())
	_ = src.Send(chain)
}

func (d *Dispatcher) handleChain(src *Peer, env *Envelope) {
	var blocks []*block.Block
	if err := json.Unmarshal(env.Data, &blocks); err != nil {
		return
	}
	if d.Chain.ReplaceChain(blocks) {
		log.WithField("peer", src.Addr).WithField("height", len(blocks)).
			Info("p2p: adopted longer chain from peer")
	}
}

func (d *Dispatcher) handleGetBlocks(src *Peer, env *Envelope) {
	var req GetBlocksPayload
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return
	}
	if req.Count > blockRangeLimit {
		req.Count = blockRangeLimit
	}
	blocks := d.Chain.Blocks(req.StartIndex, req.Count)
	resp, _ := NewEnvelope(KindBlocks, d.NodeID, struct {
		Blocks []*block.Block `json:"blocks"`
	}{Blocks: blocks})
	_ = src.Send(resp)
}

func (d *Dispatcher) handleNewBlock(src *Peer, env *Envelope) {
	var blk block.Block
	if err := json.Unmarshal(env.Data, &blk); err != nil {
		return
	}
	if err := d.Chain.AppendBlock(&blk); err != nil {
		// a block whose index already exists (or otherwise fails to
		// append) is rejected, not retried, loop safety by identity.
		return
	}
	d.Peers.Broadcast(env, src.Addr)
}

func (d *Dispatcher) handleNewTransaction(src *Peer, env *Envelope) {
	var tx transactions.Transaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return
	}
	if d.Mempool.Has(tx.TxHash) {
		return // already present: silently dropped (loop safety)
	}
	if err := d.Admitter.AppendTransaction(&tx); err != nil {
		return
	}
	d.Peers.Broadcast(env, src.Addr)
}

func (d *Dispatcher) handleGetMempool(src *Peer) {
	txs := d.Mempool.Take(mempoolRangeLimit)
	resp, _ := NewEnvelope(KindMempool, d.NodeID, struct {
		Transactions []*transactions.Transaction `json:"transactions"`
	}{Transactions: txs})
	_ = src.Send(resp)
}

func (d *Dispatcher) handleMempool(src *Peer, env *Envelope) {
	var payload struct {
		Transactions []*transactions.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	for _, tx := range payload.Transactions {
		if d.Mempool.Has(tx.TxHash) {
			continue
		}
		_ = d.Admitter.AppendTransaction(tx)
	}
}

func (d *Dispatcher) handleGetValidators(src *Peer) {
	resp, _ := NewEnvelope(KindValidatorList, d.NodeID, ValidatorListPayload{
		Validators: d.Validators.ListValidators(),
	})
	_ = src.Send(resp)
}

func (d *Dispatcher) handleValidatorList(src *Peer, env *Envelope) {
	var payload ValidatorListPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	for _, v := range payload.Validators {
		if d.Validators.HasValidator(v.Address) {
			continue // stake is not merged on sync, to avoid double-counting
		}
		d.Validators.RegisterValidator(v.Address, v.Stake)
	}
}

func (d *Dispatcher) handleRegisterValidator(src *Peer, env *Envelope) {
	var payload RegisterValidatorPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	if d.Validators.HasValidator(payload.Address) {
		return
	}
	if d.Validators.RegisterValidator(payload.Address, payload.Stake) {
		d.Peers.Broadcast(env, src.Addr)
	}
}
