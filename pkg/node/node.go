// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package node is the top-level orchestrator: it wires the chain store,
// mempool, validator registry, hybrid consensus engine, P2P server, and
// event bus together, and runs the mining loop.
package node

import (
	"context"
	"strconv"
	"time"

	logrus "github.com/sirupsen/logrus"

	"decoin/pkg/config"
	"decoin/pkg/consensus"
	"decoin/pkg/core/block"
	"decoin/pkg/core/chain"
	"decoin/pkg/eventbus"
	applog "decoin/pkg/log"
	"decoin/pkg/mempool"
	"decoin/pkg/p2p"
)

// MiningTick is how often the orchestrator checks whether it is the
// elected producer for the current height.
const MiningTick = 2 * time.Second

// DefaultValidatorStake is the stake a node registers itself with when
// it first comes up as a validator.
const DefaultValidatorStake = 10000.0

// Node is the running process's wiring: every shared resource plus the
// goroutines that mutate them.
type Node struct {
	cfg      config.Config
	nodeID   string
	log      *logrus.Entry
	chain    *chain.Store
	registry *consensus.Registry
	engine   *consensus.Engine
	dispatcher *p2p.Dispatcher
	server   *p2p.Server
	events   *eventbus.Bus

	stopMining chan struct{}
}

// New wires a Node from cfg: opens (or creates) the chain database,
// bootstraps genesis if empty, constructs the validator registry and
// hybrid engine, and mounts the P2P dispatcher/server.
func New(cfg config.Config) (*Node, error) {
	nodeID := p2p.NodeID(cfg.Host + ":" + strconv.Itoa(cfg.Port))
	log := applog.WithNode(nodeID)

	var db *chain.Database
	if cfg.DBPath != "" {
		opened, err := chain.OpenDatabase(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		db = opened
	}

	pool := mempool.New(mempool.DefaultCapacity)
	store, err := chain.New(chain.Options{Mempool: pool, DB: db})
	if err != nil {
		return nil, err
	}

	registry := consensus.NewRegistry()
	engine := consensus.NewEngine(registry, 10*time.Second)

	peers := p2p.NewPeerSet()
	dispatcher := &p2p.Dispatcher{
		NodeID:     nodeID,
		Version:    p2p.ProtocolVersion,
		Chain:      store,
		Mempool:    pool,
		Admitter:   store,
		Validators: &registryAdapter{registry: registry},
		Peers:      peers,
	}
	server := p2p.NewServer(nodeID, dispatcher)
	events := eventbus.New()

	n := &Node{
		cfg:        cfg,
		nodeID:     nodeID,
		log:        log,
		chain:      store,
		registry:   registry,
		engine:     engine,
		dispatcher: dispatcher,
		server:     server,
		events:     events,
		stopMining: make(chan struct{}),
	}

	// Sealed blocks are published here rather than broadcast directly
	// from the mining loop, so the chain store and consensus engine
	// never need a reference to the P2P server.
	events.Subscribe(eventbus.TopicBlockAccepted, func(payload interface{}) {
		blk, ok := payload.(*block.Block)
		if !ok {
			return
		}
		env, err := p2p.NewEnvelope(p2p.KindNewBlock, nodeID, blk)
		if err != nil {
			return
		}
		peers.Broadcast(env, "")
	})

	if cfg.ValidatorAddress != "" {
		if err := registry.Register(cfg.ValidatorAddress, DefaultValidatorStake); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// Server returns the node's P2P server.
func (n *Node) Server() *p2p.Server { return n.server }

// Chain returns the node's chain store.
func (n *Node) Chain() *chain.Store { return n.chain }

// Registry returns the node's validator registry.
func (n *Node) Registry() *consensus.Registry { return n.registry }

// DialPeers connects outward to every address in cfg.InitialPeers,
// logging (not failing) on a dial error, peers come and go.
func (n *Node) DialPeers() {
	for _, addr := range n.cfg.InitialPeers {
		if err := n.server.Dial(addr); err != nil {
			n.log.WithError(err).WithField("peer", addr).Warn("node: initial peer dial failed")
		}
	}
}

// Start runs the heartbeat loop and, if configured as a validator, the
// mining loop, until ctx is canceled.
func (n *Node) Start(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(done)
	}()

	go n.server.RunHeartbeat(done)

	if n.cfg.MiningEnabled && n.cfg.ValidatorAddress != "" {
		go n.runMiningLoop(ctx)
	}
}

// Stop clears the mining flag; the loop observes it on its next wake
// cancellation model: the loop observes the flag on its next wake.
func (n *Node) Stop() {
	close(n.stopMining)
}

func (n *Node) runMiningLoop(ctx context.Context) {
	ticker := time.NewTicker(MiningTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopMining:
			return
		case <-ticker.C:
			n.tryMine(ctx)
		}
	}
}

// tryMine only attempts a seal if the mempool
// is non-empty and this node is the elected producer for the current
// height. The orchestrator must never seal blocks for heights it is
// not elected for.
func (n *Node) tryMine(ctx context.Context) {
	if n.chain.Mempool().Len() == 0 {
		return
	}

	height := n.chain.Len()
	elected, err := n.registry.SelectProducer(height)
	if err != nil {
		return
	}
	if elected.Address != n.cfg.ValidatorAddress {
		return
	}

	blk, err := n.chain.CreateBlock(n.cfg.ValidatorAddress)
	if err != nil {
		return
	}

	producer := n.registry.Get(n.cfg.ValidatorAddress)
	if err := n.engine.Seal(ctx, blk, producer); err != nil {
		n.log.WithError(err).Debug("node: seal attempt abandoned")
		return
	}

	if err := n.chain.AppendBlock(blk); err != nil {
		n.log.WithError(err).Warn("node: sealed block rejected on append")
		return
	}

	rewards := n.engine.CalculateRewards(n.chain.Len(), blk, n.cfg.ValidatorAddress)
	n.log.WithField("height", blk.Index).WithField("rewards", rewards.PerAddr).Info("node: sealed and appended block")

	n.events.Publish(eventbus.TopicBlockAccepted, blk)
}
