// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package mempool holds admitted, not-yet-included transactions keyed
// by tx_hash, ordered by descending metadata.fee with ties broken by
// admission order.
package mempool

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"decoin/pkg/core/transactions"
)

// DefaultCapacity is the pool's default entry limit.
const DefaultCapacity = 10000

// ErrDuplicate is returned by Add when tx_hash is already present.
var ErrDuplicate = errors.New("mempool: duplicate tx_hash")

// ErrFull is returned by Add when the pool is at capacity.
var ErrFull = errors.New("mempool: at capacity")

type entry struct {
	tx  *transactions.Transaction
	seq uint64
}

// Pool is a capacity-bounded, deduplicated set of pending transactions.
type Pool struct {
	mu       sync.Mutex
	capacity int
	byHash   map[string]*entry
	order    []*entry
	nextSeq  uint64
}

// New constructs a Pool with the given capacity. A capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		byHash:   make(map[string]*entry),
	}
}

// Add admits tx, failing on capacity or duplicate tx_hash.
func (p *Pool) Add(tx *transactions.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[tx.TxHash]; exists {
		return ErrDuplicate
	}
	if len(p.order) >= p.capacity {
		return ErrFull
	}

	e := &entry{tx: tx, seq: p.nextSeq}
	p.nextSeq++
	p.byHash[tx.TxHash] = e
	p.order = append(p.order, e)
	p.resort()
	return nil
}

// Remove removes and returns the transaction with the given hash, or
// nil if absent.
func (p *Pool) Remove(txHash string) *transactions.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash string) *transactions.Transaction {
	e, ok := p.byHash[txHash]
	if !ok {
		return nil
	}
	delete(p.byHash, txHash)
	for i, o := range p.order {
		if o == e {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return e.tx
}

// Evict removes every transaction in txHashes, ignoring hashes not
// present. Used by the chain store after a block append.
func (p *Pool) Evict(txHashes []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range txHashes {
		p.removeLocked(h)
	}
}

// Take returns up to n pending transactions in the pool's current
// fee-descending order, without removing them.
func (p *Pool) Take(n int) []*transactions.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > len(p.order) {
		n = len(p.order)
	}
	out := make([]*transactions.Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = p.order[i].tx
	}
	return out
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Has reports whether txHash is currently pending.
func (p *Pool) Has(txHash string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byHash[txHash]
	return ok
}

// resort re-sorts p.order by descending fee, ties broken by admission
// sequence. Must be called with p.mu held.
func (p *Pool) resort() {
	sort.SliceStable(p.order, func(i, j int) bool {
		fi, fj := p.order[i].tx.Fee(), p.order[j].tx.Fee()
		if fi != fj {
			return fi > fj
		}
		return p.order[i].seq < p.order[j].seq
	})
}
