// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package chain is the ordered, append-only sequence of sealed blocks:
// genesis bootstrap, chain-extension rules, whole-chain validation, and
// full-history balance derivation.
package chain

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"decoin/pkg/core/block"
	"decoin/pkg/mempool"
	"decoin/pkg/core/transactions"
)

var (
	// ErrWrongIndex is returned when a block's index isn't chain length.
	ErrWrongIndex = errors.New("chain: block index does not match chain length")
	// ErrBrokenLink is returned when previous_hash doesn't match the tip.
	ErrBrokenLink = errors.New("chain: previous_hash does not match tip")
	// ErrMerkleMismatch is returned when merkle_root or block_hash doesn't recompute.
	ErrMerkleMismatch = errors.New("chain: merkle_root does not recompute")
	// ErrInsufficientWork is returned when block_hash lacks required zeros.
	ErrInsufficientWork = errors.New("chain: block_hash does not satisfy difficulty")
	// ErrInvalidTransaction is returned when a contained transaction fails revalidation.
	ErrInvalidTransaction = errors.New("chain: contained transaction fails revalidation")
	// ErrEmptyMempool is returned by CreateBlock when there is nothing to include.
	ErrEmptyMempool = errors.New("chain: mempool is empty")
)

// Store is the shared, mutation-serialized chain state. Known hazard
// (preserved): ValidateChain checks historical blocks against the
// *current* difficulty, so a retarget can retroactively fail blocks
// that were valid when sealed.
type Store struct {
	mu         sync.RWMutex
	blocks     []*block.Block
	difficulty int
	mempool    *mempool.Pool
	db         *Database
	clock      func() time.Time
}

// Options configures a new Store.
type Options struct {
	Mempool    *mempool.Pool
	DB         *Database
	Clock      func() time.Time
	Difficulty int // used only when bootstrapping a fresh chain
}

// New bootstraps a Store: loads persisted blocks from DB if present and
// non-empty, otherwise mines and appends the genesis block.
func New(opts Options) (*Store, error) {
	if opts.Mempool == nil {
		opts.Mempool = mempool.New(mempool.DefaultCapacity)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Difficulty <= 0 {
		opts.Difficulty = block.DefaultDifficulty
	}

	s := &Store{
		mempool:    opts.Mempool,
		db:         opts.DB,
		clock:      opts.Clock,
		difficulty: opts.Difficulty,
	}

	loaded, err := opts.DB.LoadChain()
	if err != nil {
		return nil, err
	}

	if len(loaded) > 0 {
		s.blocks = loaded
		s.difficulty = loaded[len(loaded)-1].Difficulty
		return s, nil
	}

	genesis := block.Genesis(float64(s.clock().UnixNano())/1e9, opts.Difficulty)
	s.blocks = []*block.Block{genesis}
	if err := s.db.WriteBlock(genesis); err != nil {
		return nil, err
	}
	return s, nil
}

// Mempool exposes the store's pending-transaction pool.
func (s *Store) Mempool() *mempool.Pool { return s.mempool }

// Tip returns the most recently appended block.
func (s *Store) Tip() *block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks[len(s.blocks)-1]
}

// Len returns the chain length (height of tip + 1).
func (s *Store) Len() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.blocks))
}

// Difficulty returns the chain's current required leading-zero count.
func (s *Store) Difficulty() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.difficulty
}

// SetDifficulty is called by the consensus engine's retarget step.
func (s *Store) SetDifficulty(d int) {
	if d < 1 {
		d = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.difficulty = d
}

// BlockAt returns the block at the given height, or nil if out of range.
func (s *Store) BlockAt(index int64) *block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= int64(len(s.blocks)) {
		return nil
	}
	return s.blocks[index]
}

// Blocks returns up to count blocks starting at start, clamped to 100
// per get_blocks message.
func (s *Store) Blocks(start int64, count int) []*block.Block {
	const maxRange = 100
	if count > maxRange {
		count = maxRange
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if start < 0 || start >= int64(len(s.blocks)) || count <= 0 {
		return nil
	}
	end := start + int64(count)
	if end > int64(len(s.blocks)) {
		end = int64(len(s.blocks))
	}
	out := make([]*block.Block, end-start)
	copy(out, s.blocks[start:end])
	return out
}

// AppendTransaction admits tx to the mempool iff it passes the
// type-independent and per-variant rules of transactions.Validate. It
// does not check sender balance (Non-goal, preserved).
func (s *Store) AppendTransaction(tx *transactions.Transaction) error {
	if err := transactions.Validate(tx, s.clock()); err != nil {
		return err
	}
	return s.mempool.Add(tx)
}

// CreateBlock assembles an unsealed block from up to 100 mempool
// entries in fee-descending order. Returns ErrEmptyMempool if there is
// nothing pending.
func (s *Store) CreateBlock(producer string) (*block.Block, error) {
	txs := s.mempool.Take(block.MaxTransactionsPerBlock)
	if len(txs) == 0 {
		return nil, ErrEmptyMempool
	}

	s.mu.RLock()
	tip := s.blocks[len(s.blocks)-1]
	index := int64(len(s.blocks))
	difficulty := s.difficulty
	s.mu.RUnlock()

	return &block.Block{
		Index:        index,
		Timestamp:    float64(s.clock().UnixNano()) / 1e9,
		Transactions: txs,
		PreviousHash: tip.BlockHash,
		Difficulty:   difficulty,
		Validator:    producer,
	}, nil
}

// AppendBlock enforces the chain-extension rules and,
// on success, appends blk and evicts its transactions from the mempool.
func (s *Store) AppendBlock(blk *block.Block) error {
	s.mu.Lock()
	tip := s.blocks[len(s.blocks)-1]
	wantIndex := int64(len(s.blocks))
	difficulty := s.difficulty
	s.mu.Unlock()

	if blk.Index != wantIndex {
		return ErrWrongIndex
	}
	if blk.PreviousHash != tip.BlockHash {
		return ErrBrokenLink
	}
	if blk.ComputeMerkleRoot() != blk.MerkleRoot {
		return ErrMerkleMismatch
	}
	if blk.ComputeHash() != blk.BlockHash {
		return ErrMerkleMismatch
	}
	if !block.HasRequiredZeros(blk.BlockHash, difficulty) {
		return ErrInsufficientWork
	}
	for _, tx := range blk.Transactions {
		if err := transactions.Validate(tx, s.clock()); err != nil {
			return errors.Wrap(ErrInvalidTransaction, err.Error())
		}
	}

	s.mu.Lock()
	s.blocks = append(s.blocks, blk)
	s.mu.Unlock()

	if err := s.db.WriteBlock(blk); err != nil {
		return err
	}

	hashes := make([]string, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		hashes[i] = tx.TxHash
	}
	s.mempool.Evict(hashes)
	return nil
}

// ReplaceChain adopts newBlocks wholesale if longer than the current
// chain and link/hash-valid, and writes the adopted blocks to the
// database (this does not verify difficulty-at-tip or transaction
// admissibility, known attack surface, preserved).
func (s *Store) ReplaceChain(newBlocks []*block.Block) bool {
	s.mu.RLock()
	longer := len(newBlocks) > len(s.blocks)
	s.mu.RUnlock()
	if !longer {
		return false
	}
	if !validateLinks(newBlocks) {
		return false
	}

	s.mu.Lock()
	s.blocks = newBlocks
	if len(newBlocks) > 0 {
		s.difficulty = newBlocks[len(newBlocks)-1].Difficulty
	}
	s.mu.Unlock()

	for _, blk := range newBlocks {
		if err := s.db.WriteBlock(blk); err != nil {
			break
		}
	}
	return true
}

func validateLinks(blocks []*block.Block) bool {
	for i := 1; i < len(blocks); i++ {
		if blocks[i].PreviousHash != blocks[i-1].BlockHash {
			return false
		}
		if blocks[i].ComputeHash() != blocks[i].BlockHash {
			return false
		}
	}
	return true
}

// ValidateChain walks the whole chain re-checking link, recomputed
// hash, and the difficulty predicate against the *current* difficulty,
// not the difficulty in effect when each block was sealed. A retarget
// can retroactively fail blocks that were valid at append time; this is
// a known, deliberately preserved hazard, not a bug to fix here.
func (s *Store) ValidateChain() bool {
	s.mu.RLock()
	blocks := make([]*block.Block, len(s.blocks))
	copy(blocks, s.blocks)
	difficulty := s.difficulty
	s.mu.RUnlock()

	for i := 1; i < len(blocks); i++ {
		if blocks[i].PreviousHash != blocks[i-1].BlockHash {
			return false
		}
		if blocks[i].ComputeHash() != blocks[i].BlockHash {
			return false
		}
		if !block.HasRequiredZeros(blocks[i].BlockHash, difficulty) {
			return false
		}
	}
	return true
}

// BalanceOf is a full scan over every block and transaction: senders
// are debited, recipients credited. Fees are not deducted (Non-goal,
// preserved) and, since nothing checks sender balance at admission,
// overdrafts are possible.
func (s *Store) BalanceOf(address string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance float64
	for _, blk := range s.blocks {
		for _, tx := range blk.Transactions {
			if tx.Sender == address {
				balance -= tx.Amount
			}
			if tx.Recipient == address {
				balance += tx.Amount
			}
		}
	}
	return balance
}

// Snapshot returns a shallow copy of the current chain, used by the P2P
// layer to serve get_chain / chain responses.
func (s *Store) Snapshot() []*block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*block.Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}
