package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"decoin/pkg/core/block"
	"decoin/pkg/core/transactions"
	"decoin/pkg/mempool"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T) *Store {
	s, err := New(Options{
		Mempool:    mempool.New(10),
		Clock:      fixedClock(time.Unix(1_700_000_000, 0)),
		Difficulty: 1,
	})
	require.NoError(t, err)
	return s
}

func TestGenesisBootstrap(t *testing.T) {
	s := newTestStore(t)
	require.EqualValues(t, 1, s.Len())
	require.Equal(t, "0", s.Tip().PreviousHash)
	require.True(t, s.ValidateChain())
}

func TestAppendTransactionThenCreateAndAppendBlock(t *testing.T) {
	s := newTestStore(t)

	tx := transactions.New(transactions.Standard, "alice", "bob", 10, 1_700_000_001, map[string]interface{}{
		"fee": 0.01,
	}, "")
	require.NoError(t, s.AppendTransaction(tx))
	require.Equal(t, 1, s.Mempool().Len())

	blk, err := s.CreateBlock("validator-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, blk.Index)
	require.Equal(t, s.Tip().BlockHash, blk.PreviousHash)

	blk.MineSimple(blk.Difficulty)
	require.NoError(t, s.AppendBlock(blk))

	require.EqualValues(t, 2, s.Len())
	require.Equal(t, 0, s.Mempool().Len())
	require.True(t, s.ValidateChain())

	require.Equal(t, float64(-10), s.BalanceOf("alice"))
	require.Equal(t, float64(10), s.BalanceOf("bob"))
}

func TestAppendBlockRejectsWrongIndex(t *testing.T) {
	s := newTestStore(t)

	tx := transactions.New(transactions.Standard, "alice", "bob", 1, 1_700_000_001, nil, "")
	require.NoError(t, s.AppendTransaction(tx))
	blk, err := s.CreateBlock("validator-1")
	require.NoError(t, err)
	blk.Index = 5
	blk.MineSimple(blk.Difficulty)

	require.ErrorIs(t, s.AppendBlock(blk), ErrWrongIndex)
}

func TestAppendBlockRejectsBrokenLink(t *testing.T) {
	s := newTestStore(t)

	tx := transactions.New(transactions.Standard, "alice", "bob", 1, 1_700_000_001, nil, "")
	require.NoError(t, s.AppendTransaction(tx))
	blk, err := s.CreateBlock("validator-1")
	require.NoError(t, err)
	blk.PreviousHash = "not-the-tip"
	blk.MineSimple(blk.Difficulty)

	require.ErrorIs(t, s.AppendBlock(blk), ErrBrokenLink)
}

func TestAppendBlockRejectsInsufficientWork(t *testing.T) {
	s := newTestStore(t)

	tx := transactions.New(transactions.Standard, "alice", "bob", 1, 1_700_000_001, nil, "")
	require.NoError(t, s.AppendTransaction(tx))
	blk, err := s.CreateBlock("validator-1")
	require.NoError(t, err)
	blk.Difficulty = 10
	s.SetDifficulty(10) // AppendBlock checks the chain's difficulty
	blk.Seal()          // seal without mining: won't satisfy 10 leading zeros

	require.ErrorIs(t, s.AppendBlock(blk), ErrInsufficientWork)
}

func TestReplaceChainAdoptsLongerValidChain(t *testing.T) {
	s := newTestStore(t)

	longer := []*block.Block{s.Tip()}
	next := &block.Block{
		Index:        1,
		Timestamp:    1_700_000_002,
		PreviousHash: s.Tip().BlockHash,
		Difficulty:   1,
		Validator:    "validator-2",
	}
	next.MineSimple(next.Difficulty)
	longer = append(longer, next)

	require.True(t, s.ReplaceChain(longer))
	require.EqualValues(t, 2, s.Len())
}

func TestReplaceChainRejectsShorterChain(t *testing.T) {
	s := newTestStore(t)
	require.False(t, s.ReplaceChain([]*block.Block{s.Tip()}))
}
