package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"decoin/pkg/core/transactions"
)

func withFee(fee float64) *transactions.Transaction {
	return transactions.New(transactions.Standard, "alice", "bob", 1, float64(fee*1000+1), map[string]interface{}{
		"fee": fee,
	}, "")
}

func TestAddRejectsDuplicate(t *testing.T) {
	p := New(10)
	tx := withFee(0.01)
	require.NoError(t, p.Add(tx))
	require.ErrorIs(t, p.Add(tx), ErrDuplicate)
	require.Equal(t, 1, p.Len())
}

func TestAddRejectsAtCapacity(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Add(withFee(0.01)))
	require.ErrorIs(t, p.Add(withFee(0.02)), ErrFull)
}

func TestFeeDescendingOrder(t *testing.T) {
	p := New(10)
	a := withFee(0.01)
	b := withFee(0.005)
	c := withFee(0.02)

	require.NoError(t, p.Add(a))
	require.NoError(t, p.Add(b))
	require.NoError(t, p.Add(c))

	got := p.Take(3)
	require.Len(t, got, 3)
	require.Equal(t, c.TxHash, got[0].TxHash)
	require.Equal(t, a.TxHash, got[1].TxHash)
	require.Equal(t, b.TxHash, got[2].TxHash)
}

func TestTakeDoesNotRemove(t *testing.T) {
	p := New(10)
	tx := withFee(0.01)
	require.NoError(t, p.Add(tx))
	p.Take(1)
	require.Equal(t, 1, p.Len())
}

func TestEvictRemovesIncluded(t *testing.T) {
	p := New(10)
	a := withFee(0.01)
	b := withFee(0.02)
	require.NoError(t, p.Add(a))
	require.NoError(t, p.Add(b))

	p.Evict([]string{a.TxHash})
	require.Equal(t, 1, p.Len())
	require.False(t, p.Has(a.TxHash))
	require.True(t, p.Has(b.TxHash))
}

func TestTiesBrokenByInsertionOrder(t *testing.T) {
	p := New(10)
	first := transactions.New(transactions.Standard, "alice", "bob", 1, 1, nil, "")
	second := transactions.New(transactions.Standard, "alice", "bob", 2, 2, nil, "")

	require.NoError(t, p.Add(first))
	require.NoError(t, p.Add(second))

	got := p.Take(2)
	require.Equal(t, first.TxHash, got[0].TxHash)
	require.Equal(t, second.TxHash, got[1].TxHash)
}
