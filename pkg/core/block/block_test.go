package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"decoin/pkg/core/transactions"
)

func TestGenesisInvariants(t *testing.T) {
	g := Genesis(1_700_000_000, DefaultDifficulty)

	require.EqualValues(t, 0, g.Index)
	require.Equal(t, "0", g.PreviousHash)
	require.Len(t, g.Transactions, 1)
	require.Equal(t, "genesis", g.Transactions[0].Sender)
	require.Equal(t, "genesis", g.Transactions[0].Recipient)
	require.Equal(t, 0.0, g.Transactions[0].Amount)
	require.True(t, HasRequiredZeros(g.BlockHash, DefaultDifficulty))
	require.Equal(t, g.ComputeHash(), g.BlockHash)
	require.Equal(t, g.ComputeMerkleRoot(), g.MerkleRoot)
}

func TestBlockHashRecomputesExactly(t *testing.T) {
	tx := transactions.New(transactions.Standard, "alice", "bob", 10, 1000, nil, "")
	b := &Block{
		Index:        1,
		Timestamp:    1000,
		Transactions: []*transactions.Transaction{tx},
		PreviousHash: "deadbeef",
		Difficulty:   1,
		Validator:    "v1",
		StakeWeight:  0.7,
		WorkWeight:   0.3,
	}
	b.Seal()

	require.Equal(t, b.ComputeHash(), b.BlockHash)
	require.Equal(t, b.ComputeMerkleRoot(), b.MerkleRoot)
}

func TestLeadingZeros(t *testing.T) {
	require.Equal(t, 3, LeadingZeros("000abc"))
	require.Equal(t, 0, LeadingZeros("abc"))
	require.True(t, HasRequiredZeros("000abc", 3))
	require.False(t, HasRequiredZeros("000abc", 4))
}
