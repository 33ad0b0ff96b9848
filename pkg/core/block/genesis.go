package block

import "decoin/pkg/core/transactions"

// DefaultDifficulty is the number of required leading hex zeros a
// freshly bootstrapped chain starts with.
const DefaultDifficulty = 4

// Genesis builds and seals height-0 block: one synthetic
// genesis -> genesis transfer of amount 0, previous_hash "0".
func Genesis(timestamp float64, difficulty int) *Block {
	genesisTx := transactions.New(transactions.Standard, "genesis", "genesis", 0, timestamp, map[string]interface{}{
		"message": "decoin genesis block",
	}, "")

	b := &Block{
		Index:        0,
		Timestamp:    timestamp,
		Transactions: []*transactions.Transaction{genesisTx},
		PreviousHash: "0",
	}
	b.MineSimple(difficulty)
	return b
}
