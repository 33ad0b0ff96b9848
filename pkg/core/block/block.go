// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package block defines the sealed-block data model: header fields,
// the derived Merkle root and block hash, and the simple (non-hybrid)
// proof-of-work grind used only to seal the genesis block.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"decoin/pkg/core/merkle"
	"decoin/pkg/core/transactions"
)

// Block is one sealed entry in the chain.
type Block struct {
	Index        int64                       `json:"index"`
	Timestamp    float64                      `json:"timestamp"`
	Transactions []*transactions.Transaction  `json:"transactions"`
	PreviousHash string                       `json:"previous_hash"`
	Nonce        uint64                       `json:"nonce"`
	Difficulty   int                          `json:"difficulty"`
	MerkleRoot   string                       `json:"merkle_root"`
	Validator    string                       `json:"validator,omitempty"`
	StakeWeight  float64                      `json:"stake_weight"`
	WorkWeight   float64                      `json:"work_weight"`
	BlockHash    string                       `json:"block_hash"`
}

// MaxTransactionsPerBlock bounds how many mempool entries create_block
// (chain.Store.CreateBlock) pulls into a single block.
const MaxTransactionsPerBlock = 100

// ComputeMerkleRoot recomputes the Merkle root over the block's
// transactions in order.
func (b *Block) ComputeMerkleRoot() string {
	leaves := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		leaves[i] = tx.TxHash
	}
	return merkle.Root(leaves)
}

// ComputeHash is the SHA-256 of canonical JSON over the block header
// sealed fields (the "seal hash"). As with Transaction's
// hash, building the input as a map lets encoding/json's key-sorting
// give canonical ordering.
func (b *Block) ComputeHash() string {
	canonical := map[string]interface{}{
		"index":         b.Index,
		"timestamp":     b.Timestamp,
		"merkle_root":   b.MerkleRoot,
		"previous_hash": b.PreviousHash,
		"nonce":         b.Nonce,
		"difficulty":    b.Difficulty,
		"validator":     b.Validator,
		"stake_weight":  b.StakeWeight,
		"work_weight":   b.WorkWeight,
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// HasRequiredZeros reports whether hash has at least n leading hex zeros.
func HasRequiredZeros(hash string, n int) bool {
	if n <= 0 {
		return true
	}
	if n > len(hash) {
		return false
	}
	return strings.Count(hash[:n], "0") == n
}

// LeadingZeros counts the hex-character zero prefix length of hash.
func LeadingZeros(hash string) int {
	return len(hash) - len(strings.TrimLeft(hash, "0"))
}

// Seal fills in MerkleRoot and BlockHash from the block's current
// fields. Callers mutate Nonce (and, for sealed blocks, Validator /
// StakeWeight / WorkWeight) between calls.
func (b *Block) Seal() {
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.BlockHash = b.ComputeHash()
}

// MineSimple grinds Nonce upward until BlockHash satisfies difficulty
// leading hex zeros, with no stake/work hybrid check. It is used only
// to produce the genesis block, mirroring blockchain.py's
// Block.mine_block, ordinary blocks are sealed by the hybrid grind in
// package consensus.
func (b *Block) MineSimple(difficulty int) {
	b.Difficulty = difficulty
	b.MerkleRoot = b.ComputeMerkleRoot()
	b.BlockHash = b.ComputeHash()
	for !HasRequiredZeros(b.BlockHash, difficulty) {
		b.Nonce++
		b.BlockHash = b.ComputeHash()
	}
}
