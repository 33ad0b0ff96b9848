// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package merkle computes the binary Merkle root used to commit a
// block's transaction set. Leaves are SHA-256 transaction hashes in
// list order; an odd level duplicates its last entry before pairing.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
)

// Root returns the Merkle root over leaves, given as lowercase hex
// digests in list order. An empty leaf set returns the hash of the
// empty byte string.
func Root(leaves []string) string {
	if len(leaves) == 0 {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:])
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}

		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			sum := sha256.Sum256([]byte(level[i] + level[i+1]))
			next = append(next, hex.EncodeToString(sum[:]))
		}
		level = next
	}

	return level[0]
}
