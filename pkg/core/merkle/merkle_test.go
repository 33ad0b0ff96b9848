package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootEmpty(t *testing.T) {
	sum := sha256.Sum256(nil)
	require.Equal(t, hex.EncodeToString(sum[:]), Root(nil))
}

func TestRootSingle(t *testing.T) {
	require.Equal(t, "a", Root([]string{"a"}))
}

func TestRootOddDuplicatesLast(t *testing.T) {
	// three leaves: level becomes [a,b,c,c], pairs (a,b) (c,c)
	got := Root([]string{"a", "b", "c"})

	h := func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}

	left := h("ab")
	right := h("cc")
	want := h(left + right)

	require.Equal(t, want, got)
}

func TestRootDeterministic(t *testing.T) {
	leaves := []string{"tx1", "tx2", "tx3", "tx4"}
	require.Equal(t, Root(leaves), Root(leaves))
}
