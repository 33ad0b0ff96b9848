package consensus

import (
	"encoding/hex"

	ristretto "github.com/bwesterb/go-ristretto"
)

// KeyPair is a validator's Ristretto scalar/point pair. Signing and
// verification are out of scope (Non-goal, preserved), KeyPair only
// derives a stable address for registry bookkeeping and block sealing.
type KeyPair struct {
	Scalar ristretto.Scalar
	Point  ristretto.Point
}

// GenerateKeyPair draws a fresh random scalar via Scalar.Rand() and
// derives its base point.
func GenerateKeyPair() *KeyPair {
	var s ristretto.Scalar
	s.Rand()

	var p ristretto.Point
	p.ScalarMultBase(&s)

	return &KeyPair{Scalar: s, Point: p}
}

// Address derives the validator address: the hex encoding of the
// compressed Ristretto point, the same "point bytes as identity" idiom
// used for stealth addresses and commitments elsewhere in this stack.
func (k *KeyPair) Address() string {
	b := k.Point.Bytes()
	return hex.EncodeToString(b)
}
