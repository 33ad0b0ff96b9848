package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBelowMinimum(t *testing.T) {
	r := NewRegistry()
	require.ErrorIs(t, r.Register("v1", 999), ErrBelowMinimumStake)
}

func TestRegisterMergesStakeOnReRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("v1", 1000))
	require.NoError(t, r.Register("v1", 2000))

	v := r.Get("v1")
	require.Equal(t, 3000.0, v.Stake)
}

func TestSelectProducerRoundRobinByAddress(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("bbb", 1000))
	require.NoError(t, r.Register("aaa", 1000))
	require.NoError(t, r.Register("ccc", 1000))

	// sorted: aaa, bbb, ccc
	v0, err := r.SelectProducer(0)
	require.NoError(t, err)
	require.Equal(t, "aaa", v0.Address)

	v1, err := r.SelectProducer(1)
	require.NoError(t, err)
	require.Equal(t, "bbb", v1.Address)

	v3, err := r.SelectProducer(3)
	require.NoError(t, err)
	require.Equal(t, "aaa", v3.Address)
}

func TestSelectProducerNoActiveValidators(t *testing.T) {
	r := NewRegistry()
	_, err := r.SelectProducer(0)
	require.ErrorIs(t, err, ErrNoActiveValidators)
}

func TestUnregisterRemovesFromActiveSet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("v1", 1000))
	withdrawn, err := r.Unregister("v1")
	require.NoError(t, err)
	require.Equal(t, 1000.0, withdrawn)

	_, err = r.SelectProducer(0)
	require.ErrorIs(t, err, ErrNoActiveValidators)

	v := r.Get("v1")
	require.Equal(t, 0.0, v.Stake)
}

func TestSlashMalicious(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("v1", 10000))
	require.NoError(t, r.Slash("v1", ReasonMalicious))

	v := r.Get("v1")
	require.Equal(t, 5000.0, v.Stake)
	require.Equal(t, 0.5, v.Reputation)
}

func TestSlashDeactivatesBelowMinimum(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("v1", 1050))
	require.NoError(t, r.Slash("v1", ReasonMalicious))

	v := r.Get("v1")
	require.False(t, v.IsActive)
}

func TestRewardCapsReputation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("v1", 1000))
	for i := 0; i < 1000; i++ {
		require.NoError(t, r.Reward("v1", 1))
	}
	v := r.Get("v1")
	require.Equal(t, MaxReputation, v.Reputation)
}
