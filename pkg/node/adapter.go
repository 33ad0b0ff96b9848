package node

import (
	"decoin/pkg/consensus"
	"decoin/pkg/p2p"
)

// registryAdapter satisfies p2p.ValidatorSyncer in terms of a
// consensus.Registry, translating between the registry's domain type
// and the wire-shaped p2p.ValidatorEntry. Kept in pkg/node so neither
// p2p nor consensus needs to import the other.
type registryAdapter struct {
	registry *consensus.Registry
}

func (a *registryAdapter) ListValidators() []p2p.ValidatorEntry {
	active := a.registry.ActiveValidators()
	out := make([]p2p.ValidatorEntry, len(active))
	for i, v := range active {
		out[i] = p2p.ValidatorEntry{
			Address:         v.Address,
			Stake:           v.Stake,
			Reputation:      v.Reputation,
			BlocksValidated: v.BlocksValidated,
		}
	}
	return out
}

func (a *registryAdapter) HasValidator(address string) bool {
	return a.registry.Get(address) != nil
}

func (a *registryAdapter) RegisterValidator(address string, stake float64) bool {
	return a.registry.Register(address, stake) == nil
}
