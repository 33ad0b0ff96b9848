// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package consensus implements the hybrid proof-of-stake/proof-of-work
// sealing rule: validator registry and selection, reward and slashing
// accounting, and the PoW-gated hybrid-score seal check.
package consensus

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MinimumStake is the lowest stake accepted by Register.
const MinimumStake = 1000.0

// MaxReputation caps Validator.Reputation.
const MaxReputation = 2.0

// Slashing reasons and their stake-reduction fractions.
const (
	ReasonDoubleSigning = "double_signing"
	ReasonInvalidBlock  = "invalid_block"
	ReasonOffline       = "offline"
	ReasonMalicious     = "malicious"

	slashDoubleSigning = 0.10
	slashInvalidBlock  = 0.05
	slashOffline       = 0.01
	slashMalicious     = 0.50
	slashDefault       = 0.01
)

// slashFraction maps a slashing reason to its stake-reduction fraction.
func slashFraction(reason string) float64 {
	switch reason {
	case ReasonDoubleSigning:
		return slashDoubleSigning
	case ReasonInvalidBlock:
		return slashInvalidBlock
	case ReasonOffline:
		return slashOffline
	case ReasonMalicious:
		return slashMalicious
	default:
		return slashDefault
	}
}

var (
	// ErrBelowMinimumStake is returned by Register when stake < MinimumStake.
	ErrBelowMinimumStake = errors.New("consensus: stake below minimum")
	// ErrAlreadyRegistered is unused by Register (re-registration merges
	// stake instead of failing); kept as a sentinel for callers that
	// want to distinguish a fresh registration from a stake top-up.
	ErrAlreadyRegistered = errors.New("consensus: validator already registered")
	// ErrUnknownValidator is returned by operations addressing an unregistered validator.
	ErrUnknownValidator = errors.New("consensus: unknown validator")
	// ErrNoActiveValidators is returned by SelectProducer when the active set is empty.
	ErrNoActiveValidators = errors.New("consensus: no active validators")
)

// Validator is one registered staking participant.
type Validator struct {
	Address            string
	Stake              float64
	Reputation         float64
	BlocksValidated    int64
	LastValidationTime time.Time
	IsActive           bool
}

// Registry is the shared, mutation-serialized validator set.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]*Validator
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]*Validator)}
}

// Register admits a new validator with an initial reputation of 1.0. If
// address is already registered, stake is added to its existing Stake
// instead of creating a second entry.
func (r *Registry) Register(address string, stake float64) error {
	if stake < MinimumStake {
		return ErrBelowMinimumStake
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, exists := r.validators[address]; exists {
		v.Stake += stake
		return nil
	}
	r.validators[address] = &Validator{
		Address:    address,
		Stake:      stake,
		Reputation: 1.0,
		IsActive:   true,
	}
	return nil
}

// Unregister marks address inactive rather than deleting it, preserving
// its historical BlocksValidated/Reputation for audit, and returns the
// stake it withdrew (zeroing the validator's Stake in the process).
func (r *Registry) Unregister(address string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[address]
	if !ok {
		return 0, ErrUnknownValidator
	}
	withdrawn := v.Stake
	v.Stake = 0
	v.IsActive = false
	return withdrawn, nil
}

// Get returns a copy of the named validator, or nil if unknown.
func (r *Registry) Get(address string) *Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[address]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

// ActiveValidators returns active validators sorted by address
// ascending, the ordering SelectProducer indexes into.
func (r *Registry) ActiveValidators() []*Validator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeValidatorsLocked()
}

func (r *Registry) activeValidatorsLocked() []*Validator {
	active := make([]*Validator, 0, len(r.validators))
	for _, v := range r.validators {
		if v.IsActive {
			cp := *v
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Address < active[j].Address })
	return active
}

// SelectProducer is the deterministic round-robin rule: the active
// validator set, sorted by address, indexed by height modulo its size.
// Inactive validators are skipped, so producer assignment for a given
// height changes when the active set changes. Nothing in the registry
// reactivates a validator once it is inactive.
func (r *Registry) SelectProducer(height int64) (*Validator, error) {
	active := r.ActiveValidators()
	if len(active) == 0 {
		return nil, ErrNoActiveValidators
	}
	idx := int(height % int64(len(active)))
	return active[idx], nil
}

// ParticipatingValidators returns every active validator as a candidate
// for a block's reward split; CalculateRewards keeps only those whose
// last validation is within 300s of the block's timestamp.
func (r *Registry) ParticipatingValidators() []*Validator {
	return r.ActiveValidators()
}

// RecordValidation bumps BlocksValidated and LastValidationTime for the
// producer of a successfully appended block.
func (r *Registry) RecordValidation(address string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[address]
	if !ok {
		return ErrUnknownValidator
	}
	v.BlocksValidated++
	v.LastValidationTime = at
	return nil
}

// Reward credits amount to address's effective stake and nudges
// reputation upward, capped at MaxReputation.
func (r *Registry) Reward(address string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[address]
	if !ok {
		return ErrUnknownValidator
	}
	v.Stake += amount
	v.Reputation += 0.01
	if v.Reputation > MaxReputation {
		v.Reputation = MaxReputation
	}
	return nil
}

// Slash reduces address's stake by the fraction associated with reason
// (one of the Reason* constants; anything else takes the 1% default),
// halves reputation, and deactivates the validator if stake then falls
// below MinimumStake.
func (r *Registry) Slash(address, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[address]
	if !ok {
		return ErrUnknownValidator
	}
	v.Stake -= v.Stake * slashFraction(reason)
	v.Reputation /= 2
	if v.Stake < MinimumStake {
		v.IsActive = false
	}
	return nil
}
