package consensus

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"decoin/pkg/core/block"
	"decoin/pkg/core/transactions"
)

// SealTimeout bounds the hybrid PoW grind.
const SealTimeout = 5 * time.Second

// RetargetInterval is how often difficulty is reconsidered.
const RetargetInterval = 100

var (
	// ErrNotElected is returned by Seal when address is not V[h mod |V|].
	ErrNotElected = errors.New("consensus: address is not the elected producer")
	// ErrSealTimeout is returned when the hybrid grind exceeds SealTimeout.
	ErrSealTimeout = errors.New("consensus: seal timeout before a hybrid-valid nonce was found")
)

// Engine seals blocks under the hybrid PoS/PoW rule and derives the
// rewards and retargets that follow a successful append.
type Engine struct {
	Registry        *Registry
	TargetBlockTime time.Duration
	Clock           func() time.Time
}

// NewEngine constructs an Engine bound to registry.
func NewEngine(registry *Registry, targetBlockTime time.Duration) *Engine {
	clock := time.Now
	return &Engine{Registry: registry, TargetBlockTime: targetBlockTime, Clock: clock}
}

// RequiredStake is the stake sufficiency threshold for a block carrying
// the given transactions: 1000 * (1 + sum(amount)/100000).
func RequiredStake(txs []*transactions.Transaction) float64 {
	var total float64
	for _, tx := range txs {
		total += tx.Amount
	}
	return MinimumStake * (1 + total/100000)
}

// WorkScore is the fraction of hex-leading zeros in hash out of 64
// total hex characters.
func WorkScore(hash string) float64 {
	return float64(block.LeadingZeros(hash)) / 64.0
}

// hybridScore combines stake sufficiency and work score per the
// 0.7/0.3 weighting.
func hybridScore(stakeOK bool, workScore float64) float64 {
	stake := 0.0
	if stakeOK {
		stake = 1.0
	}
	return 0.7*stake + 0.3*workScore
}

// Seal runs the PoW-gated hybrid grind for an unsealed block already
// produced by chain.Store.CreateBlock for the given producer. It sets
// stake_weight=0.7, work_weight=0.3 and iterates nonce from 0 until the
// relaxed difficulty predicate and the hybrid score both pass, or
// ctx/SealTimeout expires. On success, it records the producer's
// validation stats.
func (e *Engine) Seal(ctx context.Context, blk *block.Block, producer *Validator) error {
	if err := e.checkElected(blk.Index, producer.Address); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, SealTimeout)
	defer cancel()

	blk.Validator = producer.Address
	blk.StakeWeight = 0.7
	blk.WorkWeight = 0.3
	blk.MerkleRoot = blk.ComputeMerkleRoot()

	relaxed := blk.Difficulty - 2
	if relaxed < 1 {
		relaxed = 1
	}
	stakeOK := producer.Stake >= RequiredStake(blk.Transactions)

	blk.Nonce = 0
	blk.BlockHash = blk.ComputeHash()
	for {
		select {
		case <-ctx.Done():
			return ErrSealTimeout
		default:
		}

		if block.HasRequiredZeros(blk.BlockHash, relaxed) {
			score := hybridScore(stakeOK, WorkScore(blk.BlockHash))
			if score >= 0.5 {
				break
			}
		}
		blk.Nonce++
		blk.BlockHash = blk.ComputeHash()
	}

	now := e.clock()
	if err := e.Registry.RecordValidation(producer.Address, now); err != nil {
		return err
	}
	if err := e.Registry.bumpReputationOnSeal(producer.Address); err != nil {
		return err
	}
	return nil
}

func (e *Engine) checkElected(height int64, address string) error {
	elected, err := e.Registry.SelectProducer(height)
	if err != nil {
		return err
	}
	if elected.Address != address {
		return ErrNotElected
	}
	return nil
}

func (e *Engine) clock() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// bumpReputationOnSeal applies reputation = min(2.0, reputation * 1.01)
// distinct from Reward's additive bump, which applies
// separately when rewards are distributed.
func (r *Registry) bumpReputationOnSeal(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[address]
	if !ok {
		return ErrUnknownValidator
	}
	v.Reputation = math.Min(MaxReputation, v.Reputation*1.01)
	return nil
}

// Rewards is the per-address payout produced by CalculateRewards. It is
// returned for logging/metrics only, never persisted as chain state.
type Rewards struct {
	Base    float64
	Fees    float64
	PerAddr map[string]float64
}

// CalculateRewards computes the block reward (base halving every
// 210000 blocks, plus the sum of transaction fees) and splits it 70%
// to the producer and 30% equally among participating validators,
// those active with |last_validation_time - block.timestamp| < 300s.
func (e *Engine) CalculateRewards(chainLength int64, blk *block.Block, producer string) *Rewards {
	base := 50.0 / math.Pow(2, float64(chainLength)/210000)

	var fees float64
	for _, tx := range blk.Transactions {
		fees += tx.Fee()
	}
	total := base + fees

	participating := make([]*Validator, 0)
	for _, v := range e.Registry.ParticipatingValidators() {
		if math.Abs(v.LastValidationTime.Sub(time.Unix(int64(blk.Timestamp), 0)).Seconds()) < 300 {
			participating = append(participating, v)
		}
	}

	payout := &Rewards{Base: base, Fees: fees, PerAddr: map[string]float64{}}
	payout.PerAddr[producer] = total * 0.70

	if len(participating) > 0 {
		share := (total * 0.30) / float64(len(participating))
		for _, v := range participating {
			payout.PerAddr[v.Address] += share
		}
	}
	return payout
}

// AdjustDifficulty applies the retarget rule every RetargetInterval
// blocks: compare the observed elapsed time over the last interval
// against the expected time, and nudge difficulty by one (floor 1).
// Call only when chainLength % RetargetInterval == 0.
func AdjustDifficulty(currentDifficulty int, tipTimestamp, windowStartTimestamp float64, targetBlockTime time.Duration) int {
	elapsed := tipTimestamp - windowStartTimestamp
	expected := float64(RetargetInterval) * targetBlockTime.Seconds()

	switch {
	case elapsed < 0.5*expected:
		return currentDifficulty + 1
	case elapsed > 2*expected:
		if currentDifficulty-1 < 1 {
			return 1
		}
		return currentDifficulty - 1
	default:
		return currentDifficulty
	}
}
