package storagerequest

import (
	"math/big"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
)

// maxScore is the exclusive upper bound of the eligibility score space,
// 2^256.
var maxScore = new(big.Int).Lsh(big.NewInt(1), 256)

// initialThresholdDivisor sets how small the threshold starts at
// accept_at: max_score / initialThresholdDivisor. The original leaves
// this an implementation choice ("a small initial value"); one in a
// million keeps the very first tick's volunteer pool tiny without
// excluding anyone forever, since the threshold only rises from there.
const initialThresholdDivisor = 1_000_000

// EligibilityScore derives pk's deterministic eligibility score for
// fileKey, a value in [0, 2^256).
func EligibilityScore(pk string, fileKey crypto.Hash) *big.Int {
	h := crypto.HashAll(pk, fileKey)
	return new(big.Int).SetBytes(h[:])
}

func initialThreshold() *big.Int {
	return new(big.Int).Div(maxScore, big.NewInt(initialThresholdDivisor))
}

// Threshold returns τ(currentTick) for a request whose volunteering
// window opened at acceptAt: 0 before acceptAt, a small initial value at
// acceptAt, rising linearly to the full score space by
// acceptAt + config.TickRangeToMaximumThreshold.
func Threshold(acceptAt, currentTick uint64) *big.Int {
	if currentTick < acceptAt {
		return big.NewInt(0)
	}
	elapsed := currentTick - acceptAt
	ramp := uint64(config.TickRangeToMaximumThreshold)
	initial := initialThreshold()
	if elapsed >= ramp {
		return new(big.Int).Sub(maxScore, big.NewInt(1))
	}
	span := new(big.Int).Sub(maxScore, initial)
	delta := new(big.Int).Mul(span, big.NewInt(0).SetUint64(elapsed))
	delta.Div(delta, big.NewInt(0).SetUint64(ramp))
	return new(big.Int).Add(initial, delta)
}

// CanVolunteer reports whether pk may volunteer for fileKey at
// currentTick, given the request's acceptAt tick.
func CanVolunteer(pk string, fileKey crypto.Hash, acceptAt, currentTick uint64) bool {
	if currentTick < acceptAt {
		return false
	}
	score := EligibilityScore(pk, fileKey)
	return score.Cmp(Threshold(acceptAt, currentTick)) <= 0
}

// EarliestVolunteerTick returns the smallest tick at or after acceptAt
// at which pk becomes eligible to volunteer for fileKey.
func EarliestVolunteerTick(pk string, fileKey crypto.Hash, acceptAt uint64) uint64 {
	score := EligibilityScore(pk, fileKey)
	initial := initialThreshold()
	if score.Cmp(initial) <= 0 {
		return acceptAt
	}
	ramp := uint64(config.TickRangeToMaximumThreshold)
	maxThreshold := new(big.Int).Sub(maxScore, big.NewInt(1))
	if score.Cmp(maxThreshold) >= 0 {
		return acceptAt + ramp
	}
	span := new(big.Int).Sub(maxScore, initial)
	numerator := new(big.Int).Sub(score, initial)
	numerator.Mul(numerator, big.NewInt(0).SetUint64(ramp))
	t := new(big.Int)
	rem := new(big.Int)
	t.DivMod(numerator, span, rem)
	elapsed := t.Uint64()
	if rem.Sign() != 0 {
		elapsed++
	}
	if elapsed > ramp {
		elapsed = ramp
	}
	return acceptAt + elapsed
}
