// Package challenge schedules and verifies storage proofs: how often a
// provider must prove it still holds what it claims, which file-keys get
// challenged on checkpoint rounds, and what a submitted proof must show
// to be accepted.
package challenge

import "github.com/storagehub-network/sh-core/config"

// ProvingPeriod returns how many ticks apart a provider with the given
// stake must submit proofs: richer providers prove more often. A
// provider with zero stake is not yet registered to prove at all, so its
// period is the widest allowed (CheckpointChallengePeriod) rather than
// a divide-by-zero.
func ProvingPeriod(stake uint64) uint64 {
	if stake == 0 {
		return config.CheckpointChallengePeriod
	}
	period := config.StakeToChallengePeriod / stake
	if period < config.MinChallengePeriod {
		return config.MinChallengePeriod
	}
	if period > config.CheckpointChallengePeriod {
		return config.CheckpointChallengePeriod
	}
	return period
}
