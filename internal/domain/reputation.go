package domain

import (
	"math"
	"time"
)

// ReputationData is the materialized aggregate for one (user, tag) pair.
type ReputationData struct {
	UserKey                      string    `json:"user_key"`
	TagKey                       string    `json:"tag_key"`
	TotalVotingRewardsReputation float64   `json:"total_voting_rewards_reputation"`
	TotalBasisReputation         float64   `json:"total_basis_reputation"`
	VoteWeight                   float64   `json:"vote_weight"`
	HasVotingPower               bool      `json:"has_voting_power"`
	LastKnownEffectiveReputation float64   `json:"last_known_effective_reputation"`
	LastCalculation              time.Time `json:"last_calculation"`
}

// WeightCurve maps an effective reputation onto a vote weight. Implementations
// must be monotonic non-decreasing and stay within [0, 1].
type WeightCurve interface {
	Weight(effective float64) float64
}

// LinearCurve grows linearly from zero and saturates at Saturation.
type LinearCurve struct {
	Saturation float64
}

func (c LinearCurve) Weight(effective float64) float64 {
	if math.IsNaN(effective) || effective <= 0 {
		return 0
	}
	if c.Saturation <= 0 || effective >= c.Saturation {
		return 1
	}
	return effective / c.Saturation
}

// VotingPolicy holds the tunables applied after aggregation.
type VotingPolicy struct {
	Curve     WeightCurve
	Threshold float64
}

func (p VotingPolicy) Apply(effective float64) (weight float64, hasPower bool) {
	curve := p.Curve
	if curve == nil {
		curve = LinearCurve{}
	}
	weight = clamp(curve.Weight(effective), 0, 1)
	return weight, weight >= p.Threshold
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
