package usecase

import (
	"sort"
	"time"

	"github.com/totegamma/reputation-engine/internal/domain"
)

type AggregateInput struct {
	UserKey  string
	Tag      domain.Tag
	Received []domain.Vote
	Cast     []domain.Vote
	Now      time.Time
	Policy   domain.VotingPolicy
}

// Aggregate computes the reputation of one user on one tag. It is a pure
// function of its input: votes are summed in ascending key order so the
// floating point result does not depend on storage iteration order.
func Aggregate(in AggregateInput) domain.ReputationData {
	received := sortedVotes(in.Received, func(v domain.Vote) bool {
		return v.TargetKey == in.UserKey && v.TagKey == in.Tag.Key
	})
	cast := sortedVotes(in.Cast, func(v domain.Vote) bool {
		return v.AuthorKey == in.UserKey && v.TagKey == in.Tag.Key
	})

	basis := 0.0
	for _, vote := range received {
		period := in.Tag.PeriodFor(domain.AgeInMonths(vote.Timestamp, in.Now))
		if period < 0 {
			continue
		}
		multiplier := in.Tag.TimePeriods[period].Multiplier
		basis += float64(vote.Value) * vote.Weight * multiplier
	}

	rewards := 0.0
	for range cast {
		rewards += in.Tag.VoteReward
	}

	effective := basis + rewards
	weight, hasPower := in.Policy.Apply(effective)

	return domain.ReputationData{
		UserKey:                      in.UserKey,
		TagKey:                       in.Tag.Key,
		TotalVotingRewardsReputation: rewards,
		TotalBasisReputation:         basis,
		VoteWeight:                   weight,
		HasVotingPower:               hasPower,
		LastKnownEffectiveReputation: effective,
		LastCalculation:              in.Now.UTC(),
	}
}

// sortedVotes keeps the matching votes, one per key, ordered by key.
func sortedVotes(votes []domain.Vote, keep func(domain.Vote) bool) []domain.Vote {
	seen := make(map[string]struct{}, len(votes))
	out := make([]domain.Vote, 0, len(votes))
	for _, v := range votes {
		if !keep(v) {
			continue
		}
		if _, dup := seen[v.Key]; dup {
			continue
		}
		seen[v.Key] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}
