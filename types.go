package reputation

import (
	"encoding/json"
	"time"
)

// Version is the build version reported by build_version. Overridden at link time.
var Version = "dev"

type WriteRequest struct {
	Data    json.RawMessage `json:"data"`
	Version uint64          `json:"version"`
}

type Document struct {
	Collection  string          `json:"collection"`
	Key         string          `json:"key"`
	Owner       string          `json:"owner"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data"`
	Version     uint64          `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type DocumentPage struct {
	Items []Document `json:"items"`
	Next  string     `json:"next,omitempty"`
}

type ReputationResponse struct {
	Reputation float64 `json:"reputation"`
}

// ReputationData is the full materialized reputation of one user on one tag.
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

type BuildVersionResponse struct {
	Version string `json:"version"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Event is pushed to realtime subscribers whenever a reputation is recalculated.
type Event struct {
	UserKey    string    `json:"user"`
	TagKey     string    `json:"tag"`
	Reputation float64   `json:"reputation"`
	VoteWeight float64   `json:"voteWeight"`
	Version    uint64    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`
}
