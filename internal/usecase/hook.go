package usecase

import (
	"context"
	"errors"

	"github.com/totegamma/reputation-engine/schemas"
)

// ReputationHook keeps reputations in step with the vote ledger. Any change
// to a vote affects both the target's basis and the author's voting rewards
// on that tag.
type ReputationHook struct {
	reputation *ReputationUsecase
}

func NewReputationHook(reputation *ReputationUsecase) *ReputationHook {
	return &ReputationHook{reputation: reputation}
}

func (h *ReputationHook) AfterCommit(ctx context.Context, event CommitEvent) error {
	if event.Document.Collection != schemas.Votes {
		return nil
	}

	vote, err := decodeVote(event.Document)
	if err != nil {
		return err
	}

	_, targetErr := h.reputation.RecalculateReputation(ctx, vote.TargetKey, vote.TagKey)
	_, authorErr := h.reputation.RecalculateReputation(ctx, vote.AuthorKey, vote.TagKey)
	return errors.Join(targetErr, authorErr)
}

var _ PostCommitHook = (*ReputationHook)(nil)
