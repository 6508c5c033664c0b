package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

const defaultPageSize = 100

// VoteLedger is the read side of the vote collection.
type VoteLedger struct {
	store    DocumentStore
	pageSize int
}

func NewVoteLedger(store DocumentStore, pageSize int) *VoteLedger {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &VoteLedger{store: store, pageSize: pageSize}
}

func (l *VoteLedger) ListVotesForTarget(ctx context.Context, target, tag string) ([]domain.Vote, error) {
	return l.collect(ctx, domain.ListFilter{
		Description: []string{
			reputation.DescriptionTerm(schemas.TermTarget, target),
			reputation.DescriptionTerm(schemas.TermTag, tag),
		},
	})
}

func (l *VoteLedger) ListVotesByAuthor(ctx context.Context, author string) ([]domain.Vote, error) {
	return l.collect(ctx, domain.ListFilter{
		Owner: author,
		Description: []string{
			reputation.DescriptionTerm(schemas.TermAuthor, author),
		},
	})
}

func (l *VoteLedger) ListVotesByAuthorForTag(ctx context.Context, author, tag string) ([]domain.Vote, error) {
	return l.collect(ctx, domain.ListFilter{
		Owner: author,
		Description: []string{
			reputation.DescriptionTerm(schemas.TermAuthor, author),
			reputation.DescriptionTerm(schemas.TermTag, tag),
		},
	})
}

// collect drains every page before returning so callers never aggregate a
// partial ledger.
func (l *VoteLedger) collect(ctx context.Context, filter domain.ListFilter) ([]domain.Vote, error) {
	filter.Limit = l.pageSize

	var votes []domain.Vote
	for {
		page, err := l.store.List(ctx, schemas.Votes, filter)
		if err != nil {
			return nil, err
		}

		for _, doc := range page.Items {
			vote, err := decodeVote(doc)
			if err != nil {
				return nil, err
			}
			votes = append(votes, vote)
		}

		if page.Next == "" {
			break
		}
		if page.Next <= filter.After {
			return nil, fmt.Errorf("vote ledger cursor did not advance past %q", filter.After)
		}
		filter.After = page.Next
	}

	sort.Slice(votes, func(i, j int) bool {
		return votes[i].Key < votes[j].Key
	})
	return votes, nil
}
