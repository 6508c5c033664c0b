package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

func corrupt(doc domain.Document, err error) error {
	return domain.DataCorruptionError{Collection: doc.Collection, Key: doc.Key, Err: err}
}

func decodeTag(doc domain.Document) (domain.Tag, error) {
	var tag domain.Tag
	if err := json.Unmarshal(doc.Data, &tag); err != nil {
		return domain.Tag{}, corrupt(doc, err)
	}
	tag.Key = doc.Key

	n := len(tag.TimePeriods)
	if n == 0 || n > domain.MaxTimePeriods {
		return domain.Tag{}, corrupt(doc, fmt.Errorf("tag has %d time periods", n))
	}
	if tag.TimePeriods[n-1].Months != domain.TerminalPeriodMonths {
		return domain.Tag{}, corrupt(doc, fmt.Errorf("last time period is not the %d month catch-all", domain.TerminalPeriodMonths))
	}
	for _, p := range tag.TimePeriods {
		if p.Months <= 0 || p.Multiplier < domain.MinMultiplier || p.Multiplier > domain.MaxMultiplier {
			return domain.Tag{}, corrupt(doc, fmt.Errorf("time period %+v out of range", p))
		}
	}
	if tag.VoteReward < 0 || tag.VoteReward > 1 {
		return domain.Tag{}, corrupt(doc, fmt.Errorf("vote reward %v out of range", tag.VoteReward))
	}
	return tag, nil
}

func decodeVote(doc domain.Document) (domain.Vote, error) {
	var vote domain.Vote
	if err := json.Unmarshal(doc.Data, &vote); err != nil {
		return domain.Vote{}, corrupt(doc, err)
	}
	vote.Key = doc.Key
	vote.Timestamp = doc.CreatedAt

	switch {
	case !domain.ValidVoteValue(vote.Value):
		return domain.Vote{}, corrupt(doc, fmt.Errorf("vote value %d out of range", vote.Value))
	case !domain.ValidVoteWeight(vote.Weight):
		return domain.Vote{}, corrupt(doc, fmt.Errorf("vote weight %v out of range", vote.Weight))
	case vote.AuthorKey == vote.TargetKey:
		return domain.Vote{}, corrupt(doc, fmt.Errorf("self vote by %s", vote.AuthorKey))
	case doc.Key != reputation.ComposeVoteKey(vote.AuthorKey, vote.TargetKey, vote.TagKey):
		return domain.Vote{}, corrupt(doc, fmt.Errorf("vote payload does not match its key"))
	}
	return vote, nil
}

func decodeReputation(doc domain.Document) (domain.ReputationData, error) {
	var data domain.ReputationData
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return domain.ReputationData{}, corrupt(doc, err)
	}
	return data, nil
}

func encodeReputation(data domain.ReputationData) (domain.Document, error) {
	blob, err := json.Marshal(data)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		Collection: schemas.Reputations,
		Key:        reputation.ComposeReputationKey(data.UserKey, data.TagKey),
		Owner:      data.UserKey,
		Description: reputation.ComposeDescription(
			schemas.TermUser, data.UserKey,
			schemas.TermTag, data.TagKey,
		),
		Data: blob,
	}, nil
}
