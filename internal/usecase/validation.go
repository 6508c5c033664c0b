package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

// Validator decides whether a proposed write may reach the store. It never
// mutates anything.
type Validator struct {
	store     DocumentStore
	payload   *validator.Validate
	clockSkew time.Duration
	clock     func() time.Time
}

func NewValidator(store DocumentStore, config domain.Config) *Validator {
	return &Validator{
		store:     store,
		payload:   newPayloadValidator(),
		clockSkew: config.ClockSkew,
		clock:     time.Now,
	}
}

// Validate checks write against the rules of its collection. previous is the
// stored document being replaced, nil on create.
func (v *Validator) Validate(ctx context.Context, write domain.DocumentWrite, previous *domain.Document) error {
	if write.Caller == "" {
		return domain.Invalid(write.Collection, "caller is required")
	}
	if !reputation.IsKeyComponent(write.Caller) {
		return domain.Invalid(write.Collection, "invalid caller %q", write.Caller)
	}
	if previous != nil && previous.Owner != write.Caller {
		return domain.Invalid(write.Collection, "only the owner may update %q", write.Key)
	}

	switch write.Collection {
	case schemas.Tags:
		return v.validateTag(ctx, write, previous)
	case schemas.Votes:
		return v.validateVote(ctx, write)
	case schemas.Users:
		return v.validateUser(ctx, write)
	case schemas.Reputations:
		return domain.Invalid(write.Collection, "reputations are derived and cannot be written directly")
	default:
		return domain.Invalid(write.Collection, "unknown collection")
	}
}

// ValidateDelete only lets authors withdraw their own votes.
func (v *Validator) ValidateDelete(collection, caller string, previous domain.Document) error {
	if collection != schemas.Votes {
		return domain.Invalid(collection, "documents in this collection cannot be deleted")
	}
	if caller == "" || previous.Owner != caller {
		return domain.Invalid(collection, "only the author may delete a vote")
	}
	return nil
}

func (v *Validator) validateTag(ctx context.Context, write domain.DocumentWrite, previous *domain.Document) error {
	var payload tagPayload
	if err := v.decode(write, &payload); err != nil {
		return err
	}

	if previous == nil {
		if err := v.checkULIDKey(write); err != nil {
			return err
		}
	} else if err := v.checkWeightingFrozen(ctx, write, payload, *previous); err != nil {
		return err
	}

	periods := payload.TimePeriods
	for i, p := range periods[:len(periods)-1] {
		if p.Months >= domain.TerminalPeriodMonths {
			return domain.Invalid(write.Collection, "time period %d: only the last period may span %d months", i, domain.TerminalPeriodMonths)
		}
	}
	if last := periods[len(periods)-1]; last.Months != domain.TerminalPeriodMonths {
		return domain.Invalid(write.Collection, "the last time period must span %d months, got %d", domain.TerminalPeriodMonths, last.Months)
	}

	taken, err := v.existsOther(ctx, schemas.Tags, reputation.DescriptionTerm(schemas.TermName, strings.ToLower(payload.Name)), write.Key)
	if err != nil {
		return err
	}
	if taken {
		return domain.Invalid(write.Collection, "tag name %q is already taken", payload.Name)
	}
	return nil
}

func (v *Validator) validateVote(ctx context.Context, write domain.DocumentWrite) error {
	var payload votePayload
	if err := v.decode(write, &payload); err != nil {
		return err
	}

	if payload.AuthorKey == payload.TargetKey {
		return domain.Invalid(write.Collection, "users cannot vote for themselves")
	}
	if payload.AuthorKey != write.Caller {
		return domain.Invalid(write.Collection, "votes must be cast by their author")
	}
	if write.Key != reputation.ComposeVoteKey(payload.AuthorKey, payload.TargetKey, payload.TagKey) {
		return domain.Invalid(write.Collection, "vote key must be %q", reputation.ComposeVoteKey(payload.AuthorKey, payload.TargetKey, payload.TagKey))
	}

	_, err := v.store.Get(ctx, schemas.Tags, payload.TagKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFoundError{Resource: "tag"}
		}
		return pkgerrors.Wrap(err, "failed to look up tag")
	}
	return nil
}

func (v *Validator) validateUser(ctx context.Context, write domain.DocumentWrite) error {
	var payload userPayload
	if err := v.decode(write, &payload); err != nil {
		return err
	}

	if write.Key != write.Caller {
		return domain.Invalid(write.Collection, "user documents are keyed by their owner")
	}

	taken, err := v.existsOther(ctx, schemas.Users, reputation.DescriptionTerm(schemas.TermHandle, strings.ToLower(payload.Handle)), write.Key)
	if err != nil {
		return err
	}
	if taken {
		return domain.Invalid(write.Collection, "handle %q is already taken", payload.Handle)
	}
	return nil
}

func (v *Validator) decode(write domain.DocumentWrite, payload any) error {
	if !reputation.IsKeyComponent(write.Key) {
		return domain.Invalid(write.Collection, "invalid key %q", write.Key)
	}

	dec := json.NewDecoder(bytes.NewReader(write.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return domain.Invalid(write.Collection, "malformed payload: %v", err)
	}

	if err := v.payload.Struct(payload); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			return domain.Invalid(write.Collection, "%s", describeFieldError(fieldErrors[0]))
		}
		return domain.Invalid(write.Collection, "%v", err)
	}
	return nil
}

// checkULIDKey requires new tags to be keyed by a ULID minted no later than
// now plus the allowed clock skew.
func (v *Validator) checkULIDKey(write domain.DocumentWrite) error {
	id, err := ulid.ParseStrict(write.Key)
	if err != nil {
		return domain.Invalid(write.Collection, "key %q is not a valid ULID", write.Key)
	}
	minted := ulid.Time(id.Time())
	if minted.After(v.clock().Add(v.clockSkew)) {
		return domain.Invalid(write.Collection, "key %q carries a timestamp in the future", write.Key)
	}
	return nil
}

// checkWeightingFrozen refuses to change how a tag weighs votes once any vote
// references it, since stored reputations on the tag would no longer match.
func (v *Validator) checkWeightingFrozen(ctx context.Context, write domain.DocumentWrite, payload tagPayload, previous domain.Document) error {
	stored, err := decodeTag(previous)
	if err != nil {
		return err
	}
	if !weightingChanged(stored, payload) {
		return nil
	}

	voted, err := v.existsOther(ctx, schemas.Votes, reputation.DescriptionTerm(schemas.TermTag, write.Key), "")
	if err != nil {
		return err
	}
	if voted {
		return domain.Invalid(write.Collection, "vote_reward and time_periods cannot change once the tag has votes")
	}
	return nil
}

func weightingChanged(stored domain.Tag, payload tagPayload) bool {
	if payload.VoteReward == nil || *payload.VoteReward != stored.VoteReward {
		return true
	}
	if len(payload.TimePeriods) != len(stored.TimePeriods) {
		return true
	}
	for i, p := range payload.TimePeriods {
		if p.Months != stored.TimePeriods[i].Months || p.Multiplier != stored.TimePeriods[i].Multiplier {
			return true
		}
	}
	return false
}

// existsOther reports whether a document other than self carries term.
func (v *Validator) existsOther(ctx context.Context, collection, term, self string) (bool, error) {
	filter := domain.ListFilter{Description: []string{term}, Limit: 2}
	for {
		page, err := v.store.List(ctx, collection, filter)
		if err != nil {
			return false, pkgerrors.Wrapf(err, "failed to list %s", collection)
		}
		for _, doc := range page.Items {
			if doc.Key != self {
				return true, nil
			}
		}
		if page.Next == "" || page.Next <= filter.After {
			return false, nil
		}
		filter.After = page.Next
	}
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	unit := ""
	switch fe.Kind().String() {
	case "string":
		unit = " characters"
	case "slice", "array":
		unit = " entries"
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s%s", field, fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must have at most %s%s", field, fe.Param(), unit)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "tagname":
		return fmt.Sprintf("%s may only contain letters, digits, spaces, '-' and '_' and must start with a letter or digit", field)
	case "handle":
		return fmt.Sprintf("%s may only contain letters, digits, '-' and '_'", field)
	case "keycomponent":
		return fmt.Sprintf("%s is not a valid key", field)
	case "freetext":
		return fmt.Sprintf("%s contains control characters", field)
	case "displayname":
		return fmt.Sprintf("%s must be non-empty, trimmed and free of control characters", field)
	case "multiplierstep":
		return fmt.Sprintf("%s must be a multiple of 0.05", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
