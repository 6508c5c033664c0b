package usecase

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

var tracer = otel.Tracer("reputation")

type ReputationUsecase struct {
	store    DocumentStore
	ledger   *VoteLedger
	snapshot SnapshotCache
	events   EventPublisher
	recorder Recorder
	logger   *zap.Logger
	config   domain.Config
	policy   domain.VotingPolicy
	retry    RetryOptions
	flight   singleflight.Group
	clock    func() time.Time
}

func NewReputationUsecase(
	store DocumentStore,
	ledger *VoteLedger,
	snapshot SnapshotCache,
	events EventPublisher,
	recorder Recorder,
	logger *zap.Logger,
	config domain.Config,
) *ReputationUsecase {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReputationUsecase{
		store:    store,
		ledger:   ledger,
		snapshot: snapshot,
		events:   events,
		recorder: recorder,
		logger:   logger.Named("reputation"),
		config:   config,
		policy:   config.Policy(),
		retry:    retryOptions(config),
		clock:    time.Now,
	}
}

func (uc *ReputationUsecase) BuildVersion() string {
	return reputation.Version
}

func (uc *ReputationUsecase) GetUserReputation(ctx context.Context, user, tag string) (float64, error) {
	data, err := uc.GetUserReputationFull(ctx, user, tag)
	if err != nil {
		return 0, err
	}
	return data.LastKnownEffectiveReputation, nil
}

// GetUserReputationFull serves the materialized record. A pair that was never
// calculated is recalculated synchronously when LazyRecalculate is set, and
// reported as not found otherwise.
func (uc *ReputationUsecase) GetUserReputationFull(ctx context.Context, user, tag string) (domain.ReputationData, error) {
	ctx, span := tracer.Start(ctx, "Reputation.Usecase.GetUserReputationFull")
	defer span.End()
	span.SetAttributes(attribute.String("user", user), attribute.String("tag", tag))

	if err := checkPair(user, tag); err != nil {
		return domain.ReputationData{}, err
	}

	if uc.snapshot != nil {
		data, ok, err := uc.snapshot.Get(ctx, user, tag)
		if err != nil {
			uc.logger.Warn("snapshot cache read failed", zap.String("user", user), zap.String("tag", tag), zap.Error(err))
		} else if ok {
			return data, nil
		}
	}

	doc, err := uc.store.Get(ctx, schemas.Reputations, reputation.ComposeReputationKey(user, tag))
	if err == nil {
		data, err := decodeReputation(doc)
		if err != nil {
			uc.reportCorruption(err)
			span.RecordError(err)
			return domain.ReputationData{}, err
		}
		uc.fillSnapshot(ctx, data, doc.Version)
		return data, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return domain.ReputationData{}, pkgerrors.Wrap(err, "failed to read reputation")
	}

	if !uc.config.LazyRecalculate {
		return domain.ReputationData{}, domain.NotFoundError{Resource: "reputation"}
	}

	// The flight is shared by every reader of the pair, so it must outlive
	// whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := uc.flight.DoChan(reputation.ComposeReputationKey(user, tag), func() (any, error) {
		return uc.recalculate(shared, user, tag)
	})
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return domain.ReputationData{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			span.RecordError(res.Err)
			return domain.ReputationData{}, res.Err
		}
		return res.Val.(domain.ReputationData), nil
	}
}

// RecalculateReputation runs the aggregation for the pair and persists it.
func (uc *ReputationUsecase) RecalculateReputation(ctx context.Context, user, tag string) (float64, error) {
	ctx, span := tracer.Start(ctx, "Reputation.Usecase.RecalculateReputation")
	defer span.End()
	span.SetAttributes(attribute.String("user", user), attribute.String("tag", tag))

	if err := checkPair(user, tag); err != nil {
		return 0, err
	}

	data, err := uc.recalculate(ctx, user, tag)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return data.LastKnownEffectiveReputation, nil
}

func (uc *ReputationUsecase) recalculate(ctx context.Context, user, tagKey string) (domain.ReputationData, error) {
	start := uc.clock()

	tag, err := loadTag(ctx, uc.store, tagKey)
	if err != nil {
		uc.finish(start, err)
		return domain.ReputationData{}, err
	}

	var (
		data  domain.ReputationData
		saved domain.Document
	)
	err = withRetry(ctx, uc.retry, func() error {
		var version uint64
		current, err := uc.store.Get(ctx, schemas.Reputations, reputation.ComposeReputationKey(user, tagKey))
		switch {
		case err == nil:
			version = current.Version
		case errors.Is(err, domain.ErrNotFound):
			version = 0
		default:
			return err
		}

		received, err := uc.ledger.ListVotesForTarget(ctx, user, tagKey)
		if err != nil {
			return err
		}
		cast, err := uc.ledger.ListVotesByAuthorForTag(ctx, user, tagKey)
		if err != nil {
			return err
		}

		data = Aggregate(AggregateInput{
			UserKey:  user,
			Tag:      tag,
			Received: received,
			Cast:     cast,
			Now:      uc.clock(),
			Policy:   uc.policy,
		})

		doc, err := encodeReputation(data)
		if err != nil {
			return domain.DataCorruptionError{Collection: schemas.Reputations, Key: reputation.ComposeReputationKey(user, tagKey), Err: err}
		}
		doc.Version = version

		saved, err = uc.store.Set(ctx, doc)
		if errors.Is(err, domain.ErrConflict) {
			uc.recorder.ConflictRetried(schemas.Reputations)
			uc.logger.Debug("reputation write conflicted, retrying",
				zap.String("user", user), zap.String("tag", tagKey), zap.Uint64("version", version))
		}
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			err = domain.ErrTryAgain
		}
		uc.finish(start, err)
		return domain.ReputationData{}, err
	}

	uc.finish(start, nil)
	uc.afterSave(ctx, data, saved.Version)
	return data, nil
}

func (uc *ReputationUsecase) afterSave(ctx context.Context, data domain.ReputationData, version uint64) {
	if uc.snapshot != nil {
		if err := uc.snapshot.Put(ctx, data, version); err != nil {
			uc.logger.Warn("snapshot cache write failed",
				zap.String("user", data.UserKey), zap.String("tag", data.TagKey), zap.Error(err))
		}
	}
	if uc.events != nil {
		event := reputation.Event{
			UserKey:    data.UserKey,
			TagKey:     data.TagKey,
			Reputation: data.LastKnownEffectiveReputation,
			VoteWeight: data.VoteWeight,
			Version:    version,
			Timestamp:  data.LastCalculation,
		}
		if err := uc.events.Publish(ctx, event); err != nil {
			uc.logger.Warn("failed to publish reputation event",
				zap.String("user", data.UserKey), zap.String("tag", data.TagKey), zap.Error(err))
		}
	}
}

func (uc *ReputationUsecase) fillSnapshot(ctx context.Context, data domain.ReputationData, version uint64) {
	if uc.snapshot == nil {
		return
	}
	if err := uc.snapshot.Put(ctx, data, version); err != nil {
		uc.logger.Warn("snapshot cache fill failed",
			zap.String("user", data.UserKey), zap.String("tag", data.TagKey), zap.Error(err))
	}
}

func (uc *ReputationUsecase) finish(start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrDataCorruption):
		result = "corruption"
		uc.reportCorruption(err)
	case errors.Is(err, domain.ErrTryAgain):
		result = "conflict"
	default:
		result = "error"
	}
	uc.recorder.RecalculationDone(result, uc.clock().Sub(start))
}

func (uc *ReputationUsecase) reportCorruption(err error) {
	var corruption domain.DataCorruptionError
	if errors.As(err, &corruption) {
		uc.recorder.CorruptionDetected(corruption.Collection)
	}
	uc.logger.Error("stored document failed to decode", zap.Bool("operator_attention", true), zap.Error(err))
}

func checkPair(user, tag string) error {
	if !reputation.IsKeyComponent(user) {
		return domain.Invalid(schemas.Reputations, "invalid user key %q", user)
	}
	if !reputation.IsKeyComponent(tag) {
		return domain.Invalid(schemas.Reputations, "invalid tag key %q", tag)
	}
	return nil
}

func loadTag(ctx context.Context, store DocumentStore, key string) (domain.Tag, error) {
	doc, err := store.Get(ctx, schemas.Tags, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Tag{}, domain.NotFoundError{Resource: "tag"}
		}
		return domain.Tag{}, pkgerrors.Wrap(err, "failed to read tag")
	}
	return decodeTag(doc)
}
