package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/schemas"
)

// CommitEvent describes a write that has reached the store.
type CommitEvent struct {
	Kind     domain.CommitKind
	Document domain.Document
	Previous *domain.Document
}

// DocumentUsecase is the client write path: validate, commit, then notify.
type DocumentUsecase struct {
	store     DocumentStore
	validator *Validator
	hooks     []PostCommitHook
	recorder  Recorder
	logger    *zap.Logger
	retry     RetryOptions
	pageSize  int
	wg        conc.WaitGroup
}

func NewDocumentUsecase(
	store DocumentStore,
	validator *Validator,
	recorder Recorder,
	logger *zap.Logger,
	config domain.Config,
	hooks ...PostCommitHook,
) *DocumentUsecase {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentUsecase{
		store:     store,
		validator: validator,
		hooks:     hooks,
		recorder:  recorder,
		logger:    logger.Named("document"),
		retry:     retryOptions(config),
		pageSize:  config.ListPageSize,
	}
}

func (uc *DocumentUsecase) Get(ctx context.Context, collection, key string) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Get")
	defer span.End()

	if !schemas.IsKnownCollection(collection) {
		return domain.Document{}, domain.Invalid(collection, "unknown collection")
	}
	doc, err := uc.store.Get(ctx, collection, key)
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}
	return doc, nil
}

func (uc *DocumentUsecase) List(ctx context.Context, collection string, filter domain.ListFilter) (domain.ListPage, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.List")
	defer span.End()

	if !schemas.IsKnownCollection(collection) {
		return domain.ListPage{}, domain.Invalid(collection, "unknown collection")
	}
	if filter.Limit <= 0 || (uc.pageSize > 0 && filter.Limit > uc.pageSize) {
		filter.Limit = uc.pageSize
	}
	page, err := uc.store.List(ctx, collection, filter)
	if err != nil {
		span.RecordError(err)
		return domain.ListPage{}, err
	}
	return page, nil
}

// Commit validates write, stores it and schedules the post-commit hooks. The
// returned document is the stored version; hooks may still be running.
func (uc *DocumentUsecase) Commit(ctx context.Context, write domain.DocumentWrite) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("collection", write.Collection), attribute.String("key", write.Key))

	var previous *domain.Document
	current, err := uc.store.Get(ctx, write.Collection, write.Key)
	switch {
	case err == nil:
		previous = &current
	case errors.Is(err, domain.ErrNotFound):
	default:
		span.RecordError(err)
		return domain.Document{}, pkgerrors.Wrap(err, "failed to read previous document")
	}

	if err := uc.validator.Validate(ctx, write, previous); err != nil {
		uc.reject(write.Collection, write.Key, err)
		span.RecordError(err)
		return domain.Document{}, err
	}

	owner, description, err := describe(write)
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}

	saved, err := uc.store.Set(ctx, domain.Document{
		Collection:  write.Collection,
		Key:         write.Key,
		Owner:       owner,
		Description: description,
		Data:        write.Data,
		Version:     write.Version,
	})
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}

	kind := domain.CommitKindCreate
	if previous != nil {
		kind = domain.CommitKindUpdate
	}
	uc.notify(ctx, CommitEvent{Kind: kind, Document: saved, Previous: previous})

	return saved, nil
}

// Delete removes a document at the expected version and schedules the hooks.
func (uc *DocumentUsecase) Delete(ctx context.Context, caller, collection, key string, version uint64) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("key", key))

	previous, err := uc.store.Get(ctx, collection, key)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := uc.validator.ValidateDelete(collection, caller, previous); err != nil {
		uc.reject(collection, key, err)
		span.RecordError(err)
		return err
	}

	if err := uc.store.Delete(ctx, collection, key, version); err != nil {
		span.RecordError(err)
		return err
	}

	uc.notify(ctx, CommitEvent{Kind: domain.CommitKindDelete, Document: previous, Previous: &previous})
	return nil
}

// Wait blocks until every scheduled hook has finished.
func (uc *DocumentUsecase) Wait() {
	uc.wg.Wait()
}

func (uc *DocumentUsecase) reject(collection, key string, err error) {
	if errors.Is(err, domain.ErrValidation) {
		uc.recorder.ValidationRejected(collection)
	}
	uc.logger.Debug("write rejected", zap.String("collection", collection), zap.String("key", key), zap.Error(err))
}

// notify runs the hooks detached from the request. Failures are retried, then
// logged and counted; the committed write stays in place either way.
func (uc *DocumentUsecase) notify(ctx context.Context, event CommitEvent) {
	if len(uc.hooks) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)

	for _, hook := range uc.hooks {
		uc.wg.Go(func() {
			err := withRetry(detached, uc.retry, func() error {
				return hook.AfterCommit(detached, event)
			})
			if err != nil {
				uc.recorder.HookFailed(event.Document.Collection)
				uc.logger.Error("post-commit hook failed",
					zap.String("collection", event.Document.Collection),
					zap.String("key", event.Document.Key),
					zap.Stringer("kind", event.Kind),
					zap.Error(err),
				)
			}
		})
	}
}

// describe derives the owner and the searchable description of a validated
// write.
func describe(write domain.DocumentWrite) (string, string, error) {
	switch write.Collection {
	case schemas.Votes:
		var payload votePayload
		if err := json.Unmarshal(write.Data, &payload); err != nil {
			return "", "", pkgerrors.Wrap(err, "failed to describe vote")
		}
		return payload.AuthorKey, reputation.ComposeDescription(
			schemas.TermAuthor, payload.AuthorKey,
			schemas.TermTarget, payload.TargetKey,
			schemas.TermTag, payload.TagKey,
		), nil
	case schemas.Tags:
		var payload tagPayload
		if err := json.Unmarshal(write.Data, &payload); err != nil {
			return "", "", pkgerrors.Wrap(err, "failed to describe tag")
		}
		return write.Caller, reputation.ComposeDescription(schemas.TermName, strings.ToLower(payload.Name)), nil
	case schemas.Users:
		var payload userPayload
		if err := json.Unmarshal(write.Data, &payload); err != nil {
			return "", "", pkgerrors.Wrap(err, "failed to describe user")
		}
		return write.Caller, reputation.ComposeDescription(schemas.TermHandle, strings.ToLower(payload.Handle)), nil
	default:
		return write.Caller, "", nil
	}
}
