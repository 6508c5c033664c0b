package usecase

import (
	"context"
	"time"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
)

// DocumentStore is the keyed, versioned document store every component reads
// and writes through.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) (domain.Document, error)
	List(ctx context.Context, collection string, filter domain.ListFilter) (domain.ListPage, error)
	Set(ctx context.Context, doc domain.Document) (domain.Document, error)
	Delete(ctx context.Context, collection, key string, version uint64) error
}

// SnapshotCache is a shared read cache in front of the reputations collection.
type SnapshotCache interface {
	Get(ctx context.Context, user, tag string) (domain.ReputationData, bool, error)
	Put(ctx context.Context, data domain.ReputationData, version uint64) error
}

// EventPublisher fans reputation updates out to realtime listeners.
type EventPublisher interface {
	Publish(ctx context.Context, event reputation.Event) error
}

// PostCommitHook reacts to a write after it has been committed.
type PostCommitHook interface {
	AfterCommit(ctx context.Context, event CommitEvent) error
}

// Recorder receives operational counters.
type Recorder interface {
	RecalculationDone(result string, elapsed time.Duration)
	ConflictRetried(collection string)
	ValidationRejected(collection string)
	HookFailed(collection string)
	CorruptionDetected(collection string)
}

type nopRecorder struct{}

func (nopRecorder) RecalculationDone(string, time.Duration) {}
func (nopRecorder) ConflictRetried(string)                  {}
func (nopRecorder) ValidationRejected(string)               {}
func (nopRecorder) HookFailed(string)                       {}
func (nopRecorder) CorruptionDetected(string)               {}
