package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/internal/infra/database"
	"github.com/totegamma/reputation-engine/internal/infra/database/models"
)

func newTestRepository(t *testing.T) (*DocumentRepository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	repo := NewDocumentRepository(db)
	repo.clock = func() time.Time { return time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC) }
	return repo, db
}

func TestDocumentRepositoryOptimisticWrites(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Set(ctx, domain.Document{Collection: "votes", Key: "a:b:t", Owner: "a", Data: []byte(`{"value":1}`)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.Version)
	assert.Equal(t, `{"value":1}`, string(created.Data))

	_, err = repo.Set(ctx, domain.Document{Collection: "votes", Key: "a:b:t", Owner: "a", Data: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrConflict, "create over an existing document")

	_, err = repo.Set(ctx, domain.Document{Collection: "votes", Key: "a:b:t", Owner: "a", Data: []byte(`{}`), Version: 7})
	assert.ErrorIs(t, err, domain.ErrConflict, "stale version")

	repo.clock = func() time.Time { return time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC) }
	updated, err := repo.Set(ctx, domain.Document{Collection: "votes", Key: "a:b:t", Owner: "a", Data: []byte(`{"value":-1}`), Version: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Version)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	_, err = repo.Set(ctx, domain.Document{Collection: "votes", Key: "x:y:t", Owner: "x", Data: []byte(`{}`), Version: 1})
	assert.ErrorIs(t, err, domain.ErrConflict, "update of a missing document")

	var logs int64
	require.NoError(t, db.Model(&models.CommitLog{}).Count(&logs).Error)
	assert.Equal(t, int64(2), logs)
}

func TestDocumentRepositoryGetAndDelete(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "votes", "a:b:t")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	doc, err := repo.Set(ctx, domain.Document{Collection: "votes", Key: "a:b:t", Owner: "a", Data: []byte(`{}`)})
	require.NoError(t, err)

	_, err = repo.Get(ctx, "tags", "a:b:t")
	assert.ErrorIs(t, err, domain.ErrNotFound, "collections are separate namespaces")

	assert.ErrorIs(t, repo.Delete(ctx, "votes", "a:b:t", doc.Version+1), domain.ErrConflict)
	require.NoError(t, repo.Delete(ctx, "votes", "a:b:t", doc.Version))
	assert.ErrorIs(t, repo.Delete(ctx, "votes", "a:b:t", doc.Version), domain.ErrNotFound)

	_, err = repo.Get(ctx, "votes", "a:b:t")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentRepositoryListMatchesTermsExactly(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for _, d := range []domain.Document{
		{Collection: "tags", Key: "t1", Owner: "admin", Description: ";name=kindness;"},
		{Collection: "tags", Key: "t2", Owner: "admin", Description: ";name=Kindness;"},
		{Collection: "tags", Key: "t3", Owner: "admin", Description: ";name=kind_ness;"},
		{Collection: "tags", Key: "t4", Owner: "admin", Description: ";name=kindnessx;"},
	} {
		d.Data = []byte(`{}`)
		_, err := repo.Set(ctx, d)
		require.NoError(t, err)
	}

	page, err := repo.List(ctx, "tags", domain.ListFilter{Description: []string{";name=kindness;"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t1", page.Items[0].Key)
	assert.Empty(t, page.Next)

	page, err = repo.List(ctx, "tags", domain.ListFilter{Description: []string{";name=kind_ness;"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t3", page.Items[0].Key)
}

func TestDocumentRepositoryListPages(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for i := range 7 {
		owner := "alice"
		if i%2 == 1 {
			owner = "bob"
		}
		_, err := repo.Set(ctx, domain.Document{
			Collection: "votes",
			Key:        fmt.Sprintf("%s:target%d:t", owner, i),
			Owner:      owner,
			Data:       []byte(`{}`),
		})
		require.NoError(t, err)
	}

	var keys []string
	filter := domain.ListFilter{Owner: "alice", KeyPrefix: "alice:", Limit: 3}
	for {
		page, err := repo.List(ctx, "votes", filter)
		require.NoError(t, err)
		for _, doc := range page.Items {
			keys = append(keys, doc.Key)
		}
		if page.Next == "" {
			break
		}
		filter.After = page.Next
	}

	assert.Equal(t, []string{"alice:target0:t", "alice:target2:t", "alice:target4:t", "alice:target6:t"}, keys)
}
