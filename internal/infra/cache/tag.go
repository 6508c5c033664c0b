package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/reputation-engine/internal/domain"
	"github.com/totegamma/reputation-engine/internal/usecase"
	"github.com/totegamma/reputation-engine/schemas"
)

// CachedStore keeps tag documents in process memory. Every recalculation
// reads its tag, while tags themselves change rarely. Writes through this
// store evict the entry; writes from other processes are picked up after ttl.
type CachedStore struct {
	usecase.DocumentStore
	cache *cache.Cache
}

func NewCachedStore(store usecase.DocumentStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		DocumentStore: store,
		cache:         cache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) Get(ctx context.Context, collection, key string) (domain.Document, error) {
	if collection != schemas.Tags {
		return s.DocumentStore.Get(ctx, collection, key)
	}

	if cached, found := s.cache.Get(key); found {
		return cached.(domain.Document), nil
	}

	doc, err := s.DocumentStore.Get(ctx, collection, key)
	if err != nil {
		return domain.Document{}, err
	}
	s.cache.Set(key, doc, cache.DefaultExpiration)
	return doc, nil
}

func (s *CachedStore) Set(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if doc.Collection == schemas.Tags {
		defer s.cache.Delete(doc.Key)
	}
	return s.DocumentStore.Set(ctx, doc)
}

func (s *CachedStore) Delete(ctx context.Context, collection, key string, version uint64) error {
	if collection == schemas.Tags {
		defer s.cache.Delete(key)
	}
	return s.DocumentStore.Delete(ctx, collection, key, version)
}
