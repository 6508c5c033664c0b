package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/domain"
)

var tracer = otel.Tracer("cache")

const casAttempts = 3

type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Add(item *memcache.Item) error
	CompareAndSwap(item *memcache.Item) error
}

type snapshotEntry struct {
	Version uint64                `json:"version"`
	Data    domain.ReputationData `json:"data"`
}

// SnapshotCache shares materialized reputations between instances through
// memcached. An entry is only ever replaced by a newer store version.
type SnapshotCache struct {
	mc  memcacheClient
	ttl time.Duration
}

func NewSnapshotCache(mc *memcache.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{mc: mc, ttl: ttl}
}

func snapshotKey(user, tag string) string {
	return fmt.Sprintf("reputation:%016x", xxh3.HashString(reputation.ComposeReputationKey(user, tag)))
}

func (c *SnapshotCache) Get(ctx context.Context, user, tag string) (domain.ReputationData, bool, error) {
	_, span := tracer.Start(ctx, "Cache.Snapshot.Get")
	defer span.End()

	item, err := c.mc.Get(snapshotKey(user, tag))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return domain.ReputationData{}, false, nil
		}
		span.RecordError(err)
		return domain.ReputationData{}, false, err
	}

	var entry snapshotEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return domain.ReputationData{}, false, nil
	}
	// hashed keys can collide
	if entry.Data.UserKey != user || entry.Data.TagKey != tag {
		return domain.ReputationData{}, false, nil
	}
	return entry.Data, true, nil
}

func (c *SnapshotCache) Put(ctx context.Context, data domain.ReputationData, version uint64) error {
	_, span := tracer.Start(ctx, "Cache.Snapshot.Put")
	defer span.End()

	value, err := json.Marshal(snapshotEntry{Version: version, Data: data})
	if err != nil {
		return err
	}
	key := snapshotKey(data.UserKey, data.TagKey)

	for range casAttempts {
		item, err := c.mc.Get(key)
		switch {
		case errors.Is(err, memcache.ErrCacheMiss):
			err = c.mc.Add(&memcache.Item{Key: key, Value: value, Expiration: c.expiration()})
			if errors.Is(err, memcache.ErrNotStored) {
				continue
			}
			return err
		case err != nil:
			span.RecordError(err)
			return err
		}

		var current snapshotEntry
		if json.Unmarshal(item.Value, &current) == nil && current.Version >= version &&
			current.Data.UserKey == data.UserKey && current.Data.TagKey == data.TagKey {
			return nil
		}

		item.Value = value
		item.Expiration = c.expiration()
		err = c.mc.CompareAndSwap(item)
		if errors.Is(err, memcache.ErrCASConflict) || errors.Is(err, memcache.ErrNotStored) {
			continue
		}
		return err
	}
	return nil
}

func (c *SnapshotCache) expiration() int32 {
	return int32(c.ttl / time.Second)
}
