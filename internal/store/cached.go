package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/models"
)

// Cache TTLs.
const (
	ttlSnapshot  = 5 * time.Minute
	ttlSnapshots = 1 * time.Minute
)

const snapshotListKey = cache.SnapshotKeyPrefix + "list"

// CachedStore wraps a Store with Redis caching. Reads are served from cache
// when possible; writes invalidate the affected keys.
type CachedStore struct {
	inner  Store
	cache  *cache.Redis
	logger zerolog.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c, logger: log.WithComponent("store")}
}

func (c *CachedStore) GetSnapshot(ctx context.Context, ref string) (*Snapshot, error) {
	key := cache.SnapshotKey(ref)
	if v, err := cache.Get[Snapshot](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	snap, err := c.inner.GetSnapshot(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, snap, ttlSnapshot)
	return snap, nil
}

func (c *CachedStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if v, err := cache.Get[[]SnapshotInfo](ctx, c.cache, snapshotListKey); err == nil {
		return v, nil
	}
	infos, err := c.inner.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, snapshotListKey, infos, ttlSnapshots)
	return infos, nil
}

func (c *CachedStore) SaveSnapshot(ctx context.Context, ref string, channels []models.Channel) (SnapshotInfo, error) {
	info, err := c.inner.SaveSnapshot(ctx, ref, channels)
	if err != nil {
		return SnapshotInfo{}, err
	}
	c.invalidate(ctx, cache.SnapshotKey(ref), snapshotListKey)
	return info, nil
}

func (c *CachedStore) DeleteSnapshot(ctx context.Context, ref string) error {
	err := c.inner.DeleteSnapshot(ctx, ref)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	c.invalidate(ctx, cache.SnapshotKey(ref), snapshotListKey)
	return err
}

func (c *CachedStore) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache del failed")
	}
}
