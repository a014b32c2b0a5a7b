package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/metrics"
)

// CachedSource is a read-through Redis cache in front of another ByteSource.
// Raw documents are stored under cache.DocumentKey(ref). Redis failures are
// logged and fall through to the wrapped source.
type CachedSource struct {
	next   ByteSource
	redis  *cache.Redis
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedSource wraps next. Documents expire after ttl or when invalidated.
func NewCachedSource(next ByteSource, r *cache.Redis, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:   next,
		redis:  r,
		ttl:    ttl,
		logger: log.WithComponent("fetcher"),
	}
}

// Fetch implements ByteSource.
func (s *CachedSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key := cache.DocumentKey(ref)
	data, err := s.redis.GetRaw(ctx, key)
	switch {
	case err == nil:
		metrics.DocumentCacheTotal.WithLabelValues("hit").Inc()
		return data, nil
	case !errors.Is(err, cache.ErrMiss):
		s.logger.Warn().Err(err).Str(log.FieldSourceRef, ref).Msg("document cache read failed")
	}
	metrics.DocumentCacheTotal.WithLabelValues("miss").Inc()

	data, err = s.next.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.redis.SetRaw(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldSourceRef, ref).Msg("document cache write failed")
	}
	return data, nil
}

// Invalidate drops the cached document for ref.
func (s *CachedSource) Invalidate(ctx context.Context, ref string) error {
	return cache.Del(ctx, s.redis, cache.DocumentKey(ref))
}
