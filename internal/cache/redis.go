package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("cache miss")

// Key prefixes shared by everything that stores catalog state in Redis.
const (
	KeyPrefix         = "castvault:"
	DocumentKeyPrefix = KeyPrefix + "doc:"
	SnapshotKeyPrefix = KeyPrefix + "snapshot:"
	LockKeyPrefix     = KeyPrefix + "lock:"
)

// DocumentKey returns the key a raw catalog document for ref is stored under.
func DocumentKey(ref string) string { return DocumentKeyPrefix + ref }

// SnapshotKey returns the key a decoded snapshot for ref is stored under.
func SnapshotKey(ref string) string { return SnapshotKeyPrefix + ref }

// Redis wraps a go-redis client with JSON and raw byte helpers.
type Redis struct {
	client redis.UniversalClient
}

// New parses a Redis URL (e.g. "redis://host:6379/0") and returns a client.
// Call Ping to verify the connection.
func New(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Ping checks the connection to Redis.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// GetRaw returns the bytes stored under key, or ErrMiss.
func (r *Redis) GetRaw(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return raw, nil
}

// SetRaw stores data under key. A zero ttl keeps the key forever.
func (r *Redis) SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get fetches key and JSON-decodes the value. Returns ErrMiss when the key
// does not exist.
func Get[T any](ctx context.Context, r *Redis, key string) (T, error) {
	var zero T
	raw, err := r.GetRaw(ctx, key)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return v, nil
}

// Set JSON-encodes v and stores it under key with the given TTL.
func Set(ctx context.Context, r *Redis, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return r.SetRaw(ctx, key, data, ttl)
}

// Del deletes one or more exact keys.
func Del(ctx context.Context, r *Redis, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// DelPattern deletes all keys matching a glob pattern (e.g. "castvault:doc:*")
// using SCAN.
func DelPattern(ctx context.Context, r *Redis, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache del pattern %s: %w", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}
