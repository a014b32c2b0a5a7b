package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshJob asks a worker to rebuild the catalog snapshot for Ref.
type RefreshJob struct {
	ID          uuid.UUID `json:"id"`
	Ref         string    `json:"ref"`
	Invalidate  bool      `json:"invalidate"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefreshJob returns a job for ref stamped with a fresh ID.
func NewRefreshJob(ref string, invalidate bool) RefreshJob {
	return RefreshJob{
		ID:          uuid.New(),
		Ref:         ref,
		Invalidate:  invalidate,
		RequestedAt: time.Now().UTC(),
	}
}

// DefaultQueue is the Redis list key used for catalog refresh jobs.
const DefaultQueue = KeyPrefix + "jobs:refresh"

// Enqueue pushes a job onto the left side of a Redis list.
func Enqueue(ctx context.Context, r *Redis, queue string, job RefreshJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, queue, data).Err()
}

// Dequeue blocks until a job is available or the timeout expires. A timeout
// or a cancelled ctx yields (nil, nil) so the caller can loop and check for
// shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*RefreshJob, error) {
	result, err := r.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	var job RefreshJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}

// Pending returns the number of queued jobs.
func Pending(ctx context.Context, r *Redis, queue string) (int64, error) {
	return r.client.LLen(ctx, queue).Result()
}
