package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("lock is already held")

// unlockScript deletes the key only while it still holds the caller's token.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// TryLock acquires the lock for name with SET NX EX. The returned unlock
// function must be called to release it; it only deletes the key if this
// caller still owns it.
func TryLock(ctx context.Context, r *Redis, name string, ttl time.Duration) (unlock func(), err error) {
	key := LockKeyPrefix + name
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// Background context so a cancelled request still releases the lock.
		_ = r.client.Eval(context.Background(), unlockScript, []string{key}, token).Err()
	}, nil
}

// IsLocked reports whether the lock for name is currently held.
func IsLocked(ctx context.Context, r *Redis, name string) bool {
	n, _ := r.client.Exists(ctx, LockKeyPrefix+name).Result()
	return n > 0
}
