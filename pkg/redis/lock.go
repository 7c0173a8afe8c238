package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock is a best-effort cross-process mutex for batch jobs
// ⭐ SSOT: 동일 배치의 중복 실행 방지는 여기서만
type RunLock struct {
	client *Client
	prefix string
}

// NewRunLock creates a new run lock helper
func NewRunLock(client *Client, prefix string) *RunLock {
	return &RunLock{
		client: client,
		prefix: prefix,
	}
}

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TryAcquire takes the lock for name if it is free.
// Returns a release func when acquired. With Redis disabled the lock
// is always granted; in-process overlap is handled by the scheduler.
func (l *RunLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	noop := func(context.Context) error { return nil }
	if !l.client.Enabled() {
		return noop, true, nil
	}

	key := fmt.Sprintf("%s:lock:%s", l.prefix, name)
	token := uuid.NewString()

	ok, err := l.client.Redis().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.Redis(), []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("lock release failed: %w", err)
		}
		return nil
	}
	return release, true, nil
}
