package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stagehand/internal/constants"
)

// RunLock serializes batch runs across replicas with a Redis SetNX lock.
// One instance is shared by all HTTP requests, so the holder token is
// generated per acquisition and only stored once SetNX succeeds: a losing
// Acquire must not clobber the winner's token. Without Redis the lock
// degrades to a no-op: single-flight is then only guaranteed within one
// process by the HTTP handler's caller discipline.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = constants.DefaultRunLockTTL
	}
	return &RunLock{
		client: client,
		key:    constants.RunLockKey,
		ttl:    ttl,
	}
}

// Acquire returns false when another run currently holds the lock. The TTL
// bounds how long a crashed run can block its successors.
func (l *RunLock) Acquire(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release deletes the lock only if this run still holds it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RunLock) Release(ctx context.Context) error {
	if l.client == nil {
		return nil
	}

	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}
