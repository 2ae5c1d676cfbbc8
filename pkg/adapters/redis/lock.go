package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/callgate/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// DefaultRetry is how often a contended lock is retried.
const DefaultRetry = 100 * time.Millisecond

const refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Locker implements ports.DistributedLocker using Redis.
// Only one process may drive the call gate of a save at a time.
type Locker struct {
	client *backend.Client
	prefix string
	retry  time.Duration
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		retry:  DefaultRetry,
	}
}

// Lock acquires a distributed lock for the given key using SET NX PX.
// It blocks until the lock is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey, token, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return l.release(lockKey, token), nil
}

// Hold acquires the lock like Lock and keeps extending its TTL until the returned
// UnlockFunc is called or ctx is done. It is meant for process-lifetime ownership.
func (l *Locker) Hold(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey, token, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}

	holdCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-holdCtx.Done():
				return
			case <-ticker.C:
				_ = l.client.Eval(holdCtx, refreshScript, []string{lockKey}, token, ttl.Milliseconds()).Err()
			}
		}
	}()

	unlock := l.release(lockKey, token)
	return func(ctx context.Context) error {
		cancel()
		<-done
		return unlock(ctx)
	}, nil
}

func (l *Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, string, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			return "", "", fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			return lockKey, token, nil
		}

		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// release only deletes the key while it still holds token.
func (l *Locker) release(lockKey, token string) ports.UnlockFunc {
	return func(ctx context.Context) error {
		return l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err()
	}
}
