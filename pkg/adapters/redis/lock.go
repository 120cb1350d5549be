package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/weave/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// refreshScript extends the lock only if it still holds our token.
var refreshScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis.
// A held lock is refreshed in the background until it is released, so the TTL
// only bounds how long a crashed holder keeps it.
type Locker struct {
	client  *backend.Client
	prefix  string
	poll    time.Duration
	refresh time.Duration
}

// LockerOption configures the Locker.
type LockerOption func(*Locker)

// WithRefreshInterval sets how often a held lock is extended. The default is a
// third of the TTL passed to Lock.
func WithRefreshInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.refresh = d
	}
}

// NewLocker creates a new Redis locker. Lock keys are "<prefix>lock:<run-id>".
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires the run lock using SET NX PX, polling until ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrLockAcquire, err)
		}
		if ok {
			return l.hold(ctx, lockKey, token, ttl), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold keeps lockKey alive until the returned UnlockFunc runs.
// A lock taken without a TTL never expires and is not refreshed.
func (l *Locker) hold(ctx context.Context, lockKey, token string, ttl time.Duration) ports.UnlockFunc {
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}
	if ttl <= 0 {
		return release
	}
	interval := l.refresh
	if interval <= 0 {
		interval = ttl / 3
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	// Refreshing outlives a canceled caller; only the unlock stops it.
	refreshCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				n, err := refreshScript.Run(refreshCtx, l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
				if err == nil && n == 0 {
					// Expired or taken over; nothing left to keep alive.
					return
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stop()
			<-done
			err = release(ctx)
		})
		return err
	}
}
