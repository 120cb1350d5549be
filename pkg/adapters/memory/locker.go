package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/weave/pkg/ports"
)

// hold is one acquisition of a key.
type hold struct {
	token  uint64
	expiry time.Time
}

// Locker implements ports.DistributedLocker inside a single process.
// Held locks are extended every third of their TTL until released; a lock
// whose holder stopped extending it is taken over by the next caller.
type Locker struct {
	mu    sync.Mutex
	held  map[string]hold
	next  uint64
	wake  chan struct{}
	clock func() time.Time
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{
		held:  make(map[string]hold),
		wake:  make(chan struct{}),
		clock: time.Now,
	}
}

// Lock blocks until key is free, expired, or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	for {
		l.mu.Lock()
		now := l.clock()
		cur, taken := l.held[key]
		if !taken || now.After(cur.expiry) {
			l.next++
			h := hold{token: l.next, expiry: now.Add(ttl)}
			l.held[key] = h
			l.mu.Unlock()
			return l.keep(key, h.token, ttl), nil
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		case <-time.After(time.Until(cur.expiry)):
		}
	}
}

// keep extends the hold identified by token until the returned UnlockFunc runs.
func (l *Locker) keep(key string, token uint64, ttl time.Duration) ports.UnlockFunc {
	stop := make(chan struct{})
	done := make(chan struct{})
	interval := ttl / 3
	if interval <= 0 {
		// Nothing sensible to extend.
		close(done)
		return l.unlockFunc(key, token, stop, done)
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !l.extend(key, token, ttl) {
					return
				}
			}
		}
	}()

	return l.unlockFunc(key, token, stop, done)
}

func (l *Locker) unlockFunc(key string, token uint64, stop, done chan struct{}) ports.UnlockFunc {
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done

			l.mu.Lock()
			defer l.mu.Unlock()
			// Only the holder that set token may release; a lock taken over after expiry stays.
			if cur, ok := l.held[key]; ok && cur.token == token {
				delete(l.held, key)
				close(l.wake)
				l.wake = make(chan struct{})
			}
		})
		return nil
	}
}

func (l *Locker) extend(key string, token uint64, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[key]
	if !ok || cur.token != token {
		return false
	}
	cur.expiry = l.clock().Add(ttl)
	l.held[key] = cur
	return true
}
