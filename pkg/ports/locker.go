package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates writers of the same run across processes.
type DistributedLocker interface {
	// Lock blocks until the lock for key (a run ID) is acquired or ctx is done.
	// The lock is kept alive while held and expires ttl after its holder
	// stops, so a crashed process does not block the run forever.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
