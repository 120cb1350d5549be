package runlock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/weave/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		rid := fmt.Sprintf("run-%d", i)
		require.NoError(t, mgr.WithLock(ctx, rid, func(context.Context) error { return nil }))
	}

	assert.Equal(t, 0, mgr.Active(), "lock entries must be released")
}

func TestManager_Serializes(t *testing.T) {
	mgr := NewManager(WithLocker(memory.NewLocker()))
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "run-1", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestManager_PropagatesError(t *testing.T) {
	mgr := NewManager()
	err := mgr.WithLock(context.Background(), "run-1", func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestManager_DistributedLockHeld(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	// Another replica holds the run.
	unlock, err := locker.Lock(ctx, "run-1", time.Minute)
	require.NoError(t, err)
	defer unlock(ctx)

	mgr := NewManager(WithLocker(locker))
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	called := false
	err = mgr.WithLock(waitCtx, "run-1", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
