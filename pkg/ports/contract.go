package ports

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
// Keys are namespaced per invocation so shared backends can be reused.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	ns := fmt.Sprintf("contract/%d/", time.Now().UnixNano())

	set := func(t *testing.T, pairs ...string) {
		t.Helper()
		err := store.Update(ctx, func(tx Tx) error {
			for i := 0; i+1 < len(pairs); i += 2 {
				if err := tx.Set(ns+pairs[i], []byte(pairs[i+1])); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}

	t.Run("Get Missing", func(t *testing.T) {
		err := store.View(ctx, func(tx Tx) error {
			_, err := tx.Get(ns + "missing")
			return err
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Set and Get", func(t *testing.T) {
		set(t, "k1", "v1")

		var got []byte
		err := store.View(ctx, func(tx Tx) error {
			var err error
			got, err = tx.Get(ns + "k1")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "v1", string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		set(t, "k2", "old")
		set(t, "k2", "new")

		err := store.View(ctx, func(tx Tx) error {
			got, err := tx.Get(ns + "k2")
			if err != nil {
				return err
			}
			assert.Equal(t, "new", string(got))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Scan Order and Prefix", func(t *testing.T) {
		set(t, "scan/b", "2", "scan/a", "1", "scan/c", "3", "scanx/z", "x")

		var kvs []KV
		err := store.View(ctx, func(tx Tx) error {
			var err error
			kvs, err = tx.Scan(ns + "scan/")
			return err
		})
		require.NoError(t, err)
		require.Len(t, kvs, 3)
		assert.Equal(t, ns+"scan/a", kvs[0].Key)
		assert.Equal(t, ns+"scan/b", kvs[1].Key)
		assert.Equal(t, ns+"scan/c", kvs[2].Key)
		assert.Equal(t, "3", string(kvs[2].Value))
	})

	t.Run("Scan Empty", func(t *testing.T) {
		err := store.View(ctx, func(tx Tx) error {
			kvs, err := tx.Scan(ns + "nothing/")
			assert.Empty(t, kvs)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("Rollback on Error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Update(ctx, func(tx Tx) error {
			if err := tx.Set(ns+"rolled-back", []byte("x")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		err = store.View(ctx, func(tx Tx) error {
			_, err := tx.Get(ns + "rolled-back")
			return err
		})
		assert.ErrorIs(t, err, domain.ErrNotFound, "writes of a failed Update must not be visible")
	})

	t.Run("Read Your Writes", func(t *testing.T) {
		set(t, "ryw/keep", "1", "ryw/drop", "2")

		err := store.Update(ctx, func(tx Tx) error {
			if err := tx.Set(ns+"ryw/new", []byte("3")); err != nil {
				return err
			}
			if err := tx.Delete(ns + "ryw/drop"); err != nil {
				return err
			}

			got, err := tx.Get(ns + "ryw/new")
			require.NoError(t, err)
			assert.Equal(t, "3", string(got))

			_, err = tx.Get(ns + "ryw/drop")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			kvs, err := tx.Scan(ns + "ryw/")
			require.NoError(t, err)
			keys := make([]string, len(kvs))
			for i, kv := range kvs {
				keys[i] = kv.Key
			}
			assert.Equal(t, []string{ns + "ryw/keep", ns + "ryw/new"}, keys)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Delete", func(t *testing.T) {
		set(t, "gone", "x")

		err := store.Update(ctx, func(tx Tx) error {
			if err := tx.Delete(ns + "gone"); err != nil {
				return err
			}
			return tx.Delete(ns + "never-existed")
		})
		require.NoError(t, err)

		err = store.View(ctx, func(tx Tx) error {
			_, err := tx.Get(ns + "gone")
			return err
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("View Is Read Only", func(t *testing.T) {
		err := store.View(ctx, func(tx Tx) error {
			return tx.Set(ns+"forbidden", []byte("x"))
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

// RunLockerContract verifies that a DistributedLocker excludes concurrent holders of the same key.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := fmt.Sprintf("contract-run-%d", time.Now().UnixNano())

	unlock, err := locker.Lock(ctx, key, 10*time.Second)
	require.NoError(t, err)

	t.Run("Held Lock Blocks", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()

		_, err := locker.Lock(waitCtx, key, 10*time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Other Keys Are Free", func(t *testing.T) {
		other, err := locker.Lock(ctx, key+"-other", 10*time.Second)
		require.NoError(t, err)
		require.NoError(t, other(ctx))
	})

	t.Run("Release", func(t *testing.T) {
		require.NoError(t, unlock(ctx))

		again, err := locker.Lock(ctx, key, 10*time.Second)
		require.NoError(t, err)
		require.NoError(t, again(ctx))
	})
}
