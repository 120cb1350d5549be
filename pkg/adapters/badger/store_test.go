package badger_test

import (
	"context"
	"testing"

	"github.com/aretw0/weave/pkg/adapters/badger"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_Contract(t *testing.T) {
	store, err := badger.Open("", badger.InMemory())
	require.NoError(t, err)
	defer store.Close()

	ports.RunStoreContract(t, store)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := badger.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(tx ports.Tx) error {
		return tx.Set("run/r1", []byte(`{"id":"r1"}`))
	}))
	require.NoError(t, store.Close())

	reopened, err := badger.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.View(ctx, func(tx ports.Tx) error {
		got, err := tx.Get("run/r1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"r1"}`, string(got))
		return nil
	}))
}
