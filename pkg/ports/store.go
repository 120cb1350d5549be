package ports

import (
	"context"
	"errors"
)

// ErrReadOnly is returned when a write is attempted inside a View transaction.
var ErrReadOnly = errors.New("write attempted in a read-only transaction")

// KV is a key/value pair returned by Tx.Scan.
type KV struct {
	Key   string
	Value []byte
}

// Tx is a single transaction over a Store.
// Reads observe the transaction's own pending writes.
type Tx interface {
	// Get returns the value stored at key.
	// Returns an error wrapping domain.ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Scan returns every pair whose key starts with prefix, ordered by key (byte-wise).
	Scan(prefix string) ([]KV, error)
}

// Store is an opaque transactional key/value store.
// Update commits when fn returns nil and discards every write otherwise;
// the commit is the durability point of a journal transition.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying resources.
	Close() error
}
