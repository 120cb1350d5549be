package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	backend "github.com/dgraph-io/badger/v3"
)

// Store implements ports.Store on an embedded Badger database.
type Store struct {
	db     *backend.DB
	owned  bool
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	inMemory bool
}

// WithLogger routes Badger's internal logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// InMemory keeps every record in memory. Used by tests and dry runs.
func InMemory() Option {
	return func(c *config) {
		c.inMemory = true
	}
}

// Open opens (or creates) a Badger database in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	cfg := config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	bopts := backend.DefaultOptions(dir).WithLogger(&slogAdapter{logger: cfg.logger})
	if cfg.inMemory {
		bopts = backend.DefaultOptions("").WithInMemory(true).WithLogger(&slogAdapter{logger: cfg.logger})
	}

	db, err := backend.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", dir, err)
	}
	return &Store{db: db, owned: true, logger: cfg.logger}, nil
}

// NewFromDB wraps an already opened database. Close leaves it open.
func NewFromDB(db *backend.DB) *Store {
	return &Store{db: db, logger: logging.NewNop()}
}

// View runs fn in a read-only Badger transaction.
func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *backend.Txn) error {
		return fn(&tx{txn: txn, readOnly: true})
	})
}

// Update runs fn in a read-write Badger transaction, committed when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *backend.Txn) error {
		return fn(&tx{txn: txn})
	})
}

// Close closes the database if the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

type tx struct {
	txn      *backend.Txn
	readOnly bool
}

func (t *tx) Get(key string) ([]byte, error) {
	item, err := t.txn.Get([]byte(key))
	if errors.Is(err, backend.ErrKeyNotFound) {
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *tx) Set(key string, value []byte) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	return t.txn.Set([]byte(key), value)
}

func (t *tx) Delete(key string) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	return t.txn.Delete([]byte(key))
}

func (t *tx) Scan(prefix string) ([]ports.KV, error) {
	opts := backend.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	it := t.txn.NewIterator(opts)
	defer it.Close()

	var kvs []ports.KV
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", item.Key(), err)
		}
		kvs = append(kvs, ports.KV{Key: string(item.KeyCopy(nil)), Value: value})
	}
	return kvs, nil
}
