package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config configures the connection pool.
type Config struct {
	URL             string
	Table           string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns pool settings suitable for the CLI.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		Table:           "weave_records",
		PingTimeout:     2 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("postgres URL is required")
	}
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	if c.PingTimeout <= 0 {
		return errors.New("ping timeout must be positive")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max idle connections must be <= max open connections")
	}
	return nil
}

// Store implements ports.Store on a single key/value table.
type Store struct {
	db    *sql.DB
	table string
	owned bool
}

// Open connects through the pgx stdlib driver and creates the table if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{db: db, table: cfg.Table, owned: true}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an existing pool. Close leaves it open. Call Migrate before use.
func NewFromDB(db *sql.DB, table string) *Store {
	return &Store{db: db, table: table}
}

// Migrate creates the record table.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL
)`, s.table))
	if err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// View runs fn in a read-only SQL transaction.
func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// Update runs fn in a SQL transaction, committed when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	return s.run(ctx, nil, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(tx ports.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&tx{ctx: ctx, tx: sqlTx, table: s.table, readOnly: opts != nil && opts.ReadOnly}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the pool if the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

type tx struct {
	ctx      context.Context
	tx       *sql.Tx
	table    string
	readOnly bool
}

func (t *tx) Get(key string) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, t.table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", key, err)
	}
	return value, nil
}

func (t *tx) Set(key string, value []byte) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, t.table), key, value)
	if err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

func (t *tx) Delete(key string) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	if _, err := t.tx.ExecContext(t.ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, t.table), key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (t *tx) Scan(prefix string) ([]ports.KV, error) {
	rows, err := t.tx.QueryContext(t.ctx, fmt.Sprintf(
		`SELECT key, value FROM %s WHERE starts_with(key, $1) ORDER BY key COLLATE "C"`, t.table), prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	defer rows.Close()

	var kvs []ports.KV
	for rows.Next() {
		var kv ports.KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		kvs = append(kvs, kv)
	}
	return kvs, rows.Err()
}
