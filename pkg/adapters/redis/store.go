package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

const scanBatch = 256

// DefaultPrefix namespaces every key written by the Store.
const DefaultPrefix = "weave:"

// Store implements ports.Store on Redis.
// Records are plain strings; a sorted set ("<prefix>index") holds every key
// with score 0 so prefix scans can use ZRANGEBYLEX.
// Update buffers writes and commits them in a single MULTI/EXEC.
type Store struct {
	client *backend.Client
	prefix string
	owned  bool
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the namespace of every Redis key. Defaults to "weave:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to the Redis server at addr.
func New(addr string, opts ...Option) *Store {
	s := NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
	s.owned = true
	return s
}

// NewFromClient wraps an existing client. Close leaves the client open.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// View runs fn with direct reads.
func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	return fn(&tx{ctx: ctx, store: s, readOnly: true})
}

// Update runs fn and commits its buffered writes atomically if it returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	t := &tx{ctx: ctx, store: s, pending: make(map[string][]byte)}
	if err := fn(t); err != nil {
		return err
	}
	if len(t.pending) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for k, v := range t.pending {
			if v == nil {
				pipe.Del(ctx, s.dataKey(k))
				pipe.ZRem(ctx, s.indexKey(), k)
				continue
			}
			pipe.Set(ctx, s.dataKey(k), v, 0)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: 0, Member: k})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit failed: %w", err)
	}
	return nil
}

// Close closes the client if the Store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) dataKey(key string) string {
	return s.prefix + "kv:" + key
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

type tx struct {
	ctx      context.Context
	store    *Store
	readOnly bool
	pending  map[string][]byte // nil value marks a deletion
}

func (t *tx) Get(key string) ([]byte, error) {
	if v, ok := t.pending[key]; ok {
		if v == nil {
			return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
		}
		return append([]byte(nil), v...), nil
	}

	val, err := t.store.client.Get(t.ctx, t.store.dataKey(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (t *tx) Set(key string, value []byte) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	t.pending[key] = append([]byte(nil), value...)
	return nil
}

func (t *tx) Delete(key string) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	t.pending[key] = nil
	return nil
}

func (t *tx) Scan(prefix string) ([]ports.KV, error) {
	keys, err := t.store.client.ZRangeByLex(t.ctx, t.store.indexKey(), &backend.ZRangeBy{
		Min: "[" + prefix,
		Max: "[" + prefix + "\xff",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis index scan %q: %w", prefix, err)
	}

	merged := make(map[string][]byte, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		batch := keys[start:end]

		dataKeys := make([]string, len(batch))
		for i, k := range batch {
			dataKeys[i] = t.store.dataKey(k)
		}
		vals, err := t.store.client.MGet(t.ctx, dataKeys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis mget: %w", err)
		}
		for i, v := range vals {
			// Index entries may outlive their record if a commit was interrupted.
			if s, ok := v.(string); ok {
				merged[batch[i]] = []byte(s)
			}
		}
	}

	for k, v := range t.pending {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	kvs := make([]ports.KV, 0, len(merged))
	for k, v := range merged {
		kvs = append(kvs, ports.KV{Key: k, Value: v})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}
