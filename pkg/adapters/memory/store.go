package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/ports"
)

// Store implements ports.Store in memory.
// Safe for concurrent use. Update transactions are serialized.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// View runs fn against a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{store: s, readOnly: true})
}

// Update runs fn and applies its writes only if it returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, pending: make(map[string][]byte)}
	if err := fn(t); err != nil {
		return err
	}
	for k, v := range t.pending {
		if v == nil {
			delete(s.data, k)
			continue
		}
		s.data[k] = v
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// tx overlays pending writes on the store map. A nil pending value marks a deletion.
type tx struct {
	store    *Store
	readOnly bool
	pending  map[string][]byte
}

func (t *tx) Get(key string) ([]byte, error) {
	if v, ok := t.pending[key]; ok {
		if v == nil {
			return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
		}
		return clone(v), nil
	}
	v, ok := t.store.data[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	return clone(v), nil
}

func (t *tx) Set(key string, value []byte) error {
	if t.readOnly {
		return ports.ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	t.pending[key] = clone(value)
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
	merged := make(map[string][]byte)
	for k, v := range t.store.data {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
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
		kvs = append(kvs, ports.KV{Key: k, Value: clone(v)})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
