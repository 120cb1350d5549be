package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/weave/pkg/domain"
)

// Executor is the business logic of one step. It receives the previous step's
// output nodes and returns new nodes. Implementations set ParentNodeID on derived
// nodes and must not touch Ancestors.
type Executor interface {
	Execute(ctx context.Context, inputs []domain.Node) ([]domain.Node, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, inputs []domain.Node) ([]domain.Node, error)

func (f ExecutorFunc) Execute(ctx context.Context, inputs []domain.Node) ([]domain.Node, error) {
	return f(ctx, inputs)
}

// Factory builds the executor for a step record, usually decoding its
// parameters with DecodeConfig.
type Factory func(step domain.Step) (Executor, error)

// Key identifies a step implementation.
type Key struct {
	Type   string
	Method string
}

func (k Key) String() string {
	if k.Method == "" {
		return k.Type
	}
	return k.Type + "/" + k.Method
}

// Registry manages the available step implementations.
type Registry struct {
	mu        sync.RWMutex
	factories map[Key]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Key]Factory),
	}
}

// Register adds a factory under (typ, method).
// If one is already registered, it is overwritten.
func (r *Registry) Register(typ, method string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[Key{Type: typ, Method: method}] = f
}

// Has reports whether (typ, method) is registered.
func (r *Registry) Has(typ, method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[Key{Type: typ, Method: method}]
	return ok
}

// Keys lists the registered implementations in sorted order.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Build resolves and constructs the executor for step.
// Returns an error wrapping domain.ErrConfigMismatch if no factory matches.
func (r *Registry) Build(step domain.Step) (Executor, error) {
	key := Key{Type: step.Type, Method: step.Method}

	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no step implementation registered for %s (step %q)", domain.ErrConfigMismatch, key, step.Name)
	}
	exec, err := f(step)
	if err != nil {
		return nil, fmt.Errorf("failed to build step %q: %w", step.Name, err)
	}
	return exec, nil
}
