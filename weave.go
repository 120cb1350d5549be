package weave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weave/internal/engine"
	"github.com/aretw0/weave/internal/logging"
	"github.com/aretw0/weave/pkg/adapters/memory"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/persistence"
	"github.com/aretw0/weave/pkg/persistence/middleware"
	"github.com/aretw0/weave/pkg/ports"
	"github.com/aretw0/weave/pkg/registry"
	"github.com/aretw0/weave/pkg/runlock"
	"github.com/aretw0/weave/pkg/steps"
)

// Engine is the high-level entry point for the library.
// It wires a store, the step registry and the run controller together.
type Engine struct {
	store      ports.Store
	repo       *persistence.Repository
	controller *engine.Controller
	registry   *registry.Registry
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
}

// Option defines a functional option for configuring the Engine.
type Option func(*config)

type config struct {
	store       ports.Store
	registry    *registry.Registry
	logger      *slog.Logger
	hooks       []domain.LifecycleHooks
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	middlewares []middleware.Middleware
}

// WithStore sets the backing store. Defaults to an in-memory store.
func WithStore(s ports.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithMiddleware wraps the store; the first middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *config) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithRegistry sets the step registry. Defaults to the built-in steps.
func WithRegistry(r *registry.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithLifecycleHooks registers observability hooks. It may be given several times.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = append(c.hooks, h)
	}
}

// WithDistributedLocker guards runs across processes.
func WithDistributedLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(c *config) {
		c.locker = l
		c.lockTTL = ttl
	}
}

// New initializes an Engine.
func New(opts ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = memory.NewStore()
	}
	if cfg.registry == nil {
		cfg.registry = steps.Default()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	store := middleware.Chain(cfg.store, cfg.middlewares...)

	lockOpts := []runlock.Option{runlock.WithLogger(cfg.logger)}
	if cfg.locker != nil {
		lockOpts = append(lockOpts, runlock.WithLocker(cfg.locker))
		if cfg.lockTTL > 0 {
			lockOpts = append(lockOpts, runlock.WithTTL(cfg.lockTTL))
		}
	}

	e := &Engine{
		store:    store,
		repo:     persistence.New(store),
		registry: cfg.registry,
		logger:   cfg.logger,
		hooks:    domain.CombineHooks(cfg.hooks...),
	}
	e.controller = engine.NewController(e.repo, e.registry,
		engine.WithLogger(cfg.logger),
		engine.WithHooks(e.hooks),
		engine.WithLocks(runlock.NewManager(lockOpts...)),
	)
	return e, nil
}

// Registry returns the step registry, for registering custom steps.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Catalog returns the read side of the run records.
func (e *Engine) Catalog() ports.Catalog {
	return e.repo
}

// Validate checks cfg against the registered steps without recording anything.
func (e *Engine) Validate(cfg domain.Config) error {
	return e.controller.Validate(cfg)
}

// Run records a new run of cfg and drives it over inputs.
// The run is returned even when a step fails, so callers can inspect or resume it.
func (e *Engine) Run(ctx context.Context, cfg domain.Config, inputs []domain.Node) (*domain.Run, []domain.Node, error) {
	run, err := e.controller.CreateWithSteps(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	out, err := e.controller.Execute(ctx, run, inputs)
	return run, out, err
}

// DryRun drives cfg over inputs without persisting anything.
func (e *Engine) DryRun(ctx context.Context, cfg domain.Config, inputs []domain.Node) (*domain.Run, []domain.Node, error) {
	ctrl := engine.NewController(nil, e.registry,
		engine.WithLogger(e.logger),
		engine.WithHooks(e.hooks),
	)
	run, err := ctrl.CreateWithSteps(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	out, err := ctrl.Execute(ctx, run, inputs)
	return run, out, err
}

// Resume continues a failed or interrupted run from its first incomplete step.
func (e *Engine) Resume(ctx context.Context, runID string) (*domain.Run, []domain.Node, error) {
	return e.controller.Resume(ctx, runID)
}

// Restart returns the inputs and the remaining steps of a failed run without
// changing it.
func (e *Engine) Restart(ctx context.Context, runID string) ([]domain.Node, []domain.Step, error) {
	run, err := e.controller.Load(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	failed, ok := run.FirstIncomplete()
	if !ok {
		return nil, nil, fmt.Errorf("%w: run %s has no incomplete step", domain.ErrNotRestartable, runID)
	}
	return e.controller.Restart(ctx, run, *failed)
}

// Cancel marks a running run errored.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	run, err := e.controller.Load(ctx, runID)
	if err != nil {
		return err
	}
	return e.controller.Update(ctx, run, domain.RunErrored)
}

// Load returns a run with its steps.
func (e *Engine) Load(ctx context.Context, runID string) (*domain.Run, error) {
	return e.controller.Load(ctx, runID)
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}
