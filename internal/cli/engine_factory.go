package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/pkg/config"
	"github.com/aretw0/weave/pkg/domain"
)

// NewEngine opens the configured store and builds an engine on top of it.
// The returned engine owns the store; closing it releases the backend.
func NewEngine(ctx context.Context, opts StoreOptions, logger *slog.Logger, extra ...weave.Option) (*weave.Engine, error) {
	backend, err := OpenStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	engineOpts := []weave.Option{
		weave.WithStore(backend.Store),
		weave.WithMiddleware(backend.Middlewares...),
		weave.WithLogger(logger),
	}
	if backend.Locker != nil {
		engineOpts = append(engineOpts, weave.WithDistributedLocker(backend.Locker, 0))
	}
	engineOpts = append(engineOpts, extra...)

	eng, err := weave.New(engineOpts...)
	if err != nil {
		_ = backend.Store.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return eng, nil
}

// LoadPipeline reads a pipeline file and builds its root nodes.
func LoadPipeline(path string) (domain.Config, []domain.Node, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return domain.Config{}, nil, err
	}
	nodes, err := config.InputNodes(cfg)
	if err != nil {
		return domain.Config{}, nil, err
	}
	return cfg, nodes, nil
}
