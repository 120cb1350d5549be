package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/weave/pkg/adapters/badger"
	"github.com/aretw0/weave/pkg/adapters/memory"
	"github.com/aretw0/weave/pkg/adapters/postgres"
	"github.com/aretw0/weave/pkg/adapters/redis"
	"github.com/aretw0/weave/pkg/persistence/middleware"
	"github.com/aretw0/weave/pkg/ports"
)

// Store backends selectable with --store.
const (
	StoreBadger   = "badger"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreOptions selects and configures the record store.
type StoreOptions struct {
	Kind          string
	DataDir       string
	RedisAddr     string
	RedisPrefix   string
	PostgresDSN   string
	EncryptionKey string // hex encoded, 32 bytes
}

// Backend is an opened store with the locker matching it, if any.
type Backend struct {
	Store       ports.Store
	Middlewares []middleware.Middleware
	Locker      ports.DistributedLocker
}

// OpenStore opens the backend named by opts.Kind.
func OpenStore(ctx context.Context, opts StoreOptions, logger *slog.Logger) (*Backend, error) {
	var mws []middleware.Middleware
	if opts.EncryptionKey != "" {
		key, err := hex.DecodeString(strings.TrimSpace(opts.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("encryption key must be hex encoded: %w", err)
		}
		cfg := middleware.EncryptionConfig{ActiveKey: key}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(cfg))
	}

	switch opts.Kind {
	case StoreBadger, "":
		dir := opts.DataDir
		if dir == "" {
			dir = ".weave"
		}
		s, err := badger.Open(dir, badger.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store at %s: %w", dir, err)
		}
		return &Backend{Store: s, Middlewares: mws}, nil

	case StoreRedis:
		var ropts []redis.Option
		if opts.RedisPrefix != "" {
			ropts = append(ropts, redis.WithPrefix(opts.RedisPrefix))
		}
		s := redis.New(opts.RedisAddr, ropts...)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.RedisAddr, err)
		}
		prefix := opts.RedisPrefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		return &Backend{Store: s, Middlewares: mws, Locker: redis.NewLocker(s.Client(), prefix)}, nil

	case StorePostgres:
		s, err := postgres.Open(ctx, postgres.DefaultConfig(opts.PostgresDSN))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return &Backend{Store: s, Middlewares: mws}, nil

	case StoreMemory:
		return &Backend{Store: memory.NewStore(), Middlewares: mws}, nil

	default:
		return nil, fmt.Errorf("unknown store %q (want %s, %s, %s or %s)", opts.Kind, StoreBadger, StoreRedis, StorePostgres, StoreMemory)
	}
}
