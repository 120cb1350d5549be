package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/cli"
	"github.com/aretw0/weave/internal/logging"
	"github.com/spf13/cobra"
)

// globals holds the persistent flags shared by every command.
var globals struct {
	store         string
	dataDir       string
	redisAddr     string
	dsn           string
	encryptionKey string
	logLevel      string
	logFormat     string
}

var rootCmd = &cobra.Command{
	Use:           "weave",
	Short:         "weave runs durable, lineage-tracking text pipelines",
	Long:          `weave executes a pipeline of steps over batches of nodes, records every step so failed runs can be resumed, and tracks which output came from which input.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&globals.store, "store", envOr("WEAVE_STORE", cli.StoreBadger), "record store: badger, redis, postgres or memory")
	f.StringVar(&globals.dataDir, "data-dir", envOr("WEAVE_DATA_DIR", ".weave"), "badger data directory")
	f.StringVar(&globals.redisAddr, "redis-addr", envOr("WEAVE_REDIS_ADDR", "localhost:6379"), "redis address")
	f.StringVar(&globals.dsn, "dsn", envOr("WEAVE_POSTGRES_DSN", ""), "postgres connection URL")
	f.StringVar(&globals.encryptionKey, "encryption-key", envOr("WEAVE_ENCRYPTION_KEY", ""), "hex encoded AES-256 key for stored records")
	f.StringVar(&globals.logLevel, "log-level", envOr("WEAVE_LOG_LEVEL", "warn"), "log level: debug, info, warn or error")
	f.StringVar(&globals.logFormat, "log-format", envOr("WEAVE_LOG_FORMAT", string(logging.FormatText)), "log format: text or json")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func newLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(globals.logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level, logging.Format(globals.logFormat), os.Stderr), nil
}

func storeOptions() cli.StoreOptions {
	return cli.StoreOptions{
		Kind:          globals.store,
		DataDir:       globals.dataDir,
		RedisAddr:     globals.redisAddr,
		PostgresDSN:   globals.dsn,
		EncryptionKey: globals.encryptionKey,
	}
}

// openEngine builds the engine for the store described by opts.
func openEngine(ctx context.Context, opts cli.StoreOptions, extra ...weave.Option) (*weave.Engine, *slog.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	eng, err := cli.NewEngine(ctx, opts, logger, extra...)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

// newSignalContext cancels on the first interrupt so the current step fails and
// the run stays resumable; a second interrupt exits at once.
func newSignalContext(parent context.Context) *cli.SignalContext {
	return cli.NewSignalContext(parent, cli.WithForceHandler(func(sig os.Signal) {
		fmt.Fprintf(os.Stderr, "\nReceived %v again, exiting without waiting for the step.\n", sig)
		os.Exit(130)
	}))
}
