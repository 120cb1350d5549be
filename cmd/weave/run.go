package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/cli"
	"github.com/aretw0/weave/internal/presentation/tui"
	weavehttp "github.com/aretw0/weave/pkg/adapters/http"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline.yaml>",
	Short: "Run a pipeline",
	Long:  `Creates a run for the pipeline file, feeds it the declared input nodes and drives every step in order. Failed runs can be continued with 'weave resume'.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		listen, _ := cmd.Flags().GetString("listen")
		return runPipeline(cmd.Context(), args[0], dryRun, listen)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "run without persisting anything")
	runCmd.Flags().String("listen", "", "serve the inspection API and event stream on this address while running")
}

func runPipeline(parent context.Context, path string, dryRun bool, listen string) error {
	cfg, nodes, err := cli.LoadPipeline(path)
	if err != nil {
		return err
	}

	sc := newSignalContext(parent)
	defer sc.Stop()

	opts := storeOptions()
	if dryRun {
		opts.Kind = cli.StoreMemory
		opts.EncryptionKey = ""
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	streams := weavehttp.NewStreamManager()
	logger, err := newLogger()
	if err != nil {
		return err
	}

	eng, _, err := openEngine(sc, opts,
		weave.WithLifecycleHooks(metrics.Hooks()),
		weave.WithLifecycleHooks(observability.LogHooks(logger)),
		weave.WithLifecycleHooks(streams.Hooks()),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	if listen != "" {
		srv := &http.Server{
			Addr: listen,
			Handler: weavehttp.New(eng.Catalog(),
				weavehttp.WithStreams(streams),
				weavehttp.WithGatherer(reg),
				weavehttp.WithLogger(logger),
				weavehttp.WithVersion(weave.Version),
			).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("inspection server failed", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		fmt.Fprintf(os.Stderr, "Inspection API on %s\n", listen)
	}

	run, out, err := execute(sc, eng, cfg, nodes, dryRun)
	p := tui.NewPalette(os.Stdout)
	if run == nil {
		return err
	}
	if err != nil {
		if loaded, lerr := eng.Load(context.WithoutCancel(sc), run.ID); lerr == nil {
			run = loaded
		}
		_ = tui.WriteRun(os.Stdout, run, p)
		if sig := sc.Signal(); sig != nil {
			fmt.Fprintf(os.Stderr, "Interrupted by %v.\n", sig)
		}
		if !dryRun {
			fmt.Fprintf(os.Stderr, "Continue with: weave resume %s\n", run.ID)
		}
		return err
	}

	fmt.Fprintf(os.Stdout, "run %s %s (%d nodes)\n", run.ID, p.Status(string(run.Status)), len(out))
	tui.WriteNodes(os.Stdout, out, p)
	return nil
}

func execute(ctx context.Context, eng *weave.Engine, cfg domain.Config, nodes []domain.Node, dryRun bool) (*domain.Run, []domain.Node, error) {
	if dryRun {
		return eng.DryRun(ctx, cfg, nodes)
	}
	return eng.Run(ctx, cfg, nodes)
}
