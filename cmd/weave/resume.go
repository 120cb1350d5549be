package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/aretw0/weave/pkg/observability"
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a failed or interrupted run",
	Long:  `Re-runs the first incomplete step of the run with the inputs it was given, then drives the remaining steps. Completed steps are not executed again.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := newSignalContext(cmd.Context())
		defer sc.Stop()

		logger, err := newLogger()
		if err != nil {
			return err
		}
		eng, _, err := openEngine(sc, storeOptions(), weave.WithLifecycleHooks(observability.LogHooks(logger)))
		if err != nil {
			return err
		}
		defer eng.Close()

		run, out, err := eng.Resume(sc, args[0])
		p := tui.NewPalette(os.Stdout)
		if err != nil {
			if run != nil {
				if loaded, lerr := eng.Load(context.WithoutCancel(sc), run.ID); lerr == nil {
					_ = tui.WriteRun(os.Stdout, loaded, p)
				}
			}
			return err
		}
		fmt.Fprintf(os.Stdout, "run %s %s (%d nodes)\n", run.ID, p.Status(string(run.Status)), len(out))
		tui.WriteNodes(os.Stdout, out, p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
