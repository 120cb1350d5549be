package main

import (
	"fmt"
	"os"

	"github.com/aretw0/weave/internal/presentation/graph"
	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
}

var runsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List runs, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(cmd.Context(), storeOptions())
		if err != nil {
			return err
		}
		defer eng.Close()

		runs, err := eng.Catalog().ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		return tui.WriteRuns(os.Stdout, runs, tui.NewPalette(os.Stdout))
	},
}

var runsInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Show a run and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		markdown, _ := cmd.Flags().GetBool("markdown")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		eng, _, err := openEngine(cmd.Context(), storeOptions())
		if err != nil {
			return err
		}
		defer eng.Close()

		run, err := eng.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		switch {
		case mermaid:
			fmt.Print(graph.Pipeline(run))
		case markdown:
			md := tui.RunMarkdown(run)
			if !tui.IsTTY(os.Stdout) {
				fmt.Print(md)
				return nil
			}
			render, err := tui.NewRenderer(tui.Width(os.Stdout, 100))
			if err != nil {
				return err
			}
			out, err := render(md)
			if err != nil {
				return err
			}
			fmt.Print(out)
		default:
			return tui.WriteRun(os.Stdout, run, tui.NewPalette(os.Stdout))
		}
		return nil
	},
}

var runsCancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Mark a running run as errored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := openEngine(cmd.Context(), storeOptions())
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("run %s cancelled\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsInspectCmd, runsCancelCmd)
	runsInspectCmd.Flags().Bool("markdown", false, "render a markdown report")
	runsInspectCmd.Flags().Bool("mermaid", false, "print a Mermaid flowchart of the steps")
}
