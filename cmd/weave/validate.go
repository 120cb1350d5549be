package main

import (
	"fmt"
	"sort"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/cli"
	"github.com/aretw0/weave/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <pipeline.yaml>",
	Short: "Check a pipeline file",
	Long:  `Parses the pipeline file and checks that every step resolves to a registered implementation with valid parameters, then lists each step with the parameters it runs with, pipeline defaults included.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, nodes, err := cli.LoadPipeline(args[0])
		if err != nil {
			return err
		}
		eng, err := weave.New()
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Validate(cfg); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Printf("Pipeline is valid: %d steps, %d input nodes\n", len(cfg.Pipeline), len(nodes))
		for i, stage := range cfg.Pipeline {
			params, err := config.Effective(stage)
			if err != nil {
				return err
			}
			fmt.Printf("  %d. %-16s %s/%s", i+1, stage.Name, stage.Type, stage.Method)
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf(" %s=%v", k, params[k])
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
