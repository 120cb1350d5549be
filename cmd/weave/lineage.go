package main

import (
	"fmt"
	"os"

	"github.com/aretw0/weave/internal/presentation/graph"
	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage <node-id>",
	Short: "Show where a node came from",
	Long:  `Lists, in pipeline order, the steps that led to the node and the ancestor each step consumed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		ctx := cmd.Context()

		eng, _, err := openEngine(ctx, storeOptions())
		if err != nil {
			return err
		}
		defer eng.Close()

		catalog := eng.Catalog()
		node, err := catalog.GetNode(ctx, args[0])
		if err != nil {
			return err
		}
		edges, err := catalog.Lineage(ctx, node.ID)
		if err != nil {
			return err
		}

		values := map[string]string{node.ID: node.Value}
		for _, e := range edges {
			if anc, err := catalog.GetNode(ctx, e.Ancestor); err == nil {
				values[anc.ID] = anc.Value
			}
		}

		if mermaid {
			fmt.Print(graph.Lineage(node, edges, values))
			return nil
		}

		p := tui.NewPalette(os.Stdout)
		fmt.Printf("%s  %s\n", node.ID, node.Value)
		if len(edges) == 0 {
			fmt.Println("  root node")
		}
		for _, e := range edges {
			fmt.Printf("  %d. %-16s <- %s  %s\n", e.Position, e.Step, p.Faint(e.Ancestor), values[e.Ancestor])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lineageCmd)
	lineageCmd.Flags().Bool("mermaid", false, "print a Mermaid flowchart")
}
