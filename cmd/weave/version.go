package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of weave",
	Run: func(cmd *cobra.Command, args []string) {
		if tui.IsTTY(os.Stdout) {
			tui.PrintBanner(os.Stdout)
		}
		fmt.Printf("weave version %s\n", strings.TrimSpace(weave.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
