// Package cmd wires the watcher's CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ricwatch",
		Short: "Incremental marketplace listing watcher.",
		Long: `ricwatch polls marketplace categories for freshly published listings,
resolves each listing's details through proxy-rotated fetching, filters out
stale and already-delivered items, and delivers the remainder in fixed-size
JSON batches.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newCollectCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
