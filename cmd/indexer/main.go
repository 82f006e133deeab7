// Command indexer runs the liquidation-bot indexer: a discovery loop that
// tails Borrow events and a refresh loop that re-scores known users, both
// supervised under one process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "indexer",
		Short:         "Liquidation-bot indexer for an Aave-style lending protocol",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file to load (ignored if absent)")

	root.AddCommand(newResetCommand(&envFile))
	return root
}
