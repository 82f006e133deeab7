package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/superlend/liquidation-indexer/internal/config"
	"github.com/superlend/liquidation-indexer/internal/store"
)

// newResetCommand builds the `reset` subcommand, which wipes every bucket,
// position, known-reserve, and last-indexed-block row.
func newResetCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe all indexer state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			st, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer st.Close()

			if err := st.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			fmt.Println("indexer state reset")
			return nil
		},
	}
}
