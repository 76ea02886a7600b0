package main

import (
	"fmt"

	"github.com/italolelis/mediafetch/internal/cleanup"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/spf13/cobra"
)

func newSweepCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired files from the output directory once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := cc.cfg

			scheduler := cleanup.NewScheduler(
				cleanup.NewSweeper(nil),
				cfg.OutputDir,
				cfg.RetentionWindow,
				cfg.CleanupInterval,
				cfg.SweepLockPath,
			)

			ran, err := scheduler.SweepOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			if !ran {
				logctx.LoggerFromContext(ctx).WarnContext(ctx, "another sweep is in progress", "lock", cfg.SweepLockPath)
			}

			return nil
		},
	}
}
