package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/italolelis/mediafetch/internal/config"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/spf13/cobra"
)

// commandContext carries what every subcommand needs once flags are parsed.
type commandContext struct {
	envFile string
	cfg     *config.Config
}

// load reads the configuration and installs the JSON logger, returning a
// context carrying it.
func (c *commandContext) load(ctx context.Context) (context.Context, error) {
	cfg, err := config.LoadConfig(c.envFile)
	if err != nil {
		return ctx, err
	}

	c.cfg = cfg

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(logctx.NewTraceHandler(handler))
	slog.SetDefault(logger)

	return logctx.WithLogger(ctx, logger), nil
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "mediafetch",
		Short:         "Download media from a URL into a served output directory",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := cc.load(cmd.Context())
			if err != nil {
				return err
			}

			cmd.SetContext(ctx)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cc.cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cc.envFile, "env-file", ".env", "Optional dotenv file loaded before the environment")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newSweepCommand(cc))
	rootCmd.AddCommand(newPlanCommand(cc))

	return rootCmd
}
