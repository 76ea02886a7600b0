package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/italolelis/mediafetch/internal/cleanup"
	"github.com/italolelis/mediafetch/internal/config"
	"github.com/italolelis/mediafetch/internal/engine"
	"github.com/italolelis/mediafetch/internal/engine/ytdlp"
	"github.com/italolelis/mediafetch/internal/http/rest"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/notifier"
	"github.com/italolelis/mediafetch/internal/orchestrator"
	"github.com/italolelis/mediafetch/internal/storage"
	"github.com/italolelis/mediafetch/internal/storage/sqlite"
	"github.com/italolelis/mediafetch/internal/telemetry"
	"github.com/italolelis/mediafetch/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, the job workers and the cleanup scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cc.cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "mediafetch starting...", "version", version, "log_level", cfg.LogLevel)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	repo := sqlite.NewInstrumentedJobRepository(database, tel)

	// =========================================================================
	// Start Orchestrator
	locator := tools.NewLocator(cfg.ToolsDir)
	logToolset(ctx, locator.Discover())

	eng := engine.NewInstrumentedEngine(ytdlp.New(cfg.YtdlpPath), tel, ytdlp.Name)

	instanceID := storage.GenerateInstanceID()

	orch := orchestrator.New(repo, eng, locator, tel, orchestrator.Options{
		OutputDir:    cfg.OutputDir,
		CookieFile:   cfg.CookieFile,
		ProgressStep: cfg.ProgressStep,
		InstanceID:   instanceID,
	})

	pool := orchestrator.NewPool(orch, repo, orchestrator.PoolOptions{
		Workers:           cfg.Workers,
		QueueSize:         cfg.QueueSize,
		InstanceID:        instanceID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StaleAfter:        cfg.StaleJobTimeout,
	})

	// =========================================================================
	// Start Notification
	relayDone := make(chan struct{})

	go func() {
		defer close(relayDone)

		notifier.Relay(context.WithoutCancel(ctx), notifier.New(cfg.DiscordWebhookURL), orch.OnJobFinished, orch.OnJobFailed)
	}()

	// =========================================================================
	// Start Cleanup
	scheduler := cleanup.NewScheduler(
		cleanup.NewSweeper(tel),
		cfg.OutputDir,
		cfg.RetentionWindow,
		cfg.CleanupInterval,
		cfg.SweepLockPath,
	)

	// =========================================================================
	// Start API Service
	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      rest.NewRouter(rest.NewDownloadsHandler(repo, pool, cfg.OutputDir), tel),
		BaseContext: func(net.Listener) context.Context {
			return gctx
		},
	}

	g.Go(func() error {
		return pool.Run(gctx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		logger.InfoContext(ctx, "Initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	logger.InfoContext(ctx, "waiting for downloads...",
		"output_dir", cfg.OutputDir,
		"workers", cfg.Workers,
		"retention", cfg.RetentionWindow.String(),
		"cleanup_interval", cfg.CleanupInterval.String(),
	)

	err = g.Wait()

	// Workers have drained; no more job events can be produced.
	orch.Close()
	<-relayDone

	if err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}

func logToolset(ctx context.Context, ts tools.Toolset) {
	logger := logctx.LoggerFromContext(ctx)

	for _, t := range []tools.Tool{ts.FFmpeg, ts.Accelerator} {
		if t.Available() {
			logger.InfoContext(ctx, "tool found", "tool", t.Name, "path", t.Path)

			continue
		}

		logger.WarnContext(ctx, "tool not found, running with reduced capability", "tool", t.Name)
	}
}
