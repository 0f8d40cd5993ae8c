package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/api"
	"github.com/heimdex/heimdex-editor/internal/config"
	"github.com/heimdex/heimdex-editor/internal/engine"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/fetch"
	"github.com/heimdex/heimdex-editor/internal/history"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/scratch"
)

const (
	defaultFrameRate = 30
	drainTimeout     = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local editor API and export channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, ctx)
		},
	}
}

func serve(cmd *cobra.Command, ctx *commandContext) error {
	startTime := time.Now()
	cfg := ctx.config
	logger := ctx.loggerValue()
	logger.Info("starting heimdex editor", "version", config.Version, "data_dir", cfg.DataDir())

	database, repo, err := ctx.openHistory()
	if err != nil {
		return err
	}
	defer database.Close()

	deviceID, err := history.EnsureSecret(cmd.Context(), repo, history.KeyDeviceID, 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := history.EnsureSecret(cmd.Context(), repo, history.KeyAuthToken, 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(out, "║  %-57s║\n", "HEIMDEX EDITOR "+config.Version)
	fmt.Fprintln(out, "╠═══════════════════════════════════════════════════════════╣")
	fmt.Fprintf(out, "║  API URL:    http://127.0.0.1:%-28d║\n", cfg.Port())
	fmt.Fprintf(out, "║  Auth Token: %-45s║\n", authToken[:16]+"...")
	fmt.Fprintf(out, "║  Device ID:  %-45s║\n", deviceID[:16]+"...")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintf(out, "  Full token: %s\n\n", authToken)

	store, err := scratch.Open(cfg.ScratchDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to open scratch space: %w", err)
	}
	defer store.Close()

	cleaned := store.CleanStale(cfg.StaleScratchAge())
	if len(cleaned.Removed) > 0 || len(cleaned.Warnings) > 0 {
		logger.Info("cleaned stale scratch files", "removed", len(cleaned.Removed), "warnings", len(cleaned.Warnings))
	}

	eng := ctx.newEngine()
	doctor := engine.NewCachedDoctor(eng, logger)
	if caps, err := doctor.Refresh(cmd.Context()); err != nil {
		logger.Warn("initial engine probe failed", "error", err)
	} else {
		logger.Info("engine capabilities detected",
			"ffmpeg", caps.FFmpeg.Version,
			"ffprobe", caps.FFprobe.Version,
			"can_export", caps.CanExport(),
		)
		if !caps.CanExport() {
			logger.Warn("ffmpeg not found, exports will fail until it is installed", "error", caps.FFmpeg.Error)
		}
	}

	orch := export.New(export.Config{
		Engine:           eng,
		Fetcher:          fetch.New(fetch.Config{Timeout: cfg.FetchTimeout(), Logger: logger}),
		Store:            store,
		Recorder:         repo,
		MaxParallelTrims: cfg.MaxParallelTrims(),
		Logger:           logger,
	})

	jobCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Orchestrator:   orch,
		Prober:         eng,
		Doctor:         doctor,
		Repository:     repo,
		Session:        api.NewSession(),
		PlaybackServer: playback.NewServer(logger),
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
		FrameRate:      defaultFrameRate,
		JobContext:     jobCtx,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("HTTP server error", "error", serveErr)
		}
	case <-cmd.Context().Done():
	}

	logger.Info("initiating graceful shutdown")
	cancel()
	if orch.Cancel() {
		logger.Info("cancelled running export")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := orch.Wait(drainCtx); err != nil {
		logger.Warn("export did not finish before shutdown", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}
