package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/traffic-analysis/internal/adapter/httpadapter"
	"github.com/couchcryptid/traffic-analysis/internal/observability"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
	"github.com/urfave/cli/v3"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	mode, err := pipeline.ParseMode(cmd.String(flagMode))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	deps := wire(ctx, cfg, logger, newMetrics())
	defer deps.close()

	if deps.store != nil {
		latest, ok, err := deps.store.Latest(ctx)
		switch {
		case err != nil:
			logger.Error("restore latest report failed", "error", err)
		case ok:
			deps.analyzer.Restore(latest)
			logger.Info("restored latest report", "report_id", latest.ReportID)
		}
	}

	if path := cmd.String(flagCSV); path != "" {
		if _, err := deps.analyzer.Analyze(ctx, path, mode); err != nil {
			logger.Warn("startup analysis failed", "path", path, "error", err)
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.DataDir, deps.analyzer, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("http server error", "error", err)
		return cli.Exit(err.Error(), exitFailed)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
