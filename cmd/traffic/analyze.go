package main

import (
	"context"

	"github.com/couchcryptid/traffic-analysis/internal/config"
	"github.com/couchcryptid/traffic-analysis/internal/observability"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
	"github.com/urfave/cli/v3"
)

// Process exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func analyzeAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String(flagCSV)
	if path == "" {
		return cli.Exit("--csv is required", exitUsage)
	}
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

	report, analyzeErr := deps.analyzer.Analyze(ctx, path, mode)
	if err := writeReport(cmd.Root().Writer, report, cfg.OutputFormat); err != nil {
		return cli.Exit("write report: "+err.Error(), exitFailed)
	}
	if analyzeErr != nil {
		return cli.Exit("", exitFailed)
	}
	return nil
}

// loadConfig reads the environment and applies command flags on top.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.IsSet(flagFormat) {
		cfg.OutputFormat = cmd.String(flagFormat)
	}
	if cmd.IsSet(flagDB) {
		cfg.ReportDB = cmd.String(flagDB)
	}
	if cmd.Bool(flagPublish) {
		cfg.KafkaEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
