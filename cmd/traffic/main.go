// Command traffic scores traffic observations from a CSV file, evaluates
// regression models against the congestion score and prints a report.
//
// Usage:
//
//	traffic analyze --csv data/mock/traffic_sample.csv --mode full
//	traffic serve --csv data/mock/traffic_sample.csv
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

// Flag names shared by the subcommands.
const (
	flagCSV     = "csv"
	flagMode    = "mode"
	flagFormat  = "format"
	flagDB      = "db"
	flagPublish = "publish"
)

// Flags hold parsed values, so every command gets fresh instances.
func csvFlag() cli.Flag {
	return &cli.StringFlag{Name: flagCSV, Usage: "path to the traffic CSV file"}
}

func modeFlag() cli.Flag {
	return &cli.StringFlag{Name: flagMode, Usage: "report mode: metrics or full", Value: "metrics"}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: flagFormat, Usage: "report encoding: json or yaml (default: $OUTPUT_FORMAT or json)"}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{Name: flagDB, Usage: "SQLite report history path (default: $REPORT_DB)"}
}

func publishFlag() cli.Flag {
	return &cli.BoolFlag{Name: flagPublish, Usage: "publish the report to Kafka (requires $KAFKA_BROKERS)"}
}

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	cmd := &cli.Command{
		Name:    "traffic",
		Usage:   "traffic congestion analysis",
		Version: version,
		Writer:  stdout,
		Commands: []*cli.Command{
			{
				Name:   "analyze",
				Usage:  "analyze one CSV file and print the report to stdout",
				Flags:  []cli.Flag{csvFlag(), modeFlag(), formatFlag(), dbFlag(), publishFlag()},
				Action: analyzeAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the analysis API with health and metrics endpoints",
				Flags:  []cli.Flag{csvFlag(), modeFlag(), dbFlag(), publishFlag()},
				Action: serveAction,
			},
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}

	err := cmd.Run(ctx, args)
	if err == nil {
		return exitOK
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return exitUsage
}
