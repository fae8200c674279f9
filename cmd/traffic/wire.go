package main

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/traffic-analysis/internal/adapter/csvsource"
	kafkaadapter "github.com/couchcryptid/traffic-analysis/internal/adapter/kafka"
	"github.com/couchcryptid/traffic-analysis/internal/adapter/sqlite"
	"github.com/couchcryptid/traffic-analysis/internal/config"
	"github.com/couchcryptid/traffic-analysis/internal/ml"
	"github.com/couchcryptid/traffic-analysis/internal/observability"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
)

// deps is the assembled analyzer and the resources it owns.
type deps struct {
	analyzer *pipeline.Analyzer
	store    *sqlite.Store
	writer   *kafkaadapter.Writer
	logger   *slog.Logger
}

// newMetrics is swapped for an unregistered constructor in tests.
var newMetrics = observability.NewMetrics

// wire builds the analyzer with the optional history store and publisher
// enabled by cfg. A history store that cannot be opened is logged and left
// out; the analysis still runs and its report is still printed.
func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *deps {
	d := &deps{logger: logger}
	opts := []pipeline.Option{pipeline.WithCache(cfg.ReportCacheSize)}

	if cfg.ReportDB != "" {
		store, err := sqlite.Open(ctx, cfg.ReportDB, logger)
		if err != nil {
			logger.Warn("report history disabled", "path", cfg.ReportDB, "error", err)
		} else {
			d.store = store
			opts = append(opts, pipeline.WithStore(store))
			logger.Info("report history enabled", "path", cfg.ReportDB)
		}
	}

	if cfg.KafkaEnabled {
		d.writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(d.writer))
		logger.Info("report publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaReportTopic)
	}

	harness := ml.NewHarness(logger, ml.WithObserver(metrics))
	d.analyzer = pipeline.New(csvsource.NewReader(logger), harness, logger, metrics, opts...)
	return d
}

func (d *deps) close() {
	if d.writer != nil {
		if err := d.writer.Close(); err != nil {
			d.logger.Error("kafka writer close error", "error", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Error("report db close error", "error", err)
		}
	}
}
