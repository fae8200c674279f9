package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/couchcryptid/traffic-analysis/internal/ml"
	"github.com/couchcryptid/traffic-analysis/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Source reads an untyped table from a path.
type Source interface {
	Load(ctx context.Context, path string) (domain.RawTable, error)
}

// Publisher delivers a finished report downstream.
type Publisher interface {
	Publish(ctx context.Context, report Report) error
}

// Store keeps a history of finished reports.
type Store interface {
	Save(ctx context.Context, report Report) error
}

// Analyzer runs load, normalize, score, evaluate and aggregate for one input
// and assembles the report. It never returns a partially built report.
type Analyzer struct {
	source    Source
	harness   *ml.Harness
	logger    *slog.Logger
	metrics   *observability.Metrics
	publisher Publisher
	store     Store
	cache     *reportCache
	newID     func() string

	latest atomic.Pointer[Report]
	ready  atomic.Bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPublisher sends every report to p after assembly.
func WithPublisher(p Publisher) Option {
	return func(a *Analyzer) { a.publisher = p }
}

// WithStore saves every report to s after assembly.
func WithStore(s Store) Option {
	return func(a *Analyzer) { a.store = s }
}

// WithCache memoizes up to size reports by input digest and mode.
// A size below 1 disables caching.
func WithCache(size int) Option {
	return func(a *Analyzer) {
		if size < 1 {
			a.cache = nil
			return
		}
		a.cache = newReportCache(size)
	}
}

// WithIDGenerator overrides how report IDs are assigned.
func WithIDGenerator(fn func() string) Option {
	return func(a *Analyzer) { a.newID = fn }
}

// New creates an Analyzer.
func New(source Source, harness *ml.Harness, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:  source,
		harness: harness,
		logger:  logger,
		metrics: metrics,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Models returns the models the analyzer evaluates, in report order.
func (a *Analyzer) Models() []ml.Model { return a.harness.Models() }

// CheckReadiness returns nil once at least one analysis has succeeded.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("no successful analysis yet")
	}
	return nil
}

// Latest returns the most recent report, if any.
func (a *Analyzer) Latest() (Report, bool) {
	r := a.latest.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Restore seeds the latest report, e.g. from the history store at startup.
func (a *Analyzer) Restore(r Report) {
	a.latest.Store(&r)
	if r.Success {
		a.ready.Store(true)
	}
}

// Analyze produces the report for the table at path. The report is always
// well formed. The returned error is a *domain.LoadError or
// *domain.UnexpectedError when the report has Success false, and nil otherwise.
func (a *Analyzer) Analyze(ctx context.Context, path string, mode Mode) (Report, error) {
	start := time.Now()

	report, err := a.run(ctx, path, mode)
	report.ReportID = a.newID()

	outcome := "success"
	switch {
	case err == nil:
		a.ready.Store(true)
		a.logger.Info("analysis complete", "path", path, "mode", mode,
			"rows", report.RecordsProcessed, "duration", time.Since(start))
	case isLoadError(err):
		outcome = "load_error"
		a.logger.Error("analysis failed to load input", "path", path, "error", err)
	default:
		outcome = "unexpected_error"
		a.logger.Error("analysis failed", "path", path, "error", err)
	}
	a.metrics.Analyses.WithLabelValues(outcome).Inc()
	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	stored := report
	a.latest.Store(&stored)
	a.deliver(ctx, report)
	return report, err
}

func isLoadError(err error) bool {
	var loadErr *domain.LoadError
	return errors.As(err, &loadErr)
}

// run loads and analyzes, converting any escaped panic into an UnexpectedError.
func (a *Analyzer) run(ctx context.Context, path string, mode Mode) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.UnexpectedError{Err: domain.Recovered(r)}
			report = failureReport(a.Models(), err)
		}
	}()

	raw, err := a.source.Load(ctx, path)
	if err != nil {
		if !isLoadError(err) {
			err = &domain.UnexpectedError{Err: err}
		}
		return failureReport(a.Models(), err), err
	}

	key, cacheable := cacheKey(raw, mode)
	if cacheable && a.cache != nil {
		if cached, ok := a.cache.get(key); ok {
			a.metrics.ReportCache.WithLabelValues("hit").Inc()
			a.logger.Debug("report cache hit", "path", path, "mode", mode)
			return cached, nil
		}
		a.metrics.ReportCache.WithLabelValues("miss").Inc()
	}

	report, err = a.assemble(raw, mode)
	if err != nil {
		return failureReport(a.Models(), err), err
	}

	if cacheable && a.cache != nil {
		a.cache.put(key, report)
	}
	return report, nil
}

// assemble runs the in-memory stages over a loaded table.
func (a *Analyzer) assemble(raw domain.RawTable, mode Mode) (Report, error) {
	table, err := domain.Normalize(raw)
	if err != nil {
		return Report{}, &domain.LoadError{Cause: err.Error(), Err: err}
	}
	a.metrics.RecordsProcessed.Add(float64(table.Len()))
	for col, n := range table.Defaulted {
		a.metrics.CoercedValues.WithLabelValues(col).Add(float64(n))
		a.logger.Debug("cells defaulted", "column", col, "count", n)
	}

	scored := domain.Score(table)
	a.logger.Debug("table scored", "rows", scored.Len(), "signal", scored.Signal)

	var (
		eval                 ml.Evaluation
		indicators           domain.Indicators
		breakdown            domain.Breakdown
		indErr, breakdownErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		eval = a.harness.Evaluate(scored.Records)
		return nil
	})
	g.Go(func() error {
		indicators, indErr = domain.Aggregate(scored)
		return nil
	})
	g.Go(func() error {
		breakdown, breakdownErr = domain.Summarize(scored)
		return nil
	})
	_ = g.Wait()

	if indErr != nil {
		a.logger.Warn("indicators degraded to zero", "error", indErr)
	}
	if breakdownErr != nil {
		a.logger.Warn("breakdown degraded to empty", "error", breakdownErr)
	}

	report := Report{
		Success:          true,
		Message:          successMessage(scored.Len()),
		MLPerformance:    eval.Performance(),
		Indicators:       indicators,
		Breakdown:        breakdown,
		RecordsProcessed: scored.Len(),
	}
	if mode == ModeFull {
		report.ProcessedData = make([]domain.Record, scored.Len())
		copy(report.ProcessedData, scored.Records)
	}
	return report, nil
}

// deliver stores and publishes the report. Failures are logged only.
func (a *Analyzer) deliver(ctx context.Context, report Report) {
	if a.store != nil {
		if err := a.store.Save(ctx, report); err != nil {
			a.logger.Error("save report failed", "report_id", report.ReportID, "error", err)
		}
	}
	if a.publisher != nil {
		outcome := "success"
		if err := a.publisher.Publish(ctx, report); err != nil {
			outcome = "error"
			a.logger.Error("publish report failed", "report_id", report.ReportID, "error", err)
		}
		a.metrics.ReportsPublished.WithLabelValues(outcome).Inc()
	}
}
