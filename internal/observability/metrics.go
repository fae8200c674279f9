package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "traffic"

// Metrics holds the Prometheus counters and histograms for traffic analyses.
type Metrics struct {
	Analyses         *prometheus.CounterVec // labels: outcome={success,load_error,unexpected_error}
	RecordsProcessed prometheus.Counter
	CoercedValues    *prometheus.CounterVec // labels: column
	AnalysisDuration prometheus.Histogram

	// Model evaluation metrics.
	ModelFitDuration *prometheus.HistogramVec // labels: model
	ModelFailures    *prometheus.CounterVec   // labels: model

	// Report delivery metrics.
	ReportCache      *prometheus.CounterVec // labels: result={hit,miss}
	ReportsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyses run, by outcome.",
		}, []string{"outcome"}),
		RecordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Total records normalized across all analyses.",
		}),
		CoercedValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coerced_values_total",
			Help:      "Cells replaced by a column default because they were blank or unparseable.",
		}, []string{"column"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete load-score-evaluate-report run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ModelFitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_fit_duration_seconds",
			Help:      "Time to fit and score one model.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"model"}),
		ModelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_failures_total",
			Help:      "Model evaluations that failed and reported zero metrics.",
		}, []string{"model"}),
		ReportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report cache lookups by result.",
		}, []string{"result"}),
		ReportsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Reports written to the report topic, by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all analysis metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Analyses,
		m.RecordsProcessed,
		m.CoercedValues,
		m.AnalysisDuration,
		m.ModelFitDuration,
		m.ModelFailures,
		m.ReportCache,
		m.ReportsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveFit records one model evaluation. It satisfies ml.FitObserver.
func (m *Metrics) ObserveFit(model string, elapsed time.Duration, err error) {
	m.ModelFitDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if err != nil {
		m.ModelFailures.WithLabelValues(model).Inc()
	}
}
