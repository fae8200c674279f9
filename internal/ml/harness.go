package ml

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"golang.org/x/sync/errgroup"
)

// FeatureNames lists the model inputs in column order.
var FeatureNames = []string{"hour", "queue", "stop_density", "accidents", "fatalities", "location_code"}

// Minimum sample sizes below which fitting is skipped and metrics are zero.
const (
	MinTableRows = 10
	MinValidRows = 5
)

// Dataset is a dense feature matrix and its regression target.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

// ExtractDataset builds the feature matrix from scored records, dropping rows
// with a NaN or infinite feature or target.
func ExtractDataset(records []domain.Record) Dataset {
	d := Dataset{
		X: make([][]float64, 0, len(records)),
		Y: make([]float64, 0, len(records)),
	}
	for _, r := range records {
		row := []float64{
			float64(r.Hour),
			r.Queue,
			r.StopDensity,
			float64(r.Accidents),
			float64(r.Fatalities),
			float64(r.LocationCode),
		}
		if !finite(r.CongestionScore) || !allFinite(row) {
			continue
		}
		d.X = append(d.X, row)
		d.Y = append(d.Y, r.CongestionScore)
	}
	return d
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(row []float64) bool {
	for _, v := range row {
		if !finite(v) {
			return false
		}
	}
	return true
}

// FitObserver receives the outcome of every model evaluation.
type FitObserver interface {
	ObserveFit(model string, elapsed time.Duration, err error)
}

// Result is the outcome for one model. Err is a *domain.ModelFitError when the
// model failed; Metrics is then zero.
type Result struct {
	Model   string
	Metrics Metrics
	Err     error
}

// Evaluation is the per-model result list in model order.
type Evaluation struct {
	Results []Result

	// Skipped is true when the data was too small to fit anything.
	Skipped bool
	// Err is set when evaluation failed outside a single model.
	Err error
}

// Performance flattens the results into the report map.
func (e Evaluation) Performance() Performance {
	p := make(Performance, len(e.Results))
	for _, r := range e.Results {
		p[r.Model] = r.Metrics
	}
	return p
}

// Harness fits each configured model on the same seeded split and scores it on
// the held-out rows.
type Harness struct {
	models   []Model
	seed     uint64
	fraction float64
	observer FitObserver
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithModels replaces the default model list.
func WithModels(models ...Model) Option {
	return func(h *Harness) { h.models = models }
}

// WithSeed sets the split and model seed.
func WithSeed(seed uint64) Option {
	return func(h *Harness) { h.seed = seed }
}

// WithObserver reports per-model timings and failures.
func WithObserver(o FitObserver) Option {
	return func(h *Harness) { h.observer = o }
}

// NewHarness creates a harness over DefaultModels with DefaultSeed.
func NewHarness(logger *slog.Logger, opts ...Option) *Harness {
	h := &Harness{
		models:   DefaultModels(),
		seed:     DefaultSeed,
		fraction: DefaultTestFraction,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Models returns the configured models.
func (h *Harness) Models() []Model { return h.models }

// Evaluate scores every model against the records' congestion score. It never
// fails: small inputs and errors outside a single model yield zero metrics for
// all models, and a failing model yields zero metrics for that model only.
func (h *Harness) Evaluate(records []domain.Record) (ev Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			err := &domain.UnexpectedError{Err: domain.Recovered(r)}
			h.logger.Error("model evaluation failed", "error", err)
			ev = h.zero()
			ev.Err = err
		}
	}()

	if len(records) < MinTableRows {
		h.logger.Debug("too few rows to fit models", "rows", len(records), "min", MinTableRows)
		ev = h.zero()
		ev.Skipped = true
		return ev
	}

	data := ExtractDataset(records)
	if data.Len() < MinValidRows {
		h.logger.Debug("too few valid rows to fit models", "rows", data.Len(), "min", MinValidRows)
		ev = h.zero()
		ev.Skipped = true
		return ev
	}

	split := TrainTestSplit(data.Len(), h.fraction, h.seed)
	trainX, trainY := rowsAt(data, split.Train)
	testX, testY := rowsAt(data, split.Test)

	results := make([]Result, len(h.models))
	var g errgroup.Group
	for i, m := range h.models {
		g.Go(func() error {
			results[i] = h.evaluateModel(m, trainX, trainY, testX, testY)
			return nil
		})
	}
	_ = g.Wait()

	return Evaluation{Results: results}
}

// evaluateModel fits and scores one model, converting errors and panics into a
// zero-metric result.
func (h *Harness) evaluateModel(m Model, trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) (res Result) {
	res.Model = m.Name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Metrics = Metrics{}
			res.Err = &domain.ModelFitError{Model: m.Name, Err: domain.Recovered(r)}
		}
		if res.Err != nil {
			h.logger.Warn("model failed, reporting zero metrics", "model", m.Name, "error", res.Err)
		} else {
			h.logger.Debug("model evaluated", "model", m.Name, "rmse", res.Metrics.RMSE, "r2", res.Metrics.R2,
				"duration", time.Since(start))
		}
		if h.observer != nil {
			h.observer.ObserveFit(m.Name, time.Since(start), res.Err)
		}
	}()

	fail := func(stage string, err error) Result {
		return Result{Model: m.Name, Err: &domain.ModelFitError{Model: m.Name, Err: fmt.Errorf("%s: %w", stage, err)}}
	}

	model := m.New(h.seed)
	if err := model.Fit(trainX, trainY); err != nil {
		return fail("fit", err)
	}
	pred, err := model.Predict(testX)
	if err != nil {
		return fail("predict", err)
	}
	metrics, err := Score(pred, testY)
	if err != nil {
		return fail("score", err)
	}
	return Result{Model: m.Name, Metrics: metrics}
}

func (h *Harness) zero() Evaluation {
	results := make([]Result, len(h.models))
	for i, m := range h.models {
		results[i] = Result{Model: m.Name}
	}
	return Evaluation{Results: results}
}
