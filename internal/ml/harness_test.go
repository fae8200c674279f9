package ml

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scoredRecords builds n scored records with Queue 1..n spread over three locations.
func scoredRecords(n int) []domain.Record {
	locations := []string{"Main St", "Oak Ave", "Elm Rd"}
	t := domain.Table{Records: make([]domain.Record, n)}
	for i := range t.Records {
		t.Records[i] = domain.Record{
			Hour:         i % 24,
			Location:     locations[i%len(locations)],
			LocationCode: i % len(locations),
			Queue:        float64(i + 1),
			StopDensity:  float64((i*7)%11) / 10,
			Accidents:    i % 4,
			Fatalities:   i % 9 / 8,
		}
	}
	return domain.Score(t).Records
}

type failingRegressor struct{ err error }

func (f failingRegressor) Fit([][]float64, []float64) error { return f.err }
func (f failingRegressor) Predict([][]float64) ([]float64, error) { return nil, f.err }

type panickingRegressor struct{}

func (panickingRegressor) Fit([][]float64, []float64) error { panic("index out of range") }
func (panickingRegressor) Predict([][]float64) ([]float64, error) {
	return nil, nil
}

type nanRegressor struct{}

func (nanRegressor) Fit([][]float64, []float64) error { return nil }
func (nanRegressor) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = math.NaN()
	}
	return out, nil
}

type hugeRegressor struct{}

func (hugeRegressor) Fit([][]float64, []float64) error { return nil }
func (hugeRegressor) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = 1e300
	}
	return out, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	models   []string
	failures []string
}

func (o *recordingObserver) ObserveFit(model string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.models = append(o.models, model)
	if err != nil {
		o.failures = append(o.failures, model)
	}
}

func TestExtractDataset_DropsNonFiniteRows(t *testing.T) {
	records := scoredRecords(10)
	records[2].Queue = math.NaN()
	records[5].CongestionScore = math.Inf(1)

	d := ExtractDataset(records)
	assert.Equal(t, 8, d.Len())
	assert.Len(t, d.X[0], len(FeatureNames))
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 0}, d.X[0])
}

func TestHarness_TooFewRows(t *testing.T) {
	h := NewHarness(discardLogger())
	ev := h.Evaluate(scoredRecords(9))

	assert.True(t, ev.Skipped)
	require.NoError(t, ev.Err)
	assert.Equal(t, ZeroPerformance(DefaultModels()), ev.Performance())
	for _, r := range ev.Results {
		assert.NoError(t, r.Err)
	}
}

func TestHarness_TooFewValidRows(t *testing.T) {
	records := scoredRecords(10)
	for i := 0; i < 6; i++ {
		records[i].Queue = math.NaN()
	}

	ev := NewHarness(discardLogger()).Evaluate(records)
	assert.True(t, ev.Skipped)
	assert.Equal(t, ZeroPerformance(DefaultModels()), ev.Performance())
}

func TestHarness_EvaluatesAllModels(t *testing.T) {
	obs := &recordingObserver{}
	h := NewHarness(discardLogger(), WithObserver(obs))
	ev := h.Evaluate(scoredRecords(60))

	require.NoError(t, ev.Err)
	assert.False(t, ev.Skipped)
	require.Len(t, ev.Results, 3)
	assert.Equal(t, LinearRegressionName, ev.Results[0].Model)
	assert.Equal(t, DecisionTreeName, ev.Results[1].Model)
	assert.Equal(t, RandomForestName, ev.Results[2].Model)

	for _, r := range ev.Results {
		require.NoError(t, r.Err, r.Model)
		assert.GreaterOrEqual(t, r.Metrics.RMSE, 0.0, r.Model)
		assert.Positive(t, r.Metrics.R2, r.Model)
		assert.Equal(t, r.Metrics.RMSE, domain.Round3(r.Metrics.RMSE))
		assert.Equal(t, r.Metrics.R2, domain.Round3(r.Metrics.R2))
	}
	assert.ElementsMatch(t, []string{LinearRegressionName, DecisionTreeName, RandomForestName}, obs.models)
	assert.Empty(t, obs.failures)
}

func TestHarness_Reproducible(t *testing.T) {
	records := scoredRecords(80)

	first := NewHarness(discardLogger()).Evaluate(records)
	second := NewHarness(discardLogger()).Evaluate(records)

	if diff := cmp.Diff(first.Performance(), second.Performance()); diff != "" {
		t.Errorf("performance differs between runs (-first +second):\n%s", diff)
	}
}

func TestHarness_ModelFailureIsIsolated(t *testing.T) {
	records := scoredRecords(50)
	linear, tree := DefaultModels()[0], DefaultModels()[1]
	broken := Model{Name: "Broken", New: func(uint64) Regressor {
		return failingRegressor{err: errors.New("singular matrix")}
	}}
	panicky := Model{Name: "Panicky", New: func(uint64) Regressor { return panickingRegressor{} }}
	nan := Model{Name: "NaN", New: func(uint64) Regressor { return nanRegressor{} }}

	obs := &recordingObserver{}
	baseline := NewHarness(discardLogger(), WithModels(linear, tree)).Evaluate(records)
	mixed := NewHarness(discardLogger(), WithModels(linear, broken, tree, panicky, nan), WithObserver(obs)).Evaluate(records)

	require.NoError(t, mixed.Err)
	perf := mixed.Performance()
	assert.Equal(t, baseline.Performance()[LinearRegressionName], perf[LinearRegressionName])
	assert.Equal(t, baseline.Performance()[DecisionTreeName], perf[DecisionTreeName])
	assert.NotZero(t, perf[LinearRegressionName].R2)

	for _, name := range []string{"Broken", "Panicky", "NaN"} {
		assert.Equal(t, Metrics{}, perf[name], name)
	}

	var fitErr *domain.ModelFitError
	require.ErrorAs(t, mixed.Results[1].Err, &fitErr)
	assert.Equal(t, "Broken", fitErr.Model)
	require.ErrorAs(t, mixed.Results[3].Err, &fitErr)
	assert.Equal(t, "Panicky", fitErr.Model)
	require.ErrorAs(t, mixed.Results[4].Err, &fitErr)
	assert.ErrorIs(t, mixed.Results[4].Err, errNonFinite)

	assert.ElementsMatch(t, []string{"Broken", "Panicky", "NaN"}, obs.failures)
}

func TestHarness_ExplicitDefaultSeed(t *testing.T) {
	records := scoredRecords(40)
	tree := DefaultModels()[1]

	a := NewHarness(discardLogger(), WithModels(tree)).Evaluate(records)
	b := NewHarness(discardLogger(), WithModels(tree), WithSeed(DefaultSeed)).Evaluate(records)
	assert.Equal(t, a.Performance(), b.Performance())
}

func TestHarness_OverflowingMetricsAreIsolated(t *testing.T) {
	records := scoredRecords(50)
	huge := Model{Name: "Huge", New: func(uint64) Regressor { return hugeRegressor{} }}

	ev := NewHarness(discardLogger(), WithModels(DefaultModels()[1], huge)).Evaluate(records)

	require.NoError(t, ev.Results[0].Err)
	var fitErr *domain.ModelFitError
	require.ErrorAs(t, ev.Results[1].Err, &fitErr)
	assert.Equal(t, "Huge", fitErr.Model)
	assert.ErrorIs(t, ev.Results[1].Err, errNonFinite)
	assert.Equal(t, Metrics{}, ev.Performance()["Huge"])
}

func TestHarness_ExtremeHeldOutFeatureStaysSerializable(t *testing.T) {
	records := scoredRecords(20)
	split := TrainTestSplit(len(records), DefaultTestFraction, DefaultSeed)
	records[split.Test[0]].StopDensity = 1e300

	ev := NewHarness(discardLogger()).Evaluate(records)

	for _, r := range ev.Results {
		if r.Err != nil {
			assert.ErrorIs(t, r.Err, errNonFinite, r.Model)
		}
		assert.False(t, math.IsInf(r.Metrics.RMSE, 0) || math.IsNaN(r.Metrics.RMSE), r.Model)
		assert.False(t, math.IsInf(r.Metrics.R2, 0) || math.IsNaN(r.Metrics.R2), r.Model)
	}
	_, err := json.Marshal(ev.Performance())
	require.NoError(t, err)
}
