package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/couchcryptid/traffic-analysis/internal/ml"
)

// Mode selects how much of the analysis the report carries.
type Mode string

const (
	// ModeMetrics reports metrics and indicators only.
	ModeMetrics Mode = "metrics"
	// ModeFull additionally includes every scored record.
	ModeFull Mode = "full"
)

// ParseMode accepts "metrics" and "full". An empty string is ModeMetrics.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMetrics:
		return ModeMetrics, nil
	case ModeFull:
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeMetrics, ModeFull)
	}
}

// Report is the single document an analysis produces. Every field except
// ProcessedData is always populated, with zero values on failure.
type Report struct {
	ReportID         string            `json:"reportId,omitempty" yaml:"reportId,omitempty"`
	Success          bool              `json:"success" yaml:"success"`
	Error            string            `json:"error,omitempty" yaml:"error,omitempty"`
	Message          string            `json:"message,omitempty" yaml:"message,omitempty"`
	MLPerformance    ml.Performance    `json:"mlPerformance" yaml:"mlPerformance"`
	Indicators       domain.Indicators `json:"indicators" yaml:"indicators"`
	Breakdown        domain.Breakdown  `json:"breakdown" yaml:"breakdown"`
	RecordsProcessed int               `json:"recordsProcessed" yaml:"recordsProcessed"`
	ProcessedData    []domain.Record   `json:"processedData,omitzero" yaml:"processedData,omitempty"`
}

// failureReport is the zeroed envelope for a load or unexpected failure.
func failureReport(models []ml.Model, err error) Report {
	return Report{
		Success:       false,
		Error:         failureMessage(err),
		MLPerformance: ml.ZeroPerformance(models),
		Breakdown:     domain.EmptyBreakdown(),
	}
}

func failureMessage(err error) string {
	var loadErr *domain.LoadError
	if errors.As(err, &loadErr) {
		return "Failed to load CSV: " + loadErr.Cause
	}
	return err.Error()
}

func successMessage(records int) string {
	return fmt.Sprintf("Analysis completed for %d records", records)
}

// ModelSummary is one row of the model comparison table.
type ModelSummary struct {
	Model string  `json:"model" yaml:"model"`
	RMSE  float64 `json:"rmse" yaml:"rmse"`
	R2    float64 `json:"r2" yaml:"r2"`
}

// Summaries lists p in the order of models. Models missing from p report zeros.
func Summaries(p ml.Performance, models []ml.Model) []ModelSummary {
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		metrics := p[m.Name]
		out = append(out, ModelSummary{Model: m.Name, RMSE: metrics.RMSE, R2: metrics.R2})
	}
	return out
}
