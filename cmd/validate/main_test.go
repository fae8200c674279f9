package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/traffic-analysis/internal/adapter/csvsource"
	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/couchcryptid/traffic-analysis/internal/ml"
	"github.com/couchcryptid/traffic-analysis/internal/observability"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockCSV = filepath.Join("..", "..", "data", "mock", "traffic_sample.csv")

func mockReport(t *testing.T) pipeline.Report {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := pipeline.New(csvsource.NewReader(logger), ml.NewHarness(logger), logger, observability.NewMetricsForTesting())
	report, err := a.Analyze(context.Background(), mockCSV, pipeline.ModeFull)
	require.NoError(t, err)
	return report
}

func TestPhases_MockReportPasses(t *testing.T) {
	report := mockReport(t)
	data, err := os.ReadFile(mockCSV)
	require.NoError(t, err)

	for _, p := range []*phase{
		validateEnvelope(report),
		validateModels(report.MLPerformance),
		validateScores(report.ProcessedData),
		validateLocationCodes(report.ProcessedData),
		validateIndicators(report),
		validateAgainstSource(report, data),
	} {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidateScores_WrongLevel(t *testing.T) {
	records := []domain.Record{
		{Location: "A", CongestionScore: 0.7, CongestionLevel: domain.LevelLow},
		{Location: "A", CongestionScore: 1.5, CongestionLevel: domain.LevelHigh},
	}
	p := validateScores(records)
	assert.Len(t, p.errors, 2)
}

func TestValidateLocationCodes_OutOfOrder(t *testing.T) {
	records := []domain.Record{
		{Location: "B", LocationCode: 1},
		{Location: "A", LocationCode: 0},
	}
	p := validateLocationCodes(records)
	assert.Len(t, p.errors, 2)
}

func TestValidateModels_Unrounded(t *testing.T) {
	perf := ml.ZeroPerformance(ml.DefaultModels())
	perf[ml.DecisionTreeName] = ml.Metrics{RMSE: 0.12345, R2: 0.5}
	p := validateModels(perf)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], ml.DecisionTreeName)
}

func TestValidateIndicators_TamperedTotals(t *testing.T) {
	report := mockReport(t)
	report.Indicators.TotalAccidents++
	p := validateIndicators(report)
	assert.False(t, p.passed())
}

func TestValidateEnvelope_FailedReport(t *testing.T) {
	p := validateEnvelope(pipeline.Report{Error: "Failed to load CSV: file not found: x.csv"})
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "file not found")
}
