package pipeline_test

import (
	"context"
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

func TestAnalyzer_WithMockCSVData(t *testing.T) {
	path := filepath.Join("..", "..", "data", "mock", "traffic_sample.csv")
	a := newAnalyzer(csvsource.NewReader(discardLogger()), observability.NewMetricsForTesting())

	report, err := a.Analyze(context.Background(), path, pipeline.ModeFull)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 30, report.RecordsProcessed)
	assert.Equal(t, domain.Indicators{TotalAccidents: 14, TotalFatalities: 2, AvgCongestion: 0.537}, report.Indicators)
	assert.Equal(t, map[string]int{
		domain.LevelLow:    7,
		domain.LevelMedium: 13,
		domain.LevelHigh:   10,
	}, report.Breakdown.Levels)

	require.Len(t, report.ProcessedData, 30)
	first := report.ProcessedData[0]
	assert.Equal(t, "Main St & 1st Ave", first.Location)
	assert.Equal(t, 19.4, first.Queue)
	assert.Equal(t, 0.15, first.StopDensity)
	assert.Equal(t, 6, first.Hour)
	for i, r := range report.ProcessedData {
		assert.Equal(t, i%4, r.LocationCode, "row %d", i)
		require.NotNil(t, r.Date, "row %d", i)
	}

	for _, m := range ml.DefaultModels() {
		metrics, ok := report.MLPerformance[m.Name]
		require.True(t, ok, m.Name)
		assert.GreaterOrEqual(t, metrics.RMSE, 0.0, m.Name)
	}
}
