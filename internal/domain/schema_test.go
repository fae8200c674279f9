package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColumns(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		want  map[string]string
	}{
		{
			name:  "canonical names",
			order: []string{"Date", "Hour", "Location", "Queue"},
			want:  map[string]string{ColDate: "Date", ColHour: "Hour", ColLocation: "Location", ColQueue: "Queue"},
		},
		{
			name:  "aliases",
			order: []string{"accidents_reported", "Stop_Density", "queue_density"},
			want:  map[string]string{ColAccidents: "accidents_reported", ColStopDensity: "Stop_Density", ColQueue: "queue_density"},
		},
		{
			name:  "canonical wins over earlier alias",
			order: []string{"accidents", "Accidents"},
			want:  map[string]string{ColAccidents: "Accidents"},
		},
		{
			name:  "first alias wins",
			order: []string{"Queue_Density", "queue"},
			want:  map[string]string{ColQueue: "Queue_Density"},
		},
		{
			name:  "unknown headers ignored",
			order: []string{"Weather", "ACCIDENTS"},
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveColumns(tt.order))
		})
	}
}

func TestNormalize_FullTable(t *testing.T) {
	raw := NewRawTable(
		[]string{"Date", "Hour", "Location", "Queue", "StopDensity", "Accidents", "Fatalities", "Weather"},
		[][]string{
			{"2024-03-01", "8", "Main St", "12.5", "0.4", "2", "0", "Rain"},
			{"2024-03-01", "9", "Oak Ave", "3", "0.1", "0", "1", "Sun"},
			{"2024-03-02", "8", "Main St", "7", "0.2", "1", "0", "Fog"},
		},
	)

	table, err := Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	first := table.Records[0]
	require.NotNil(t, first.Date)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *first.Date)
	assert.Equal(t, 8, first.Hour)
	assert.Equal(t, "Main St", first.Location)
	assert.Equal(t, 12.5, first.Queue)
	assert.Equal(t, 0.4, first.StopDensity)
	assert.Equal(t, 2, first.Accidents)
	assert.Equal(t, 0, first.Fatalities)

	assert.Equal(t, []string{"Main St", "Oak Ave"}, table.Locations)
	assert.Equal(t, 0, table.Records[0].LocationCode)
	assert.Equal(t, 1, table.Records[1].LocationCode)
	assert.Equal(t, 0, table.Records[2].LocationCode)
	assert.Empty(t, table.Defaulted)
}

func TestNormalize_MissingColumnsDefault(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	raw := NewRawTable([]string{"Queue"}, [][]string{{"4"}, {"5"}})
	table, err := Normalize(raw)
	require.NoError(t, err)

	for _, r := range table.Records {
		require.NotNil(t, r.Date)
		assert.Equal(t, fake.Now(), *r.Date)
		assert.Equal(t, 0, r.Hour)
		assert.Equal(t, UnknownLocation, r.Location)
		assert.Equal(t, 0, r.LocationCode)
		assert.Equal(t, 0.0, r.StopDensity)
		assert.Equal(t, 0, r.Accidents)
		assert.Equal(t, 0, r.Fatalities)
	}
	assert.Equal(t, 4.0, table.Records[0].Queue)
	assert.Equal(t, []string{UnknownLocation}, table.Locations)
}

func TestNormalize_BadCellsDefault(t *testing.T) {
	raw := NewRawTable(
		[]string{"Date", "Hour", "Location", "Queue", "Accidents"},
		[][]string{
			{"not a date", "x", "  ", "-3", "3.9"},
			{"", "", "Elm Rd", "NaN", "many"},
		},
	)

	table, err := Normalize(raw)
	require.NoError(t, err)

	assert.Nil(t, table.Records[0].Date)
	assert.Nil(t, table.Records[1].Date)
	assert.Equal(t, 0, table.Records[0].Hour)
	assert.Equal(t, UnknownLocation, table.Records[0].Location)
	assert.Equal(t, "Elm Rd", table.Records[1].Location)
	assert.Equal(t, 0.0, table.Records[0].Queue)
	assert.Equal(t, 0.0, table.Records[1].Queue)
	assert.Equal(t, 3, table.Records[0].Accidents)
	assert.Equal(t, 0, table.Records[1].Accidents)

	assert.Equal(t, map[string]int{
		ColDate:      2,
		ColHour:      2,
		ColLocation:  1,
		ColQueue:     2,
		ColAccidents: 1,
	}, table.Defaulted)
}

func TestNormalize_AliasesMatchCanonical(t *testing.T) {
	rows := [][]string{{"2", "1", "5"}, {"3", "0", "1"}}
	aliased, err := Normalize(NewRawTable([]string{"accidents_reported", "fatalities", "queue_density"}, rows))
	require.NoError(t, err)
	canonical, err := Normalize(NewRawTable([]string{"Accidents", "Fatalities", "Queue"}, rows))
	require.NoError(t, err)

	a, err := Aggregate(Score(aliased))
	require.NoError(t, err)
	c, err := Aggregate(Score(canonical))
	require.NoError(t, err)
	assert.Equal(t, c, a)
	assert.Equal(t, Indicators{TotalAccidents: 5, TotalFatalities: 1, AvgCongestion: 0.5}, a)
}

func TestNormalize_EmptyTable(t *testing.T) {
	table, err := Normalize(NewRawTable([]string{"Queue", "Location"}, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Locations)
}

func TestNormalize_ColumnLengthMismatch(t *testing.T) {
	raw := RawTable{
		Columns: map[string][]string{"Queue": {"1", "2"}},
		Order:   []string{"Queue"},
		Rows:    3,
	}
	_, err := Normalize(raw)
	require.Error(t, err)
}

func TestNewRawTable_PadsShortRows(t *testing.T) {
	raw := NewRawTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}})
	assert.Equal(t, []string{"1", "2"}, raw.Columns["A"])
	assert.Equal(t, []string{"", "3"}, raw.Columns["B"])
	assert.Equal(t, 2, raw.Rows)
}
