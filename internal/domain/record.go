package domain

import "time"

// Canonical column names after alias resolution.
const (
	ColDate        = "Date"
	ColHour        = "Hour"
	ColLocation    = "Location"
	ColQueue       = "Queue"
	ColStopDensity = "StopDensity"
	ColAccidents   = "Accidents"
	ColFatalities  = "Fatalities"
)

// UnknownLocation is used when the location column is absent or a cell is blank.
const UnknownLocation = "Unknown"

// RawTable is a column-oriented table of untyped cells as read from the source.
// Columns holds one slice per header name, each of length Rows.
type RawTable struct {
	Columns map[string][]string
	Order   []string // header order as it appeared in the source
	Rows    int

	// Digest identifies the source bytes; empty when the table was built in memory.
	Digest string
}

// NewRawTable builds a RawTable from a header and row-major cells.
// Short rows are padded with empty cells.
func NewRawTable(header []string, rows [][]string) RawTable {
	t := RawTable{
		Columns: make(map[string][]string, len(header)),
		Order:   append([]string(nil), header...),
		Rows:    len(rows),
	}
	for j, name := range header {
		col := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				col[i] = row[j]
			}
		}
		t.Columns[name] = col
	}
	return t
}

// Record is one canonical traffic row.
type Record struct {
	Date            *time.Time `json:"date" yaml:"date"`
	Hour            int        `json:"hour" yaml:"hour"`
	Location        string     `json:"location" yaml:"location"`
	LocationCode    int        `json:"location_code" yaml:"location_code"`
	Queue           float64    `json:"queue" yaml:"queue"`
	StopDensity     float64    `json:"stop_density" yaml:"stop_density"`
	Accidents       int        `json:"accidents" yaml:"accidents"`
	Fatalities      int        `json:"fatalities" yaml:"fatalities"`
	CongestionScore float64    `json:"congestion_score" yaml:"congestion_score"`
	CongestionLevel string     `json:"congestion_level" yaml:"congestion_level"`
}

// Table is the normalized record set produced by Normalize and consumed by later stages.
// Stages return a new Table rather than mutating their input.
type Table struct {
	Records []Record

	// Defaulted counts, per canonical column, the cells that could not be parsed
	// and were replaced by the column default.
	Defaulted map[string]int

	// Locations lists distinct locations in code order.
	Locations []string

	// Signal names the base signal the scorer chose. Empty before scoring.
	Signal Signal
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.Records) }

// clone copies the record slice so a stage can write scores without touching its input.
func (t Table) clone() Table {
	out := t
	out.Records = append([]Record(nil), t.Records...)
	return out
}
