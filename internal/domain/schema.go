package domain

import "fmt"

// columnAliases maps alternate header spellings onto canonical names. Matching
// is case-sensitive; headers that are neither canonical nor listed are ignored.
var columnAliases = map[string]string{
	"Accidents_Reported": ColAccidents,
	"accidents_reported": ColAccidents,
	"accidents":          ColAccidents,
	"Queue_Density":      ColQueue,
	"queue_density":      ColQueue,
	"queue":              ColQueue,
	"Stop_Density":       ColStopDensity,
	"stop_density":       ColStopDensity,
	"stopdensity":        ColStopDensity,
	"fatalities":         ColFatalities,
}

var canonicalColumns = []string{
	ColDate, ColHour, ColLocation, ColQueue, ColStopDensity, ColAccidents, ColFatalities,
}

// ResolveColumns picks, for every canonical column, the source header that feeds
// it. A header already carrying the canonical name wins over aliases; among
// aliases the first in header order wins. Canonical columns with no source are
// absent from the result.
func ResolveColumns(order []string) map[string]string {
	resolved := make(map[string]string, len(canonicalColumns))
	for _, name := range order {
		if isCanonical(name) {
			resolved[name] = name
		}
	}
	for _, name := range order {
		target, ok := columnAliases[name]
		if !ok {
			continue
		}
		if _, taken := resolved[target]; !taken {
			resolved[target] = name
		}
	}
	return resolved
}

func isCanonical(name string) bool {
	for _, c := range canonicalColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Normalize maps a raw table onto canonical records. Missing columns are filled
// with defaults (the current time for Date, 0 for numbers, UnknownLocation for
// Location); unparseable cells fall back to the same defaults, except dates,
// which become nil. Location codes are assigned in first-seen order within this
// table only.
func Normalize(raw RawTable) (Table, error) {
	for name, col := range raw.Columns {
		if len(col) != raw.Rows {
			return Table{}, fmt.Errorf("normalize: column %q has %d cells, want %d", name, len(col), raw.Rows)
		}
	}

	sources := ResolveColumns(raw.Order)
	column := func(canonical string) []string {
		src, ok := sources[canonical]
		if !ok {
			return nil
		}
		return raw.Columns[src]
	}

	var (
		dates       = column(ColDate)
		hours       = column(ColHour)
		locations   = column(ColLocation)
		queues      = column(ColQueue)
		stops       = column(ColStopDensity)
		accidents   = column(ColAccidents)
		fatalities  = column(ColFatalities)
		defaultDate = clock.Now().UTC()
	)

	table := Table{
		Records:   make([]Record, raw.Rows),
		Defaulted: make(map[string]int),
	}
	codes := newLocationEncoder()
	count := func(col string, hit bool) {
		if hit {
			table.Defaulted[col]++
		}
	}

	for i := 0; i < raw.Rows; i++ {
		rec := &table.Records[i]

		if dates == nil {
			d := defaultDate
			rec.Date = &d
		} else {
			p := ParseDate(dates[i])
			rec.Date = p.Value
			count(ColDate, p.Defaulted)
		}

		rec.Hour = countCell(hours, i, ColHour, count)
		rec.Accidents = countCell(accidents, i, ColAccidents, count)
		rec.Fatalities = countCell(fatalities, i, ColFatalities, count)
		rec.Queue = amountCell(queues, i, ColQueue, count)
		rec.StopDensity = amountCell(stops, i, ColStopDensity, count)

		rec.Location = UnknownLocation
		if locations != nil {
			p := ParseLocation(locations[i])
			rec.Location = p.Value
			count(ColLocation, p.Defaulted)
		}
		rec.LocationCode = codes.encode(rec.Location)
	}

	table.Locations = codes.labels
	return table, nil
}

func countCell(col []string, i int, name string, count func(string, bool)) int {
	if col == nil {
		return 0
	}
	p := ParseCount(col[i])
	count(name, p.Defaulted)
	return p.Value
}

func amountCell(col []string, i int, name string, count func(string, bool)) float64 {
	if col == nil {
		return 0
	}
	p := ParseAmount(col[i])
	count(name, p.Defaulted)
	return p.Value
}

// locationEncoder assigns 0-based codes to labels in order of first appearance.
// It is scoped to a single normalization pass.
type locationEncoder struct {
	codes  map[string]int
	labels []string
}

func newLocationEncoder() *locationEncoder {
	return &locationEncoder{codes: make(map[string]int)}
}

func (e *locationEncoder) encode(label string) int {
	if code, ok := e.codes[label]; ok {
		return code
	}
	code := len(e.labels)
	e.codes[label] = code
	e.labels = append(e.labels, label)
	return code
}
