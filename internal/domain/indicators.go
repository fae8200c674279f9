package domain

import (
	"errors"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Indicators are headline totals over a scored table.
type Indicators struct {
	TotalAccidents  int     `json:"totalAccidents" yaml:"totalAccidents"`
	TotalFatalities int     `json:"totalFatalities" yaml:"totalFatalities"`
	AvgCongestion   float64 `json:"avgCongestion" yaml:"avgCongestion"`
}

// Breakdown groups the scored table the way the dashboard charts consume it.
type Breakdown struct {
	Levels           map[string]int  `json:"levels" yaml:"levels"`
	Hourly           []HourlyLevels  `json:"hourly" yaml:"hourly"`
	AccidentHotspots []LocationTotal `json:"accidentHotspots" yaml:"accidentHotspots"`
	FatalityHotspots []LocationTotal `json:"fatalityHotspots" yaml:"fatalityHotspots"`
}

// HourlyLevels counts records per congestion level for one hour of day.
type HourlyLevels struct {
	Hour   int `json:"hour" yaml:"hour"`
	Low    int `json:"low" yaml:"low"`
	Medium int `json:"medium" yaml:"medium"`
	High   int `json:"high" yaml:"high"`
}

// LocationTotal is a per-location sum.
type LocationTotal struct {
	Location string `json:"location" yaml:"location"`
	Total    int    `json:"total" yaml:"total"`
}

const maxHotspots = 10

// errNonFinite marks an average that could not be represented in the report.
var errNonFinite = errors.New("average congestion is not finite")

// Aggregate computes indicators over a scored table. An empty table yields zero
// indicators. Any failure returns zero indicators and an *AggregationError.
func Aggregate(t Table) (ind Indicators, err error) {
	defer func() {
		if r := recover(); r != nil {
			ind, err = Indicators{}, &AggregationError{Err: Recovered(r)}
		}
	}()

	if t.Len() == 0 {
		return Indicators{}, nil
	}

	scores := make([]float64, t.Len())
	for i, r := range t.Records {
		ind.TotalAccidents += r.Accidents
		ind.TotalFatalities += r.Fatalities
		scores[i] = r.CongestionScore
	}

	avg := stat.Mean(scores, nil)
	if math.IsNaN(avg) || math.IsInf(avg, 0) {
		return Indicators{}, &AggregationError{Err: errNonFinite}
	}
	ind.AvgCongestion = Round3(avg)
	return ind, nil
}

// EmptyBreakdown returns a breakdown with every level present and no groups.
func EmptyBreakdown() Breakdown {
	b := Breakdown{
		Levels:           make(map[string]int, len(Levels)),
		Hourly:           []HourlyLevels{},
		AccidentHotspots: []LocationTotal{},
		FatalityHotspots: []LocationTotal{},
	}
	for _, l := range Levels {
		b.Levels[l] = 0
	}
	return b
}

// Summarize computes the level distribution, hourly level counts and the top
// accident and fatality locations. Failures degrade to EmptyBreakdown.
func Summarize(t Table) (b Breakdown, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = EmptyBreakdown(), &AggregationError{Err: Recovered(r)}
		}
	}()

	b = EmptyBreakdown()
	hourly := make(map[int]*HourlyLevels)
	accidents := make(map[string]int)
	fatalities := make(map[string]int)

	for _, r := range t.Records {
		b.Levels[r.CongestionLevel]++

		h, ok := hourly[r.Hour]
		if !ok {
			h = &HourlyLevels{Hour: r.Hour}
			hourly[r.Hour] = h
		}
		switch r.CongestionLevel {
		case LevelHigh:
			h.High++
		case LevelMedium:
			h.Medium++
		default:
			h.Low++
		}

		if r.Accidents > 0 {
			accidents[r.Location] += r.Accidents
		}
		if r.Fatalities > 0 {
			fatalities[r.Location] += r.Fatalities
		}
	}

	for _, h := range hourly {
		b.Hourly = append(b.Hourly, *h)
	}
	sort.Slice(b.Hourly, func(i, j int) bool { return b.Hourly[i].Hour < b.Hourly[j].Hour })

	b.AccidentHotspots = topLocations(accidents)
	b.FatalityHotspots = topLocations(fatalities)
	return b, nil
}

func topLocations(totals map[string]int) []LocationTotal {
	out := make([]LocationTotal, 0, len(totals))
	for loc, total := range totals {
		out = append(out, LocationTotal{Location: loc, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Location < out[j].Location
	})
	if len(out) > maxHotspots {
		out = out[:maxHotspots]
	}
	return out
}

// Round3 rounds to three decimal places, correctly rounded from the exact binary
// value. Negative zero folds to zero.
func Round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return v
	}
	if r == 0 {
		return 0
	}
	return r
}
