package domain

import (
	"math"
	"slices"
)

// Congestion level labels. Downstream consumers branch on these exact strings.
const (
	LevelLow    = "Green (Low)"
	LevelMedium = "Yellow (Medium)"
	LevelHigh   = "Red (High)"
)

// Levels lists the congestion labels from lowest to highest.
var Levels = []string{LevelLow, LevelMedium, LevelHigh}

// Level thresholds. A score equal to a threshold belongs to the higher bucket.
const (
	mediumThreshold = 0.33
	highThreshold   = 0.66
)

// Signal identifies which density column drives the congestion score.
type Signal string

const (
	SignalQueue       Signal = "queue"
	SignalStopDensity Signal = "stop_density"
	SignalNone        Signal = "none"
)

// Clip percentiles used as the 0 and 1 anchors of the score.
const (
	lowPercentile  = 0.01
	highPercentile = 0.99
)

// Score derives congestion_score and congestion_level for every record. The base
// signal is chosen once for the whole table: Queue if its sum is positive,
// otherwise StopDensity if its sum is positive, otherwise a constant zero. The
// input table is not modified.
func Score(t Table) Table {
	out := t.clone()
	signal, base := SelectSignal(t.Records)
	out.Signal = signal

	p1, p99 := Percentile(base, lowPercentile), Percentile(base, highPercentile)
	scores := ClipScores(base, p1, p99)
	for i := range out.Records {
		out.Records[i].CongestionScore = scores[i]
		out.Records[i].CongestionLevel = Level(scores[i])
	}
	return out
}

// SelectSignal returns the chosen signal and its per-record values.
func SelectSignal(records []Record) (Signal, []float64) {
	queue := make([]float64, len(records))
	stops := make([]float64, len(records))
	var queueSum, stopSum float64
	for i, r := range records {
		queue[i] = r.Queue
		stops[i] = r.StopDensity
		queueSum += r.Queue
		stopSum += r.StopDensity
	}

	switch {
	case queueSum > 0:
		return SignalQueue, queue
	case stopSum > 0:
		return SignalStopDensity, stops
	default:
		return SignalNone, make([]float64, len(records))
	}
}

// ClipScores rescales values so p1 maps to 0 and p99 to 1, clamping outside
// values. When p1 == p99 every score is 0. Non-finite results become 0.
func ClipScores(values []float64, p1, p99 float64) []float64 {
	scores := make([]float64, len(values))
	if p1 == p99 || math.IsNaN(p1) || math.IsNaN(p99) {
		return scores
	}
	span := p99 - p1
	for i, v := range values {
		s := (v - p1) / span
		switch {
		case math.IsNaN(s):
			s = 0
		case s < 0:
			s = 0
		case s > 1:
			s = 1
		}
		scores[i] = s
	}
	return scores
}

// Percentile returns the q-quantile (0 <= q <= 1) of values using linear
// interpolation between closest ranks: position (n-1)*q in sorted order.
// It returns NaN for an empty slice.
func Percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Level buckets a score into its congestion label.
func Level(score float64) string {
	switch {
	case score < mediumThreshold:
		return LevelLow
	case score < highThreshold:
		return LevelMedium
	default:
		return LevelHigh
	}
}
