// Package domain models tabular traffic observations and the pure stages that
// turn them into an analysis.
//
// # Input Columns
//
// Source tables are free-form CSV. Headers are matched case-sensitively onto
// seven canonical columns, with a fixed set of aliases:
//
//	Date         any common date layout, parsed in UTC
//	Hour         0-23 integer
//	Location     free-text road or junction label
//	Queue        Queue_Density, queue_density, queue
//	StopDensity  Stop_Density, stop_density, stopdensity
//	Accidents    Accidents_Reported, accidents_reported, accidents
//	Fatalities   fatalities
//
// Other columns are ignored. Missing columns and unparseable cells take the
// column default (0, "Unknown", or the current time for a missing Date
// column). Unparseable dates in a present column stay empty. See [Normalize].
//
// # Congestion Score
//
// The score is a robust min-max rescale of a single base signal chosen per
// table: Queue when its sum is positive, else StopDensity when its sum is
// positive, else zero. Values at or below the 1st percentile score 0, at or
// above the 99th score 1. Percentiles interpolate linearly between closest
// ranks. See [Score].
//
//	score <  0.33         Green (Low)
//	0.33 <= score < 0.66  Yellow (Medium)
//	score >= 0.66         Red (High)
//
// # Location Codes
//
// Locations receive 0-based integer codes in order of first appearance. Codes
// are local to one table and are not stable across inputs.
package domain
