package domain

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Parsed is the outcome of a parse-or-default conversion. Defaulted is true when
// the cell was blank or unparseable and Value holds the column default instead.
type Parsed[T any] struct {
	Value     T
	Defaulted bool
}

func parsed[T any](v T) Parsed[T] { return Parsed[T]{Value: v} }
func defaulted[T any](v T) Parsed[T] { return Parsed[T]{Value: v, Defaulted: true} }

// ParseAmount parses a non-negative decimal. Blank, non-numeric, non-finite and
// negative values default to 0.
func ParseAmount(s string) Parsed[float64] {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaulted(0.0)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return defaulted(0.0)
	}
	return parsed(v)
}

// ParseCount parses a non-negative integer count. Decimal input is truncated
// ("3.0" -> 3); anything ParseAmount rejects defaults to 0.
func ParseCount(s string) Parsed[int] {
	amt := ParseAmount(s)
	if amt.Defaulted {
		return defaulted(0)
	}
	if amt.Value > math.MaxInt32 {
		return defaulted(0)
	}
	return parsed(int(math.Trunc(amt.Value)))
}

// ParseDate parses a date in any common layout. Unparseable input yields a nil
// time, which is a tolerated missing date rather than a failure.
func ParseDate(s string) Parsed[*time.Time] {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaulted[*time.Time](nil)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return defaulted[*time.Time](nil)
	}
	return parsed(&t)
}

// ParseLocation trims a location label; blank cells become UnknownLocation.
func ParseLocation(s string) Parsed[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaulted(UnknownLocation)
	}
	return parsed(s)
}
