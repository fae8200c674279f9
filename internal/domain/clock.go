package domain

import "github.com/jonboulle/clockwork"

// clock supplies the default Date for tables without a date column.
// Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for default dates. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
