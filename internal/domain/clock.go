package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is the package-level time source for the future-date check in the
// parser and for choosing the current forecast issue. Tests freeze it with
// SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now reports the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}
