package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze query windows via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// WindowStart returns the start of a trailing window of the given number of days.
// Non-positive days yield the zero time, meaning no lower bound.
func WindowStart(days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return clock.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}
