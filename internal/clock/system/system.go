// Package system provides the wall-clock implementations of clock.Clock and
// clock.Scheduler.
package system

import (
	"time"

	"github.com/JakeFAU/runwatch/internal/clock"
)

// Clock implements clock.Clock and clock.Scheduler on the runtime timer.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// AfterFunc schedules f on its own goroutine after d.
func (Clock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return time.AfterFunc(d, f)
}
