// Package clock declares the time sources the engine depends on so tests can
// substitute a manually advanced clock.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already
	// ran or was stopped.
	Stop() bool
}

// Scheduler runs single-shot callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}
