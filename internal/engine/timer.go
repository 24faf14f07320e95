package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/runwatch/internal/clock"
)

// dismissTimer is the single auto-dismiss slot. Callers hold Engine.mu.
// Each arming bumps the generation so a callback from a cancelled arming
// that raced its Stop can recognise itself as stale.
type dismissTimer struct {
	handle clock.Timer
	gen    uint64
	runID  uuid.UUID
}

func (d *dismissTimer) armed() bool { return d.handle != nil }

// arm schedules fire after delay and returns the new generation.
func (d *dismissTimer) arm(s clock.Scheduler, delay time.Duration, fire func(gen uint64)) uint64 {
	d.cancel()
	d.gen++
	gen := d.gen
	d.handle = s.AfterFunc(delay, func() { fire(gen) })
	return gen
}

// cancel stops a pending callback and invalidates its generation.
func (d *dismissTimer) cancel() {
	if d.handle == nil {
		return
	}
	d.handle.Stop()
	d.handle = nil
	d.runID = uuid.Nil
	d.gen++
}

// current reports whether gen belongs to the live arming.
func (d *dismissTimer) current(gen uint64) bool {
	return d.handle != nil && d.gen == gen
}

// fired releases the slot after its callback ran.
func (d *dismissTimer) fired() {
	d.handle = nil
	d.runID = uuid.Nil
}
