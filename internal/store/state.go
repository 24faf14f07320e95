package store

import (
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
)

// StateStore holds the two independently written aggregates. A nil value
// means the aggregate is absent. Implementations must be safe for concurrent
// use and must not retain or hand out pointers the caller can mutate.
type StateStore interface {
	// Progress returns the current run aggregate, or nil.
	Progress() *progress.Aggregate
	// SetProgress replaces the run aggregate; nil clears it.
	SetProgress(value *progress.Aggregate)
	// Screening returns the current sweep aggregate, or nil.
	Screening() *screening.Aggregate
	// SetScreening replaces the sweep aggregate; nil clears it.
	SetScreening(value *screening.Aggregate)
	// Snapshot returns both aggregates read under one consistent view.
	Snapshot() (*progress.Aggregate, *screening.Aggregate)
}
