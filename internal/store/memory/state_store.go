// Package memory provides an in-process StateStore.
package memory

import (
	"sync"

	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
)

// StateStore keeps both aggregates in memory. Values are copied on the way
// in and on the way out.
type StateStore struct {
	mu        sync.RWMutex
	progress  *progress.Aggregate
	screening *screening.Aggregate
}

// NewStateStore constructs an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// Progress returns a copy of the run aggregate, or nil when absent.
func (s *StateStore) Progress() *progress.Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress.Clone()
}

// SetProgress stores a copy of value; nil clears the run aggregate.
func (s *StateStore) SetProgress(value *progress.Aggregate) {
	cp := value.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = cp
}

// Screening returns a copy of the sweep aggregate, or nil when absent.
func (s *StateStore) Screening() *screening.Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screening.Clone()
}

// SetScreening stores a copy of value; nil clears the sweep aggregate.
func (s *StateStore) SetScreening(value *screening.Aggregate) {
	cp := value.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screening = cp
}

// Snapshot returns copies of both aggregates taken under a single lock.
func (s *StateStore) Snapshot() (*progress.Aggregate, *screening.Aggregate) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress.Clone(), s.screening.Clone()
}
