// Package id generates run and event identifiers.
package id

import (
	"sync"

	"github.com/google/uuid"
)

// Source hands out identifiers for runs and notification events.
type Source interface {
	NewID() uuid.UUID
}

// V7 produces time-ordered UUIDv7 values so event IDs sort by emission.
type V7 struct{}

// NewID returns a UUIDv7, or a random UUIDv4 if the v7 clock read fails.
func (V7) NewID() uuid.UUID {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return u
}

// Sequence returns a fixed list of IDs in order, then falls back to V7.
// Useful where tests need to assert on exact identifiers.
type Sequence struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

// NewSequence creates a Sequence over ids.
func NewSequence(ids ...uuid.UUID) *Sequence {
	return &Sequence{ids: ids}
}

// NewID pops the next queued ID.
func (s *Sequence) NewID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return V7{}.NewID()
	}
	next := s.ids[0]
	s.ids = s.ids[1:]
	return next
}
