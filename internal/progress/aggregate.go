package progress

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation errors for Aggregate.
var (
	ErrNoSteps          = errors.New("run has no steps")
	ErrMissingSubject   = errors.New("subject id is required")
	ErrBatchPosition    = errors.New("batch position invalid")
	ErrResultBeforeDone = errors.New("result present before every step finished")
)

// Aggregate is the per-run record the producer writes: which subject is being
// analysed, where it sits in a batch, the current step list, and the result
// once the run finishes.
type Aggregate struct {
	// RunID identifies one run. A new RunID means a new run even when the
	// subject is unchanged.
	RunID uuid.UUID `json:"run_id" yaml:"run_id"`
	// SubjectID names the item under analysis (e.g. a ticker).
	SubjectID string `json:"subject_id" yaml:"subject_id"`
	// BatchIndex and BatchTotal are both set or both nil; 1 <= index <= total.
	BatchIndex *int `json:"batch_index,omitempty" yaml:"batch_index,omitempty"`
	BatchTotal *int `json:"batch_total,omitempty" yaml:"batch_total,omitempty"`
	// Steps is replaced wholesale on every update.
	Steps []Step `json:"steps" yaml:"steps"`
	// Result is set once every step is done or errored.
	Result *Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// NewAggregate starts a run for subjectID with every step pending.
func NewAggregate(subjectID string, labels ...string) *Aggregate {
	return &Aggregate{
		RunID:     uuid.New(),
		SubjectID: subjectID,
		Steps:     NewSteps(labels...),
	}
}

// WithBatch returns a copy positioned at index of total within a batch.
func (a *Aggregate) WithBatch(index, total int) *Aggregate {
	cp := a.Clone()
	cp.BatchIndex = &index
	cp.BatchTotal = &total
	return cp
}

// Summary derives the run's completion state from its steps.
func (a *Aggregate) Summary() Summary {
	if a == nil {
		return Summarize(nil)
	}
	return Summarize(a.Steps)
}

// Position returns the batch position when both halves are present and valid.
func (a *Aggregate) Position() (index, total int, ok bool) {
	if a == nil || a.BatchIndex == nil || a.BatchTotal == nil {
		return 0, 0, false
	}
	index, total = *a.BatchIndex, *a.BatchTotal
	if index < 1 || index > total {
		return 0, 0, false
	}
	return index, total, true
}

// Validate checks the aggregate's structural invariants. Consumers still
// derive a view from an invalid aggregate; Validate exists for producers and
// ingress boundaries that want to reject bad payloads early.
func (a *Aggregate) Validate() error {
	if a == nil {
		return errors.New("aggregate is nil")
	}
	if strings.TrimSpace(a.SubjectID) == "" {
		return ErrMissingSubject
	}
	if len(a.Steps) == 0 {
		return ErrNoSteps
	}
	if (a.BatchIndex == nil) != (a.BatchTotal == nil) {
		return fmt.Errorf("%w: batch index and total must be set together", ErrBatchPosition)
	}
	if a.BatchIndex != nil {
		if _, _, ok := a.Position(); !ok {
			return fmt.Errorf("%w: %d of %d", ErrBatchPosition, *a.BatchIndex, *a.BatchTotal)
		}
	}
	if a.Result != nil && !Summarize(a.Steps).Done {
		return ErrResultBeforeDone
	}
	if err := CheckOrder(a.Steps); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy so callers can hand the aggregate across
// goroutines without sharing step slices.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Steps = cloneSteps(a.Steps)
	cp.Result = a.Result.clone()
	if a.BatchIndex != nil {
		idx := *a.BatchIndex
		cp.BatchIndex = &idx
	}
	if a.BatchTotal != nil {
		total := *a.BatchTotal
		cp.BatchTotal = &total
	}
	return &cp
}

// SameRun reports whether a and b describe the same run.
func SameRun(a, b *Aggregate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.RunID == b.RunID
}
