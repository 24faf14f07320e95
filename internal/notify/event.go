package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the lifecycle transition an Event reports.
type Kind string

// Supported notification kinds.
const (
	KindRunStarted       Kind = "RUN_STARTED"
	KindRunFinished      Kind = "RUN_FINISHED"
	KindRunFailed        Kind = "RUN_FAILED"
	KindRunDismissed     Kind = "RUN_DISMISSED"
	KindRunAutoDismissed Kind = "RUN_AUTO_DISMISSED"
	KindSweepStarted     Kind = "SWEEP_STARTED"
	KindSweepComplete    Kind = "SWEEP_COMPLETE"
	KindSweepFailed      Kind = "SWEEP_FAILED"
	KindSweepDismissed   Kind = "SWEEP_DISMISSED"
)

// Run reports whether the kind concerns a per-item run.
func (k Kind) Run() bool {
	switch k {
	case KindRunStarted, KindRunFinished, KindRunFailed, KindRunDismissed, KindRunAutoDismissed:
		return true
	default:
		return false
	}
}

// Sweep reports whether the kind concerns a screening sweep.
func (k Kind) Sweep() bool {
	switch k {
	case KindSweepStarted, KindSweepComplete, KindSweepFailed, KindSweepDismissed:
		return true
	default:
		return false
	}
}

// Outcome reports whether the kind marks the end of a run or sweep
// (finished, failed, or complete) as opposed to a start or a dismissal.
func (k Kind) Outcome() bool {
	switch k {
	case KindRunFinished, KindRunFailed, KindSweepComplete, KindSweepFailed:
		return true
	default:
		return false
	}
}

// Event captures one lifecycle transition.
type Event struct {
	// ID uniquely identifies the notification.
	ID uuid.UUID `json:"id"`
	// TS is the UTC timestamp recorded by the engine.
	TS time.Time `json:"ts"`
	// Kind is the transition that occurred.
	Kind Kind `json:"kind"`
	// RunID scopes run events; zero for sweep events.
	RunID uuid.UUID `json:"run_id,omitempty"`
	// SubjectID names the analysed item for run events.
	SubjectID string `json:"subject_id,omitempty"`
	// Stage carries the sweep stage for sweep events.
	Stage string `json:"stage,omitempty"`
	// Decision and VerdictClass describe a finished run's result, when any.
	Decision     string `json:"decision,omitempty"`
	VerdictClass string `json:"verdict_class,omitempty"`
	// Percent is the displayed completion at the time of the transition.
	Percent float64 `json:"percent"`
	// FailedSteps lists the labels of errored steps on RUN_FAILED.
	FailedSteps []string `json:"failed_steps,omitempty"`
	// Dur is the wall time from start to the transition, when known.
	Dur time.Duration `json:"dur,omitempty"`
	// Note carries low-volume context such as the dismissal reason.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch {
	case e.Kind.Run():
		if e.RunID == uuid.Nil {
			return fmt.Errorf("%s requires run id", e.Kind)
		}
	case e.Kind.Sweep():
		if e.Kind != KindSweepDismissed && e.Stage == "" {
			return fmt.Errorf("%s requires stage", e.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
