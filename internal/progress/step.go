package progress

import (
	"errors"
	"fmt"
	"strings"
)

// StepStatus is the lifecycle state of a single pipeline step.
type StepStatus string

// Supported step statuses.
const (
	StepPending StepStatus = "pending"
	StepActive  StepStatus = "active"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
)

// ErrStepOrder reports a step list that violates the pending/active/terminal ordering.
var ErrStepOrder = errors.New("step order violated")

// Terminal reports whether the step has finished, successfully or not.
func (s StepStatus) Terminal() bool {
	return s == StepDone || s == StepError
}

func (s StepStatus) String() string { return string(s) }

// ParseStepStatus maps producer labels onto a StepStatus. Matching is
// case-insensitive and accepts a few common synonyms.
func ParseStepStatus(input string) (StepStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "pending", "queued", "waiting", "":
		return StepPending, true
	case "active", "running", "in_progress":
		return StepActive, true
	case "done", "complete", "completed", "success":
		return StepDone, true
	case "error", "failed", "failure":
		return StepError, true
	default:
		return StepPending, false
	}
}

// UnmarshalText decodes a status label. Unknown labels decode as StepPending
// so a malformed producer payload still yields a renderable run.
func (s *StepStatus) UnmarshalText(text []byte) error {
	status, _ := ParseStepStatus(string(text))
	*s = status
	return nil
}

// MarshalText encodes the canonical status label.
func (s StepStatus) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(StepPending), nil
	}
	return []byte(s), nil
}

// Step is one labelled stage of the analysis pipeline.
type Step struct {
	Label  string     `json:"label" yaml:"label"`
	Status StepStatus `json:"status" yaml:"status"`
}

// CheckOrder verifies that at most one step is active, that every step before
// it is terminal, and that every step after it is pending. The check is
// advisory; derivations never depend on it.
func CheckOrder(steps []Step) error {
	active := -1
	for i, step := range steps {
		if step.Status != StepActive {
			continue
		}
		if active >= 0 {
			return fmt.Errorf("%w: steps %d and %d are both active", ErrStepOrder, active, i)
		}
		active = i
	}
	if active < 0 {
		return nil
	}
	for i := 0; i < active; i++ {
		if !steps[i].Status.Terminal() {
			return fmt.Errorf("%w: step %d (%s) precedes the active step but is %s",
				ErrStepOrder, i, steps[i].Label, steps[i].Status)
		}
	}
	for i := active + 1; i < len(steps); i++ {
		if steps[i].Status != StepPending {
			return fmt.Errorf("%w: step %d (%s) follows the active step but is %s",
				ErrStepOrder, i, steps[i].Label, steps[i].Status)
		}
	}
	return nil
}

// NewSteps builds a pending step list for a run that is about to start.
func NewSteps(labels ...string) []Step {
	steps := make([]Step, 0, len(labels))
	for _, label := range labels {
		steps = append(steps, Step{Label: label, Status: StepPending})
	}
	return steps
}

func cloneSteps(src []Step) []Step {
	if src == nil {
		return nil
	}
	dst := make([]Step, len(src))
	copy(dst, src)
	return dst
}
