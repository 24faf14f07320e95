// Package display projects the run and sweep aggregates into the single view
// a status indicator renders. It owns the mode arbitration rule: an active
// run always preempts a sweep.
package display

import (
	"fmt"

	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
)

// Mode identifies which aggregate is authoritative for display.
type Mode string

// Supported modes.
const (
	ModeNone  Mode = "none"
	ModeRun   Mode = "run"
	ModeSweep Mode = "sweep"
)

// State is the coarse phase a renderer keys its layout on.
type State string

// Supported states.
const (
	StateRunning State = "running"
	StateVerdict State = "verdict"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Fallback labels for terminal runs without a verdict.
const (
	LabelFailed = "Failed"
	LabelDone   = "Done"
)

// View is the derived, non-persisted display state.
type View struct {
	Mode  Mode  `json:"mode"`
	State State `json:"state,omitempty"`
	// Label is the headline text: the decision, Failed/Done, the active step,
	// or the sweep stage with its detail.
	Label           string  `json:"label"`
	IsDone          bool    `json:"is_done"`
	HasError        bool    `json:"has_error"`
	DisplayPct      float64 `json:"display_pct"`
	ActiveLabel     string  `json:"active_label"`
	VerdictColorKey *string `json:"verdict_color_key"`

	// Run-only fields.
	RunID      string          `json:"run_id,omitempty"`
	SubjectID  string          `json:"subject_id,omitempty"`
	Position   string          `json:"position,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	Steps      []progress.Step `json:"steps,omitempty"`

	// Sweep-only fields.
	Tone screening.Tone `json:"tone,omitempty"`
}

// Visible reports whether anything should be rendered.
func (v View) Visible() bool { return v.Mode != ModeNone }

// Select is the mode arbiter: a present run wins regardless of sweep state,
// then a present sweep, otherwise nothing.
func Select(run *progress.Aggregate, sweep *screening.Aggregate) Mode {
	switch {
	case run != nil:
		return ModeRun
	case sweep != nil:
		return ModeSweep
	default:
		return ModeNone
	}
}

// Derive builds the view from one consistent pair of aggregate values.
func Derive(run *progress.Aggregate, sweep *screening.Aggregate) View {
	switch Select(run, sweep) {
	case ModeRun:
		return FromRun(run)
	case ModeSweep:
		return FromSweep(*sweep)
	default:
		return View{Mode: ModeNone}
	}
}

// FromRun projects a run aggregate. An unfinished run shows its active step
// even after a step errored. The verdict color key is set only for a
// finished, error-free run carrying a result; otherwise a finished run shows
// Failed, or Done when nothing errored.
func FromRun(run *progress.Aggregate) View {
	sum := run.Summary()
	v := View{
		Mode:        ModeRun,
		IsDone:      sum.Done,
		HasError:    sum.HasError,
		DisplayPct:  sum.Percent,
		ActiveLabel: sum.ActiveLabel,
		RunID:       run.RunID.String(),
		SubjectID:   run.SubjectID,
		Steps:       append([]progress.Step(nil), run.Steps...),
	}
	if idx, total, ok := run.Position(); ok {
		v.Position = fmt.Sprintf("%d/%d", idx, total)
	}

	switch {
	case !sum.Done:
		v.State = StateRunning
		v.Label = sum.ActiveLabel
	case sum.HasError:
		v.State = StateFailed
		v.Label = LabelFailed
	case run.Result != nil:
		key := string(run.Result.Class())
		v.State = StateVerdict
		v.Label = run.Result.Decision
		v.VerdictColorKey = &key
		if conf, ok := run.Result.ConfidenceValue(); ok {
			v.Confidence = &conf
		}
	default:
		v.State = StateDone
		v.Label = LabelDone
	}
	return v
}

// FromSweep projects a sweep aggregate. The percentage is the clamped pct;
// "complete" and "error" are the only stages with distinct emphasis.
func FromSweep(sweep screening.Aggregate) View {
	v := View{
		Mode:        ModeSweep,
		Label:       sweep.Label(),
		IsDone:      sweep.Complete(),
		HasError:    sweep.Failed(),
		DisplayPct:  sweep.BarWidth(),
		ActiveLabel: sweep.Stage,
		Tone:        sweep.Tone(),
	}
	switch {
	case sweep.Failed():
		v.State = StateFailed
	case sweep.Complete():
		v.State = StateDone
	default:
		v.State = StateRunning
	}
	return v
}
