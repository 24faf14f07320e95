// Package screening models the batch sweep that runs independently of the
// per-item analysis: a free-form stage label, optional detail, and a
// completion percentage.
package screening

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/JakeFAU/runwatch/internal/progress"
)

// Reserved terminal stages. Every other stage value is treated as in progress.
const (
	StageComplete = "complete"
	StageError    = "error"
)

// Tone is the emphasis a renderer applies to the stage label.
type Tone string

// Supported tones.
const (
	ToneComplete Tone = "complete"
	ToneError    Tone = "error"
	ToneMuted    Tone = "muted"
)

// Validation errors for Aggregate.
var (
	ErrEmptyStage = errors.New("screening stage is required")
	ErrPctRange   = errors.New("screening pct outside [0,100]")
)

// Aggregate is the sweep record written by the screening producer.
type Aggregate struct {
	Stage  string  `json:"stage" yaml:"stage"`
	Detail string  `json:"detail,omitempty" yaml:"detail,omitempty"`
	Pct    float64 `json:"pct" yaml:"pct"`
}

// Complete reports whether the sweep reached the reserved "complete" stage.
func (a Aggregate) Complete() bool { return a.Stage == StageComplete }

// Failed reports whether the sweep reached the reserved "error" stage.
func (a Aggregate) Failed() bool { return a.Stage == StageError }

// Terminal reports whether the sweep has stopped, successfully or not.
func (a Aggregate) Terminal() bool { return a.Complete() || a.Failed() }

// Tone selects label emphasis. Stage values are compared verbatim.
func (a Aggregate) Tone() Tone {
	switch a.Stage {
	case StageComplete:
		return ToneComplete
	case StageError:
		return ToneError
	default:
		return ToneMuted
	}
}

// Label renders the stage verbatim with the detail as a suffix when present.
func (a Aggregate) Label() string {
	detail := strings.TrimSpace(a.Detail)
	if detail == "" {
		return a.Stage
	}
	return a.Stage + " · " + detail
}

// BarWidth is the completion bar width in percent. It is pct clamped to
// [0,100] with no smoothing.
func (a Aggregate) BarWidth() float64 {
	return progress.ClampPercent(a.Pct)
}

// Validate reports malformed producer payloads. Rendering never depends on it.
func (a Aggregate) Validate() error {
	if strings.TrimSpace(a.Stage) == "" {
		return ErrEmptyStage
	}
	if math.IsNaN(a.Pct) || a.Pct < 0 || a.Pct > 100 {
		return fmt.Errorf("%w: %v", ErrPctRange, a.Pct)
	}
	return nil
}

// Clone returns a heap copy of a.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
