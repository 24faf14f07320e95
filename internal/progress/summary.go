package progress

import "math"

// StartingLabel is shown while a run is unfinished and no step is active yet.
const StartingLabel = "Starting…"

// Summary is the read-only projection of a step list.
type Summary struct {
	// Done is true once every step is done or errored. An empty list counts as done.
	Done bool
	// HasError is true when any step errored, regardless of position.
	HasError bool
	// DoneCount counts steps with status done; errored steps are excluded.
	DoneCount int
	// Total is the number of steps.
	Total int
	// Percent is 100 when Done, otherwise DoneCount/Total*100 clamped to [0,100].
	Percent float64
	// ActiveLabel names the active step, StartingLabel when nothing is active
	// yet, or "" once the run is done.
	ActiveLabel string
}

// Summarize derives completion, failure, percentage, and the active label
// from a step list. It has no side effects.
func Summarize(steps []Step) Summary {
	sum := Summary{Done: true, Total: len(steps)}
	activeLabel := ""
	hasActive := false
	for _, step := range steps {
		switch step.Status {
		case StepDone:
			sum.DoneCount++
		case StepError:
			sum.HasError = true
		case StepActive:
			sum.Done = false
			if !hasActive {
				activeLabel = step.Label
				hasActive = true
			}
		default:
			sum.Done = false
		}
	}

	switch {
	case sum.Done:
		sum.Percent = 100
	default:
		sum.Percent = ClampPercent(float64(sum.DoneCount) / float64(sum.Total) * 100)
	}

	switch {
	case sum.Done:
	case hasActive:
		sum.ActiveLabel = activeLabel
	default:
		sum.ActiveLabel = StartingLabel
	}
	return sum
}

// ClampPercent bounds p to [0,100]. NaN collapses to 0.
func ClampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
