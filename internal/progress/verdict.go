package progress

import (
	"math"
	"strings"
)

// VerdictClass is the severity bucket a decision label maps to. Renderers use
// it as a color key.
type VerdictClass string

// Supported verdict classes.
const (
	VerdictPositive    VerdictClass = "positive"
	VerdictNeutral     VerdictClass = "neutral"
	VerdictNegative    VerdictClass = "negative"
	VerdictUnevaluated VerdictClass = "unevaluated"
	VerdictUnstyled    VerdictClass = "unstyled"
)

// Decision labels the analysis pipeline may attach to a result.
const (
	DecisionStrongBuy      = "STRONG_BUY"
	DecisionBuy            = "BUY"
	DecisionAccumulate     = "ACCUMULATE"
	DecisionHold           = "HOLD"
	DecisionWatch          = "WATCH"
	DecisionReduce         = "REDUCE"
	DecisionSell           = "SELL"
	DecisionStrongSell     = "STRONG_SELL"
	DecisionAvoid          = "AVOID"
	DecisionReject         = "REJECT"
	DecisionCannotEvaluate = "CANNOT_EVALUATE"
	DecisionInsufficient   = "INSUFFICIENT_DATA"
)

var verdictClasses = map[string]VerdictClass{
	DecisionStrongBuy:      VerdictPositive,
	DecisionBuy:            VerdictPositive,
	DecisionAccumulate:     VerdictPositive,
	DecisionHold:           VerdictNeutral,
	DecisionWatch:          VerdictNeutral,
	DecisionReduce:         VerdictNegative,
	DecisionSell:           VerdictNegative,
	DecisionStrongSell:     VerdictNegative,
	DecisionAvoid:          VerdictNegative,
	DecisionReject:         VerdictNegative,
	DecisionCannotEvaluate: VerdictUnevaluated,
	DecisionInsufficient:   VerdictUnevaluated,
}

// NormalizeDecision upper-cases a label and folds spaces and hyphens into
// underscores, so "strong buy" and "Strong-Buy" compare equal to STRONG_BUY.
func NormalizeDecision(label string) string {
	label = strings.ToUpper(strings.TrimSpace(label))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, label)
}

// ClassifyDecision maps a decision label to its verdict class. Unrecognized
// labels map to VerdictUnstyled.
func ClassifyDecision(label string) VerdictClass {
	if class, ok := verdictClasses[NormalizeDecision(label)]; ok {
		return class
	}
	return VerdictUnstyled
}

// Result is the terminal outcome the producer attaches to a finished run.
type Result struct {
	Decision   string   `json:"decision" yaml:"decision"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Class returns the verdict class for the result's decision.
func (r Result) Class() VerdictClass {
	return ClassifyDecision(r.Decision)
}

// ConfidenceValue returns the confidence clamped to [0,1], and whether one was set.
func (r Result) ConfidenceValue() (float64, bool) {
	if r.Confidence == nil || math.IsNaN(*r.Confidence) {
		return 0, false
	}
	return math.Min(1, math.Max(0, *r.Confidence)), true
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Confidence != nil {
		c := *r.Confidence
		cp.Confidence = &c
	}
	return &cp
}
