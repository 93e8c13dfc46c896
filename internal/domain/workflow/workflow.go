// Package workflow governs a score's lifecycle: in_progress -> submitted ->
// validated | final. No transition skips a state and there is no path back
// from a terminal state. Corrections to a validated score are modeled as a
// new score version with its own audit trail.
package workflow

import (
	"fmt"

	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

// Submission plausibility band. Totals outside it cannot pass submit and
// auto-validation never fires for them.
const (
	MinPlausibleTotal = 10.0
	MaxPlausibleTotal = rubric.TotalPossiblePoints
)

// SystemActor appears in the audit trail for automatic transitions.
const SystemActor = "system"

// transitions is the complete state graph.
var transitions = map[scoring.Status][]scoring.Status{
	scoring.StatusInProgress: {scoring.StatusSubmitted},
	scoring.StatusSubmitted:  {scoring.StatusValidated, scoring.StatusFinal},
	scoring.StatusValidated:  {},
	scoring.StatusFinal:      {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to scoring.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a state change, returning ErrInvalidTransition when
// the graph forbids it.
func Transition(from, to scoring.Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether a state has no outgoing transitions.
func Terminal(s scoring.Status) bool {
	return len(transitions[s]) == 0
}

// CheckSubmit gates the in_progress -> submitted transition. Every
// non-bonus criterion of the template must carry a score detail, and the
// total must sit inside the plausibility band.
func CheckSubmit(t rubric.Template, s scoring.Score) error {
	if err := Transition(s.Status, scoring.StatusSubmitted); err != nil {
		return err
	}

	scored := make(map[string]struct{}, len(s.Details))
	for _, d := range s.Details {
		scored[d.CriterionID] = struct{}{}
	}
	var missing []string
	for _, c := range t.RequiredCriteria() {
		if _, ok := scored[c.ID]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unscored criteria %v", ErrIncompleteScoring, missing)
	}

	if s.TotalScore < MinPlausibleTotal || s.TotalScore > MaxPlausibleTotal {
		return fmt.Errorf("%w: total %.2f outside [%.0f, %.0f]",
			ErrImplausibleScore, s.TotalScore, MinPlausibleTotal, MaxPlausibleTotal)
	}
	return nil
}

// AutoValidateEligible reports whether a submitted score qualifies for
// automatic validation. Scores outside the band require a human validator.
func AutoValidateEligible(s scoring.Score) bool {
	return s.Status == scoring.StatusSubmitted &&
		s.TotalScore >= MinPlausibleTotal &&
		s.TotalScore <= MaxPlausibleTotal
}
