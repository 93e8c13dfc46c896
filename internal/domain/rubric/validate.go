package rubric

import (
	"fmt"
	"math"
	"strings"
)

// Report is the outcome of a structural validation pass over a template.
type Report struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors,omitempty"`
	Summary Summary  `json:"summary"`
}

// Summary aggregates structural counts for display.
type Summary struct {
	Sections    int     `json:"sections"`
	Criteria    int     `json:"criteria"`
	Levels      int     `json:"levels"`
	WeightTotal float64 `json:"weight_total"`
	TotalPoints float64 `json:"total_points"`
}

// Validate runs the structural smoke test over a template: section types,
// weight sum, and level integrity. It is not invoked per score.
func Validate(t Template) Report {
	var r Report

	var game, research int
	var weightTotal float64
	for _, s := range t.Sections {
		r.Summary.Sections++
		weightTotal += s.Weight
		switch s.Type {
		case SectionGameChallenge:
			game++
		case SectionResearchChallenge:
			research++
		default:
			r.Errors = append(r.Errors, fmt.Sprintf("section %q has unknown type %q", s.Name, s.Type))
		}
		for _, c := range s.Criteria {
			r.Summary.Criteria++
			r.Summary.Levels += len(c.Levels)
			validateCriterion(s, c, &r)
		}
	}
	r.Summary.WeightTotal = weightTotal
	r.Summary.TotalPoints = t.TotalPoints

	if game == 0 {
		r.Errors = append(r.Errors, "template has no game-challenge section")
	}
	if research == 0 {
		r.Errors = append(r.Errors, "template has no research-challenge section")
	}
	if math.Abs(weightTotal-100) > WeightTolerance {
		r.Errors = append(r.Errors, fmt.Sprintf("section weights sum to %.2f, want 100.00", weightTotal))
	}

	r.Valid = len(r.Errors) == 0
	return r
}

// Check runs Validate and folds an invalid report into a single error.
func Check(t Template) error {
	r := Validate(t)
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(r.Errors, "; "))
}

func validateCriterion(s Section, c Criterion, r *Report) {
	if c.MaxPoints <= 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("criterion %q has non-positive max points", c.Name))
	}
	switch c.ScoringType {
	case ScoringLevels:
		if len(c.Levels) != LevelCount {
			r.Errors = append(r.Errors, fmt.Sprintf("criterion %q has %d levels, want %d", c.Name, len(c.Levels), LevelCount))
			return
		}
		for i, l := range c.Levels {
			if l.Number != i+1 {
				r.Errors = append(r.Errors, fmt.Sprintf("criterion %q level %d is misnumbered as %d", c.Name, i+1, l.Number))
			}
			want := Round2(c.MaxPoints * l.Percentage / 100)
			if math.Abs(l.Points-want) > PointsTolerance {
				r.Errors = append(r.Errors, fmt.Sprintf("criterion %q level %d awards %.2f points, want %.2f", c.Name, l.Number, l.Points, want))
			}
		}
	case ScoringPoints, ScoringPercentage, ScoringBinary:
		// Alternate scoring types carry no level rows.
		if len(c.Levels) != 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("criterion %q is %s-scored but has level rows", c.Name, c.ScoringType))
		}
	default:
		r.Errors = append(r.Errors, fmt.Sprintf("criterion %q in section %q has unknown scoring type %q", c.Name, s.Name, c.ScoringType))
	}
}

// SetCriterionMaxPoints updates a criterion's point cap and recomputes all
// four of its level rows proportionally. The persistence layer must apply
// the criterion update and the level rewrite in one transaction.
func SetCriterionMaxPoints(t *Template, criterionID string, max float64) error {
	if max <= 0 {
		return fmt.Errorf("%w: %.2f", ErrInvalidMaxPoints, max)
	}
	for si := range t.Sections {
		for ci := range t.Sections[si].Criteria {
			c := &t.Sections[si].Criteria[ci]
			if c.ID != criterionID {
				continue
			}
			c.MaxPoints = max
			if c.ScoringType == ScoringLevels {
				c.Levels = BuildLevels(max)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrCriterionNotFound, criterionID)
}
