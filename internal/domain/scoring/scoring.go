// Package scoring computes weighted, normalized totals from per-criterion
// judge evaluations. Everything here is a pure function over plain data;
// persistence and write serialization live in the adapters and app layers.
package scoring

import (
	"fmt"
	"time"

	"github.com/robojudge/scorecard/internal/domain/level"
	"github.com/robojudge/scorecard/internal/domain/rubric"
)

// Status is a score's position in the submission workflow.
type Status string

// Workflow states. A score starts in progress, becomes submitted, and
// terminates as validated or final.
const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusValidated  Status = "validated"
	StatusFinal      Status = "final"
)

// Entry is one per-criterion evaluation supplied by a judge.
type Entry struct {
	CriterionID      string  `json:"criterion_id"`
	Points           float64 `json:"points_awarded"`
	LevelSelected    *int    `json:"level_selected,omitempty"`
	Comment          string  `json:"comment,omitempty"`
	TimeSpentSeconds int     `json:"time_spent_seconds,omitempty"`
}

// Detail is one persisted per-criterion line item under a score.
type Detail struct {
	CriterionID      string    `json:"criterion_id"`
	LevelSelected    *int      `json:"level_selected,omitempty"`
	Points           float64   `json:"points_awarded"`
	Comment          string    `json:"comment,omitempty"`
	TimeSpentSeconds int       `json:"time_spent_seconds,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// Score is one evaluation of one team by one judge against one template.
// Section subtotals are post-multiplier. Mutable while in progress,
// append-only once validated or final.
type Score struct {
	ID                     string     `json:"id"`
	TeamID                 string     `json:"team_id"`
	JudgeID                string     `json:"judge_id"`
	TemplateID             string     `json:"template_id"`
	Scope                  string     `json:"scope,omitempty"`
	GameChallengeScore     float64    `json:"game_challenge_score"`
	ResearchChallengeScore float64    `json:"research_challenge_score"`
	TotalScore             float64    `json:"total_score"`
	NormalizedScore        float64    `json:"normalized_score"`
	Bonus                  float64    `json:"bonus"`
	Penalty                float64    `json:"penalty"`
	Status                 Status     `json:"status"`
	OutOfRange             bool       `json:"out_of_range,omitempty"`
	Details                []Detail   `json:"details"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	SubmittedAt            *time.Time `json:"submitted_at,omitempty"`
	ValidatedAt            *time.Time `json:"validated_at,omitempty"`
	FinalizedAt            *time.Time `json:"finalized_at,omitempty"`
}

// Totals is the outcome of evaluating a set of entries against a template.
type Totals struct {
	GameChallenge     float64 `json:"game_challenge_score"`
	ResearchChallenge float64 `json:"research_challenge_score"`
	Total             float64 `json:"total_score"`
	Normalized        float64 `json:"normalized_score"`

	// OutOfRange flags totals outside [0, TotalPossiblePoints]. Such
	// totals are stored unmodified and surfaced for human review, never
	// silently clamped: altering a judge's input would corrupt the audit
	// trail's meaning.
	OutOfRange bool `json:"out_of_range,omitempty"`
}

// Evaluate validates entries against the template structure and computes
// section subtotals, the bounded total, and the normalized score.
//
// Each entry must reference a criterion of the template, award points in
// [0, max], and, when a level is selected, match that level's stored points
// within tolerance. Completeness is not checked here; partial drafts are
// legitimate until submission.
func Evaluate(t rubric.Template, entries []Entry, bonus, penalty float64) (Totals, error) {
	seen := make(map[string]struct{}, len(entries))
	var game, research float64
	for _, e := range entries {
		c, s, ok := t.Criterion(e.CriterionID)
		if !ok {
			return Totals{}, fmt.Errorf("%w: %s", ErrUnknownCriterion, e.CriterionID)
		}
		if _, dup := seen[e.CriterionID]; dup {
			return Totals{}, fmt.Errorf("%w: %s", ErrDuplicateCriterion, e.CriterionID)
		}
		seen[e.CriterionID] = struct{}{}

		if e.Points < 0 || e.Points > c.MaxPoints {
			return Totals{}, fmt.Errorf("%w: criterion %q awarded %.2f, allowed [0, %.2f]",
				ErrOutOfRangePoints, c.Name, e.Points, c.MaxPoints)
		}
		if e.LevelSelected != nil {
			if err := checkLevel(c, *e.LevelSelected, e.Points); err != nil {
				return Totals{}, err
			}
		}

		switch s.Type {
		case rubric.SectionGameChallenge:
			game += e.Points * s.Multiplier
		case rubric.SectionResearchChallenge:
			// Research multiplier is 1.0 by construction.
			research += e.Points
		}
	}

	totals := Totals{
		GameChallenge:     rubric.Round2(game),
		ResearchChallenge: rubric.Round2(research),
	}
	totals.Total = rubric.Round2(totals.GameChallenge + totals.ResearchChallenge + bonus - penalty)
	// Normalized is an exact function of the total, never rounded.
	totals.Normalized = totals.Total / rubric.TotalPossiblePoints * 100
	totals.OutOfRange = totals.Total < 0 || totals.Total > rubric.TotalPossiblePoints
	return totals, nil
}

func checkLevel(c rubric.Criterion, number int, points float64) error {
	if number < 1 || number > rubric.LevelCount {
		return fmt.Errorf("%w: criterion %q level %d outside 1-%d",
			ErrLevelPointsMismatch, c.Name, number, rubric.LevelCount)
	}
	l, err := level.Find(c, number)
	if err != nil {
		return fmt.Errorf("%w: criterion %q: %v", ErrLevelPointsMismatch, c.Name, err)
	}
	diff := l.Points - points
	if diff < -rubric.PointsTolerance || diff > rubric.PointsTolerance {
		return fmt.Errorf("%w: criterion %q level %d awards %.2f, got %.2f",
			ErrLevelPointsMismatch, c.Name, number, l.Points, points)
	}
	return nil
}

// BuildDetails converts judge entries into persisted detail rows stamped at
// the given time. Callers replace the full detail set on every save.
func BuildDetails(entries []Entry, at time.Time) []Detail {
	details := make([]Detail, 0, len(entries))
	for _, e := range entries {
		details = append(details, Detail{
			CriterionID:      e.CriterionID,
			LevelSelected:    e.LevelSelected,
			Points:           e.Points,
			Comment:          e.Comment,
			TimeSpentSeconds: e.TimeSpentSeconds,
			RecordedAt:       at,
		})
	}
	return details
}

// Apply copies computed totals onto a score.
func (s *Score) Apply(t Totals) {
	s.GameChallengeScore = t.GameChallenge
	s.ResearchChallengeScore = t.ResearchChallenge
	s.TotalScore = t.Total
	s.NormalizedScore = t.Normalized
	s.OutOfRange = t.OutOfRange
}
