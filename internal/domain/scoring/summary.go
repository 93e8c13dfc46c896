package scoring

import (
	"time"

	"github.com/robojudge/scorecard/internal/domain/level"
	"github.com/robojudge/scorecard/internal/domain/rubric"
)

// CriterionSummary is one scored criterion line of the display document.
// Level is the judge's pick, or the nearest stored level when only raw
// points were entered; Band is derived from the points percentage alone.
type CriterionSummary struct {
	CriterionID string  `json:"criterion_id"`
	Name        string  `json:"name"`
	Points      float64 `json:"points_awarded"`
	MaxPoints   float64 `json:"max_points"`
	Level       *int    `json:"level,omitempty"`
	Band        int     `json:"performance_band"`
	Comment     string  `json:"comment,omitempty"`
}

// SectionSummary is the per-section breakdown of a score for display.
type SectionSummary struct {
	Name           string             `json:"name"`
	Type           rubric.SectionType `json:"type"`
	Weight         float64            `json:"weight"`
	Multiplier     float64            `json:"multiplier"`
	RawPoints      float64            `json:"raw_points"`
	WeightedPoints float64            `json:"weighted_points"`
	MaxRawPoints   float64            `json:"max_raw_points"`
	CriteriaScored int                `json:"criteria_scored"`
	CriteriaTotal  int                `json:"criteria_total"`
	Criteria       []CriterionSummary `json:"criteria"`
}

// SummaryTotals mirrors the score's computed totals in the display document.
type SummaryTotals struct {
	GameChallenge     float64 `json:"game_challenge_score"`
	ResearchChallenge float64 `json:"research_challenge_score"`
	Bonus             float64 `json:"bonus"`
	Penalty           float64 `json:"penalty"`
	Total             float64 `json:"total_score"`
	Normalized        float64 `json:"normalized_score"`
}

// SummaryMetadata identifies the evaluation the summary describes.
type SummaryMetadata struct {
	ScoreID      string    `json:"score_id"`
	TeamID       string    `json:"team_id"`
	JudgeID      string    `json:"judge_id"`
	TemplateID   string    `json:"template_id"`
	CategoryCode string    `json:"category_code"`
	Status       Status    `json:"status"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Summary is the scoring summary document consumed by display collaborators.
type Summary struct {
	Sections []SectionSummary `json:"sections"`
	Totals   SummaryTotals    `json:"totals"`
	Metadata SummaryMetadata  `json:"metadata"`
}

// Summarize builds the display summary for a score against its template.
func Summarize(t rubric.Template, s Score, at time.Time) Summary {
	byCriterion := make(map[string]Detail, len(s.Details))
	for _, d := range s.Details {
		byCriterion[d.CriterionID] = d
	}

	sections := make([]SectionSummary, 0, len(t.Sections))
	for _, sec := range t.Sections {
		ss := SectionSummary{
			Name:       sec.Name,
			Type:       sec.Type,
			Weight:     sec.Weight,
			Multiplier: sec.Multiplier,
		}
		for _, c := range sec.Criteria {
			if !c.Bonus {
				ss.CriteriaTotal++
				ss.MaxRawPoints += c.MaxPoints
			}
			if d, ok := byCriterion[c.ID]; ok {
				ss.RawPoints += d.Points
				ss.CriteriaScored++
				ss.Criteria = append(ss.Criteria, summarizeCriterion(c, d))
			}
		}
		ss.RawPoints = rubric.Round2(ss.RawPoints)
		ss.WeightedPoints = rubric.Round2(ss.RawPoints * sec.Multiplier)
		sections = append(sections, ss)
	}

	return Summary{
		Sections: sections,
		Totals: SummaryTotals{
			GameChallenge:     s.GameChallengeScore,
			ResearchChallenge: s.ResearchChallengeScore,
			Bonus:             s.Bonus,
			Penalty:           s.Penalty,
			Total:             s.TotalScore,
			Normalized:        s.NormalizedScore,
		},
		Metadata: SummaryMetadata{
			ScoreID:      s.ID,
			TeamID:       s.TeamID,
			JudgeID:      s.JudgeID,
			TemplateID:   t.ID,
			CategoryCode: t.CategoryCode,
			Status:       s.Status,
			GeneratedAt:  at,
		},
	}
}

// summarizeCriterion reconciles a detail row with its level and band.
func summarizeCriterion(c rubric.Criterion, d Detail) CriterionSummary {
	cs := CriterionSummary{
		CriterionID: c.ID,
		Name:        c.Name,
		Points:      d.Points,
		MaxPoints:   c.MaxPoints,
		Band:        level.Band(c, d.Points),
		Comment:     d.Comment,
	}
	switch {
	case d.LevelSelected != nil:
		n := *d.LevelSelected
		cs.Level = &n
	case c.ScoringType == rubric.ScoringLevels:
		if l, err := level.Nearest(c, d.Points); err == nil {
			n := l.Number
			cs.Level = &n
		}
	}
	return cs
}
