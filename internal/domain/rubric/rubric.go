// Package rubric defines the scoring rubric hierarchy: templates own
// sections, sections own criteria, and level-scored criteria own exactly
// four discrete performance levels.
package rubric

import (
	"math"
	"time"
)

// Structural constants shared across the scoring engine.
const (
	// TotalPossiblePoints is fixed for every template:
	// 75 game-challenge points x 3 multiplier + 25 research-challenge points.
	TotalPossiblePoints = 250.0

	// LevelCount is the number of discrete performance bands per criterion.
	LevelCount = 4

	// WeightTolerance bounds floating-point drift when checking that
	// section weights sum to 100.
	WeightTolerance = 0.01

	// PointsTolerance bounds floating-point drift when comparing a stored
	// level's points against a submitted value.
	PointsTolerance = 0.01
)

// SectionType distinguishes the two challenge groupings of a template.
type SectionType string

// Section types.
const (
	SectionGameChallenge     SectionType = "game_challenge"
	SectionResearchChallenge SectionType = "research_challenge"
)

// ScoringType describes how a criterion is evaluated.
type ScoringType string

// Scoring types.
const (
	ScoringLevels     ScoringType = "levels"
	ScoringPoints     ScoringType = "points"
	ScoringPercentage ScoringType = "percentage"
	ScoringBinary     ScoringType = "binary"
)

// Level is one of four discrete performance bands for a criterion.
// Points is always round2(criterion max x percentage / 100).
type Level struct {
	Number      int     `json:"number"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Percentage  float64 `json:"percentage"`
	Points      float64 `json:"points"`
}

// Criterion is one scored dimension within a section.
type Criterion struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	MaxPoints   float64     `json:"max_points"`
	ScoringType ScoringType `json:"scoring_type"`
	Position    int         `json:"position"`
	Bonus       bool        `json:"bonus,omitempty"`
	Levels      []Level     `json:"levels,omitempty"`
}

// Section is a weighted grouping of criteria carrying a point multiplier.
type Section struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       SectionType `json:"type"`
	Weight     float64     `json:"weight"`
	Multiplier float64     `json:"multiplier"`
	Position   int         `json:"position"`
	Criteria   []Criterion `json:"criteria"`
}

// Template is the full scoring definition for a category. Once teams have
// been scored against a template it must not mutate; new versions
// supersede it instead.
type Template struct {
	ID           string    `json:"id"`
	CategoryCode string    `json:"category_code"`
	Family       Family    `json:"family"`
	TotalPoints  float64   `json:"total_points"`
	Version      int       `json:"version"`
	Active       bool      `json:"active"`
	Sections     []Section `json:"sections"`
	CreatedAt    time.Time `json:"created_at"`
}

// levelBands is the fixed four-band discretization applied to every
// level-scored criterion.
var levelBands = [LevelCount]struct {
	Label      string
	Percentage float64
}{
	{Label: "Basic", Percentage: 25},
	{Label: "Developing", Percentage: 50},
	{Label: "Accomplished", Percentage: 75},
	{Label: "Exceeded", Percentage: 100},
}

// BuildLevels produces the four level rows for a criterion capped at max
// points. Points are rounded to two decimals.
func BuildLevels(max float64) []Level {
	levels := make([]Level, 0, LevelCount)
	for i, band := range levelBands {
		levels = append(levels, Level{
			Number:     i + 1,
			Label:      band.Label,
			Percentage: band.Percentage,
			Points:     Round2(max * band.Percentage / 100),
		})
	}
	return levels
}

// Round2 rounds to two decimal places, the precision used for all stored
// point values.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Criterion returns the criterion with the given id along with its owning
// section. The boolean reports whether it was found.
func (t Template) Criterion(id string) (Criterion, Section, bool) {
	for _, s := range t.Sections {
		for _, c := range s.Criteria {
			if c.ID == id {
				return c, s, true
			}
		}
	}
	return Criterion{}, Section{}, false
}

// RequiredCriteria returns all non-bonus criteria across sections. Every
// one of these must carry a score detail before submission is permitted.
func (t Template) RequiredCriteria() []Criterion {
	var out []Criterion
	for _, s := range t.Sections {
		for _, c := range s.Criteria {
			if !c.Bonus {
				out = append(out, c)
			}
		}
	}
	return out
}

// Level returns the level row with the given number (1-based).
func (c Criterion) Level(number int) (Level, bool) {
	for _, l := range c.Levels {
		if l.Number == number {
			return l, true
		}
	}
	return Level{}, false
}
