package rubric

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Family is the closed enumeration of rubric families. Each family carries
// its own game-challenge and research-challenge criteria tables; category
// codes are resolved to a family via an explicit mapping, never by pattern
// matching on the code itself.
type Family string

// Rubric families.
const (
	FamilyJunior   Family = "junior"
	FamilySpike    Family = "spike"
	FamilyArduino  Family = "arduino"
	FamilyInventor Family = "inventor"
)

// criterionSpec is one row of a family's structure table.
type criterionSpec struct {
	name    string
	desc    string
	max     float64
	scoring ScoringType
	bonus   bool
}

// familySpec defines the section/criterion/point-cap structure for one
// family. Game caps sum to 100 raw points, research caps to 25.
type familySpec struct {
	game     []criterionSpec
	research []criterionSpec
}

// graciousBonus is awarded on top of the regular game criteria and does not
// count toward scoring completeness.
var graciousBonus = criterionSpec{
	name:    "Gracious professionalism",
	desc:    "Respectful conduct toward other teams, judges and referees",
	max:     5,
	scoring: ScoringPoints,
	bonus:   true,
}

var familySpecs = map[Family]familySpec{
	FamilyJunior: {
		game: []criterionSpec{
			{name: "Mission accomplishment", desc: "Missions completed on the game mat", max: 25, scoring: ScoringLevels},
			{name: "Robot design", desc: "Structural integrity and build quality", max: 30, scoring: ScoringLevels},
			{name: "Programming", desc: "Program structure and use of sensors", max: 20, scoring: ScoringLevels},
			{name: "Teamwork on the field", desc: "Cooperation and role distribution during rounds", max: 25, scoring: ScoringLevels},
			graciousBonus,
		},
		research: researchCriteria(),
	},
	FamilySpike: {
		game: []criterionSpec{
			{name: "Mission completion", desc: "Scored missions completed within match time", max: 30, scoring: ScoringLevels},
			{name: "Autonomous navigation", desc: "Reliability of sensor-driven navigation", max: 25, scoring: ScoringLevels},
			{name: "Mechanical design", desc: "Attachment design and drivetrain robustness", max: 25, scoring: ScoringLevels},
			{name: "Code quality", desc: "Program organization, comments and reuse", max: 20, scoring: ScoringLevels},
			graciousBonus,
		},
		research: researchCriteria(),
	},
	FamilyArduino: {
		game: []criterionSpec{
			{name: "Circuit design", desc: "Wiring clarity and electrical safety", max: 25, scoring: ScoringLevels},
			{name: "Sensor integration", desc: "Correct calibration and use of sensors", max: 25, scoring: ScoringLevels},
			{name: "Functionality", desc: "Robot performs the challenge tasks", max: 30, scoring: ScoringLevels},
			{name: "Innovation", desc: "Original solutions beyond the base kit", max: 20, scoring: ScoringLevels},
			graciousBonus,
		},
		research: researchCriteria(),
	},
	FamilyInventor: {
		game: []criterionSpec{
			{name: "Prototype functionality", desc: "The invention works as demonstrated", max: 30, scoring: ScoringLevels},
			{name: "Innovation and creativity", desc: "Novelty of the problem and the solution", max: 30, scoring: ScoringLevels},
			{name: "Engineering process", desc: "Iterations documented from idea to prototype", max: 20, scoring: ScoringLevels},
			{name: "Live demonstration", desc: "Quality of the on-stage demonstration", max: 20, scoring: ScoringLevels},
			graciousBonus,
		},
		research: researchCriteria(),
	},
}

func researchCriteria() []criterionSpec {
	return []criterionSpec{
		{name: "Research depth", desc: "Understanding of the season topic", max: 5, scoring: ScoringLevels},
		{name: "Documentation quality", desc: "Engineering notebook and sources", max: 5, scoring: ScoringLevels},
		{name: "Presentation delivery", desc: "Clarity and structure of the presentation", max: 5, scoring: ScoringLevels},
		{name: "Team collaboration", desc: "Every member contributes and can explain the work", max: 5, scoring: ScoringLevels},
		{name: "Question handling", desc: "Answers to judges' questions", max: 5, scoring: ScoringLevels},
	}
}

// familyByCategory maps known category codes to their rubric family.
var familyByCategory = map[string]Family{
	"junior":        FamilyJunior,
	"junior_wedo":   FamilyJunior,
	"spike":         FamilySpike,
	"spike_prime":   FamilySpike,
	"arduino":       FamilyArduino,
	"arduino_open":  FamilyArduino,
	"inventor":      FamilyInventor,
	"inventor_open": FamilyInventor,
}

// FamilyForCategory resolves a category code to its rubric family.
func FamilyForCategory(code string) (Family, error) {
	f, ok := familyByCategory[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, code)
	}
	return f, nil
}

// BuildTemplate constructs the complete section/criterion/level hierarchy
// for a category code. The result is self-contained plain data; persistence
// is the caller's concern.
func BuildTemplate(categoryCode string, version int) (Template, error) {
	family, err := FamilyForCategory(categoryCode)
	if err != nil {
		return Template{}, err
	}
	spec := familySpecs[family]

	t := Template{
		ID:           uuid.NewString(),
		CategoryCode: categoryCode,
		Family:       family,
		TotalPoints:  TotalPossiblePoints,
		Version:      version,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	t.Sections = []Section{
		buildSection("Game Challenge", SectionGameChallenge, 75, 3.0, 1, spec.game),
		buildSection("Research Challenge", SectionResearchChallenge, 25, 1.0, 2, spec.research),
	}
	return t, nil
}

func buildSection(name string, typ SectionType, weight, multiplier float64, position int, specs []criterionSpec) Section {
	s := Section{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       typ,
		Weight:     weight,
		Multiplier: multiplier,
		Position:   position,
		Criteria:   make([]Criterion, 0, len(specs)),
	}
	for i, cs := range specs {
		c := Criterion{
			ID:          uuid.NewString(),
			Name:        cs.name,
			Description: cs.desc,
			MaxPoints:   cs.max,
			ScoringType: cs.scoring,
			Position:    i + 1,
			Bonus:       cs.bonus,
		}
		if cs.scoring == ScoringLevels {
			c.Levels = BuildLevels(cs.max)
		}
		s.Criteria = append(s.Criteria, c)
	}
	return s
}
