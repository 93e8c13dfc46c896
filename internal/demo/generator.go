package demo

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/robojudge/scorecard/internal/domain/level"
	"github.com/robojudge/scorecard/internal/domain/rubric"
	"github.com/robojudge/scorecard/internal/domain/scoring"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	levelCaseDivisor   = 8
)

// Constants for level distribution cases. Most judges cluster around
// Accomplished with occasional Developing and Exceeded picks.
const (
	caseAccomplishedA = 0
	caseAccomplishedB = 1
	caseAccomplishedC = 2
	caseAccomplishedD = 3
	caseDevelopingA   = 4
	caseDevelopingB   = 5
	caseExceeded      = 6
	caseBasic         = 7
)

// Biased judges never score above Developing.
const biasedMaxLevel = 2

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// evaluation is one judge's planned scoring of one team.
type evaluation struct {
	TeamID  string
	JudgeID string
	Biased  bool
}

// generatePlan lays out the judging assignments: every judge on the panel
// scores every team. When bias is enabled, the last judge of every third
// team consistently underscores to trip the consistency check.
func generatePlan(config *Config) []evaluation {
	plan := make([]evaluation, 0, config.NumTeams*config.JudgesPerTeam)
	for team := 0; team < config.NumTeams; team++ {
		teamID := fmt.Sprintf("team-%03d", team+1)
		for judge := 0; judge < config.JudgesPerTeam; judge++ {
			plan = append(plan, evaluation{
				TeamID:  teamID,
				JudgeID: fmt.Sprintf("judge-%02d", judge+1),
				Biased:  config.WithBias && team%3 == 0 && judge == config.JudgesPerTeam-1,
			})
		}
	}
	return plan
}

// generateEntries builds one judge's evaluation of every criterion in the
// template. Level-scored criteria get a level pick from the distribution;
// the bonus criterion gets occasional partial points.
func generateEntries(t rubric.Template, biased bool) []scoring.Entry {
	var entries []scoring.Entry
	for _, s := range t.Sections {
		for _, c := range s.Criteria {
			if c.ScoringType == rubric.ScoringLevels {
				number := pickLevel(biased)
				n := number
				entries = append(entries, scoring.Entry{
					CriterionID:   c.ID,
					LevelSelected: &n,
					Points:        level.Points(c, number),
				})
				continue
			}
			entries = append(entries, scoring.Entry{
				CriterionID: c.ID,
				Points:      generateBonusPoints(c, biased),
			})
		}
	}
	return entries
}

// pickLevel draws a level from the judging distribution.
func pickLevel(biased bool) int {
	randNum, _ := rand.Int(rand.Reader, big.NewInt(levelCaseDivisor))
	var level int
	switch randNum.Int64() {
	case caseAccomplishedA, caseAccomplishedB, caseAccomplishedC, caseAccomplishedD:
		level = 3
	case caseDevelopingA, caseDevelopingB:
		level = 2
	case caseExceeded:
		level = 4
	case caseBasic:
		level = 1
	default:
		level = 3
	}
	if biased && level > biasedMaxLevel {
		level = 1
	}
	return level
}

// generateBonusPoints awards the points-scored bonus criterion. Roughly half
// the judges grant it; biased judges never do.
func generateBonusPoints(c rubric.Criterion, biased bool) float64 {
	if biased || getRandomFloat() < 0.5 {
		return 0
	}
	return rubric.Round2(c.MaxPoints * getRandomFloat())
}
