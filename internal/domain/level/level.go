// Package level maps between discrete performance levels and point values
// for a criterion, and infers the nearest level from an arbitrary point
// value. All functions are pure lookups over rubric data.
package level

import (
	"fmt"
	"math"

	"github.com/robojudge/scorecard/internal/domain/rubric"
)

// Band thresholds as a percentage of a criterion's max points. Derived
// purely from percentages, independent of the stored level rows; used for
// reporting.
const (
	bandExceededPct     = 87.5
	bandAccomplishedPct = 62.5
	bandDevelopingPct   = 37.5
)

// Find returns the stored level row with the given number.
func Find(c rubric.Criterion, number int) (rubric.Level, error) {
	l, ok := c.Level(number)
	if !ok {
		return rubric.Level{}, fmt.Errorf("%w: criterion %s level %d", ErrLevelNotFound, c.ID, number)
	}
	return l, nil
}

// Points returns the points awarded for the given level number, or 0 when
// the level does not exist.
func Points(c rubric.Criterion, number int) float64 {
	l, ok := c.Level(number)
	if !ok {
		return 0
	}
	return l.Points
}

// Nearest picks the level whose points-awarded value is closest to the
// supplied points. An exact match within tolerance wins immediately;
// otherwise the minimum absolute difference decides. The result reconciles
// a raw point entry with its implied level for audit and display purposes;
// it is not authoritative for storage.
func Nearest(c rubric.Criterion, points float64) (rubric.Level, error) {
	if len(c.Levels) == 0 {
		return rubric.Level{}, fmt.Errorf("%w: criterion %s has no levels", ErrLevelNotFound, c.ID)
	}
	best := c.Levels[0]
	bestDiff := math.Inf(1)
	for _, l := range c.Levels {
		diff := math.Abs(l.Points - points)
		if diff <= rubric.PointsTolerance {
			return l, nil
		}
		if diff < bestDiff {
			best, bestDiff = l, diff
		}
	}
	return best, nil
}

// Band derives a level number (1-4) purely from the percentage of max
// points achieved: >=87.5% is 4, >=62.5% is 3, >=37.5% is 2, else 1.
func Band(c rubric.Criterion, points float64) int {
	if c.MaxPoints <= 0 {
		return 1
	}
	pct := points / c.MaxPoints * 100
	switch {
	case pct >= bandExceededPct:
		return 4
	case pct >= bandAccomplishedPct:
		return 3
	case pct >= bandDevelopingPct:
		return 2
	default:
		return 1
	}
}
