package scoring

import "errors"

// Sentinel kinds for evaluation errors. All are detected before any
// persistence side effect.
var (
	ErrUnknownCriterion    = errors.New("criterion does not belong to template")
	ErrDuplicateCriterion  = errors.New("duplicate criterion entry")
	ErrOutOfRangePoints    = errors.New("points out of range")
	ErrLevelPointsMismatch = errors.New("level points mismatch")
)
