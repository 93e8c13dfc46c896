package rubric

import "errors"

// Sentinel kinds for rubric structure errors.
var (
	ErrInvalidCategory   = errors.New("invalid category")
	ErrValidationFailed  = errors.New("rubric validation failed")
	ErrCriterionNotFound = errors.New("criterion not found")
	ErrInvalidMaxPoints  = errors.New("invalid max points")
)
