package workflow

import "errors"

// Sentinel kinds for workflow gate failures.
var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrIncompleteScoring = errors.New("incomplete scoring")
	ErrImplausibleScore  = errors.New("implausible score")
)
