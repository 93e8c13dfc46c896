package level

import "errors"

// Sentinel kinds for level lookups.
var (
	ErrLevelNotFound = errors.New("level not found")
)
