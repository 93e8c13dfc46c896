package service

import "errors"

// Sentinel kinds for service-level failures.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrScoreLocked = errors.New("score is no longer editable")
)
