package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrStatusConflict    = errors.New("score status conflict")
	ErrTemplateImmutable = errors.New("template is immutable once scored against")
)
