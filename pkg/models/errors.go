package models

import "errors"

// Error taxonomy shared by the pipeline and the conversation engine.
// Packages wrap these so callers can match with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrScheduling = errors.New("scheduling error")
)
