package core

import "errors"

// Error categories shared by every repository and workflow. Callers match them
// with errors.Is; the wrapped chain keeps the underlying cause.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrStorage     = errors.New("storage failure")
	ErrTransaction = errors.New("transaction failed")
)
