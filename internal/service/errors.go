package service

import "errors"

// Errors returned to callers of the service layer. Handlers map them to HTTP
// statuses with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)
