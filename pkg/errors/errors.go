package errors

import "errors"

// Sentinels for domain errors. Backend failures wrap one of these so callers can branch with
// errors.Is without knowing the transport.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTimeout      = errors.New("request timed out")
)
