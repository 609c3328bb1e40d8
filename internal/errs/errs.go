package errs

import "errors"

// Domain sentinel errors, mapped to HTTP codes in handlers.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSessionEnded       = errors.New("session already ended")
	ErrMissingIdentifier  = errors.New("required identifier missing")
)
