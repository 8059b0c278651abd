package service

import "errors"

// Sentinel kinds returned by the service. Validation kinds carry the message
// shown to API clients.
var (
	ErrValidation       = errors.New("validation failed")
	ErrMissingScore     = errors.New("Missing required field: score")
	ErrInvalidScore     = errors.New("Score must be a positive number")
	ErrMissingUser      = errors.New("Missing user identity")
	ErrSubmissionFailed = errors.New("submission failed")
	ErrNotStarted       = errors.New("service not started")
)
