package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("You are not authorized to perform this action.")
	ErrRateLimited  = errors.New("Too many requests, please try again later.")
	ErrInternal     = errors.New("Internal server error")
)
