package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrEmptyID = errors.New("empty id")
	ErrNilDB   = errors.New("nil database")
)
