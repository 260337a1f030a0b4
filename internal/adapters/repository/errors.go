package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidDelta  = errors.New("score delta must be a positive integer")
	ErrEmptyBatch    = errors.New("batch must not be empty")
	ErrInvalidField  = errors.New("invalid catalog field")
	ErrInvalidLimits = errors.New("invalid permissions format")
)
