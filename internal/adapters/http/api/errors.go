package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrMissingIdentity = errors.New("missing WX-OPEN-ID header")
)
