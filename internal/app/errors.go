package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidArgument = errors.New("invalid argument")
)
