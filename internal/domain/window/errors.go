package window

import "errors"

// Sentinel kinds for window errors.
var (
	ErrInvalidWindow = errors.New("invalid window selector")
)
