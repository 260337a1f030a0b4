package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrUnknownAction = errors.New("unknown action type")
)
