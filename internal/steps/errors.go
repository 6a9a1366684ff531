package steps

import "errors"

var (
	ErrLockNotAcquired  = errors.New("steps: lock not acquired")
	ErrTimeout          = errors.New("steps: external.process timed out")
	ErrOutputsInvalid   = errors.New("steps: external.process success validation failed")
	ErrMissingInput     = errors.New("steps: required input missing")
)
