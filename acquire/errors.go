package acquire

import "errors"

var (
	ErrNoSignals      = errors.New("no signal indexes to sample")
	ErrNoExposure     = errors.New("exposure command is empty")
	ErrNegativePeriod = errors.New("sampling interval should not be negative")
)
