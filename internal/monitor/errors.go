package monitor

import "errors"

// Domain-specific errors for connection monitoring.
var (
	// ErrInitialProbeFailed is returned by Start when the first probe errors.
	ErrInitialProbeFailed = errors.New("monitor: initial probe failed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("monitor: already started")

	// ErrInvalidInterval is returned for a non-positive probe interval.
	ErrInvalidInterval = errors.New("monitor: probe interval must be positive")
)
