package playout

import "errors"

// Domain-specific errors for playout control.
var (
	// ErrInitFailed wraps any device initialisation failure.
	ErrInitFailed = errors.New("playout: device init failed")

	// ErrTerminated is returned when using a terminated controller.
	ErrTerminated = errors.New("playout: controller terminated")

	// ErrDeviceNotFound is returned for an unknown device ID.
	ErrDeviceNotFound = errors.New("playout: device not found")

	// ErrDuplicateDevice is returned when registering an ID twice.
	ErrDuplicateDevice = errors.New("playout: duplicate device id")

	// ErrInvalidMessage is returned for undecodable ingress payloads.
	ErrInvalidMessage = errors.New("playout: invalid ingress message")

	// ErrDeviceIDRequired is returned by history stores for an empty device ID.
	ErrDeviceIDRequired = errors.New("playout: device id is required")
)
