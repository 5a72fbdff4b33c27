package ptz

import "errors"

// Domain-specific errors for PTZ control.
var (
	// ErrNoHost is returned by Init when no camera host is configured.
	ErrNoHost = errors.New("ptz: no host configured")

	// ErrUnexpectedStatus is returned for a non-200 HTTP response.
	ErrUnexpectedStatus = errors.New("ptz: unexpected http status")

	// ErrCommandRejected is returned when the camera answers with an
	// E1, E2 or E3 error code.
	ErrCommandRejected = errors.New("ptz: command rejected")

	// ErrUnknownCommand is returned for a command kind the adapter
	// cannot translate.
	ErrUnknownCommand = errors.New("ptz: unknown command")

	// ErrInvalidPayload is returned when a command payload has the wrong type.
	ErrInvalidPayload = errors.New("ptz: invalid command payload")
)
