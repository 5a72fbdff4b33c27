package singular

import "errors"

// Domain-specific errors for Singular.Live control.
var (
	// ErrNoAccessToken is returned by Init when no access token is configured.
	ErrNoAccessToken = errors.New("singular: access token required")

	// ErrInvalidAPIURL is returned for an unparseable control API URL.
	ErrInvalidAPIURL = errors.New("singular: invalid api url")

	// ErrUnexpectedStatus is returned for a non-200 API response.
	ErrUnexpectedStatus = errors.New("singular: unexpected http status")

	// ErrInvalidPayload is returned when a command payload is not Content.
	ErrInvalidPayload = errors.New("singular: invalid command payload")
)
