package timeline

import "errors"

// Domain-specific errors for timeline decoding and mapping loading.
var (
	// ErrInvalidSnapshot is returned when a snapshot payload cannot be decoded.
	ErrInvalidSnapshot = errors.New("timeline: invalid snapshot")

	// ErrInvalidMapping is returned when a mapping table fails validation.
	ErrInvalidMapping = errors.New("timeline: invalid mapping")
)
