package protocol

import "errors"

var (
	// ErrMissingCoordinates is returned when a location report omits lat or lon
	ErrMissingCoordinates = errors.New("missing coordinates")

	// ErrInvalidCoordinates is returned when coordinates are non-finite or out of range
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrUnknownMessageType is returned when no handler exists for a message type
	ErrUnknownMessageType = errors.New("unknown message type")
)
