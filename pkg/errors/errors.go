package errors

import "errors"

// Connection errors
var (
	// ErrConnectionNotFound is returned when a connection id is not registered
	ErrConnectionNotFound = errors.New("connection not found")
)

// Storage errors
var (
	// ErrRouteNotFound is returned when a route id has no dataset entry
	ErrRouteNotFound = errors.New("route not found")

	// ErrStorageNotInitialized is returned when storage is not initialized
	ErrStorageNotInitialized = errors.New("storage not initialized")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
