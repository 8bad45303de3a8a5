package api

import "errors"

var (
	// ErrNotFound is returned for an unknown app, model or identifier
	ErrNotFound = errors.New("not found")

	// ErrMaxDepthExceeded is returned when a serialization descends past the
	// serializer's depth ceiling
	ErrMaxDepthExceeded = errors.New("maximum serialization depth exceeded")
)
