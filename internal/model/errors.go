package model

import "errors"

// Sentinel errors surfaced to API callers. Everything else the pipeline
// encounters degrades into the result instead of failing the request.
var (
	// ErrInvalidInput marks malformed identifiers, rejected before any
	// outbound call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means no live lot and no sales history exists for the
	// requested identifier.
	ErrNotFound = errors.New("not found")
)
