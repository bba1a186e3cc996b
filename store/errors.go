package store

import "errors"

var (
	// ErrNotFound is returned when an operation requires an entity that doesn't exist.
	ErrNotFound = errors.New("gantry: entity not found")

	// ErrValidation is returned when a required field is missing or malformed on create.
	ErrValidation = errors.New("gantry: validation failed")

	// ErrDuplicateValue is returned when a unique constraint is violated.
	ErrDuplicateValue = errors.New("gantry: duplicate value for unique field")

	// ErrConcurrentModification is returned when the optimistic lock revision check fails.
	ErrConcurrentModification = errors.New("gantry: entity was modified concurrently")

	// ErrUnavailable is returned when an underlying store call failed for
	// infrastructure reasons. It wraps the cause so callers can distinguish
	// "empty result" from "read failed".
	ErrUnavailable = errors.New("gantry: store unavailable")
)
