package relationships

import "errors"

var (
	// ErrInvalidRelationType is returned when a relation kind has no loader
	ErrInvalidRelationType = errors.New("invalid relation type")

	// ErrMissingPivot is returned when a pivot entity is not registered
	ErrMissingPivot = errors.New("pivot entity not registered")
)
