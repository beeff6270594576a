package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity is returned when a name is not registered
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrDuplicateEntity is returned when an entity is registered twice
	ErrDuplicateEntity = errors.New("entity already registered")

	// ErrInvalidKeyShape is returned when a composite key receives a
	// non-array value or a single key receives an array
	ErrInvalidKeyShape = errors.New("invalid key shape")

	// ErrInvalidRelation is returned when a relation refers to an entity
	// that is not registered
	ErrInvalidRelation = errors.New("invalid relation")
)

// UnknownEntityError carries the requested entity name
type UnknownEntityError struct {
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("could not find the model %q", e.Name)
}

// Unwrap returns ErrUnknownEntity
func (e *UnknownEntityError) Unwrap() error {
	return ErrUnknownEntity
}

// IsUnknownEntity checks if an error is an unknown entity error
func IsUnknownEntity(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}

// IsInvalidKeyShape checks if an error is a key shape error
func IsInvalidKeyShape(err error) bool {
	return errors.Is(err, ErrInvalidKeyShape)
}
