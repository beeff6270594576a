package database

import (
	"errors"
)

var (
	// ErrNotStarted is returned when an operation runs before Start
	ErrNotStarted = errors.New("database not started")

	// ErrAlreadyStarted is returned when entities are registered after Start
	ErrAlreadyStarted = errors.New("database already started")
)

// IsNotStarted returns true if the error is ErrNotStarted
func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}
