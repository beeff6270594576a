package query

import "errors"

var (
	// ErrMissingUpdateCondition is returned when an update cannot tell which
	// records it applies to
	ErrMissingUpdateCondition = errors.New("update requires a where condition")

	// ErrUnknownRelation is returned when eager loading names a relation the
	// entity and its subtypes do not declare
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrInvalidOperator is returned for an unsupported has() comparison
	ErrInvalidOperator = errors.New("invalid comparison operator")

	// ErrUnsupportedPayload is returned when a mutation receives data it
	// cannot interpret
	ErrUnsupportedPayload = errors.New("unsupported payload")
)
