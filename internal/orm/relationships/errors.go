package relationships

import "errors"

var (
	// ErrUnknownRelationship is returned when a relationship is not found
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrInvalidRelationType is returned when a relation is loaded with the
	// wrong cardinality
	ErrInvalidRelationType = errors.New("invalid relationship type")

	// ErrUnresolved is returned for relations whose models were never resolved
	ErrUnresolved = errors.New("relationship target not resolved")
)
