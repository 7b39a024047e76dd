package descriptor

import "errors"

var (
	// ErrShapeMismatch is returned when two descriptors of different kinds,
	// hash widths or grid key sets are compared.
	ErrShapeMismatch = errors.New("descriptor shape mismatch")

	// ErrInvalidDescriptor is returned when a serialized descriptor cannot be parsed.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)
