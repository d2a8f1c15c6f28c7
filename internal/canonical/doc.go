// Package canonical turns raw lab biomarker entries into canonical records:
// alias resolution against the active alias table, then unit normalization
// against the active conversion table. Both tables are immutable snapshots
// built once and shared read-only.
package canonical

import "errors"

var (
	// ErrConflictingRule is returned when two active rows claim the same key
	// with different targets.
	ErrConflictingRule = errors.New("conflicting active rules")
	// ErrMalformedRange is returned when a range value has only one bound.
	ErrMalformedRange = errors.New("range value requires both min and max")
	// ErrShapeMismatch is returned when is_range disagrees with the value shape.
	ErrShapeMismatch = errors.New("value shape does not match is_range")
)
