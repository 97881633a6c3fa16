package interfaces

import "errors"

// Store-level error kinds. Every Repository implementation wraps these
// sentinels so that callers can classify failures without knowing the
// backend.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a commit-time uniqueness constraint
	// rejects a write (e.g. the task dedup tuple).
	ErrDuplicate = errors.New("duplicate entity")

	// ErrConflict is returned when a conditional write loses against a
	// concurrent mutation of the same row.
	ErrConflict = errors.New("concurrent modification conflict")
)
