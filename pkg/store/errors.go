package store

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a conditional insert or update lost a race: the
	// row was changed (or created) by a concurrent writer between read
	// and write. Callers retry immediately or re-read, never block.
	ErrConflict = errors.New("store conflict")
)
