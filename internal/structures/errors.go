package structures

import "errors"

// Errors shared by the index data structures.
var (
	// ErrNonUniqueKey is returned when a duplicate key is inserted into a
	// structure built with unique keys.
	ErrNonUniqueKey = errors.New("non-unique key")

	// ErrKeyNotFound is returned by remove/update when the key, or the
	// (key, value) pair on non-unique structures, is absent.
	ErrKeyNotFound = errors.New("key not found")
)
