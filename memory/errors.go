package memory

import "errors"

// Sentinel errors returned by memory operations.
// These can be checked with errors.Is().
var (
	// ErrNotFound is returned when a requested key does not exist in the store.
	ErrNotFound = errors.New("memory: key not found")

	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("memory: invalid key")

	// ErrInvalidConfig is returned when a variant, strategy, or policy field
	// is outside its valid range at construction time.
	ErrInvalidConfig = errors.New("memory: invalid configuration")

	// ErrPersistFailed is returned when a durable write could not complete.
	// The in-memory mutation has already succeeded when this is returned;
	// the instance accompanying the error is valid and up to date.
	ErrPersistFailed = errors.New("memory: persistence failed")
)
