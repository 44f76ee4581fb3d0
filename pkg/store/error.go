package store

import "fmt"

// NotFoundError is returned when a referenced node doesn't exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	if e.Key == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// ConflictError is returned when an insert loses a uniqueness race,
// e.g. two concurrent ingestions creating the same new concept.
type ConflictError struct {
	Key string
}

func (e ConflictError) Error() string {
	return "conflicting concurrent write for key: " + e.Key
}

// ValidationError is returned for malformed input before any store access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnavailableError wraps a backend failure: the graph store was unreachable
// or a statement failed. This is a hard failure for the calling operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("graph store unavailable during %s: %v", e.Op, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}
