package dataset

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrTruncated          = errors.New("file is truncated")
	ErrNotFound           = errors.New("not found")
	ErrClosed             = errors.New("dataset is closed")
	ErrDimensionMismatch  = errors.New("dimension length mismatch")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type      string // e.g. "offset_overlap", "out_of_bounds", "invalid_name"
	Variable  string // Primary variable name involved.
	Variable2 string // Secondary variable name (overlap errors).
	Details   string
	Err       error // Underlying cause, if any.
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Variable2 != "" {
		return fmt.Sprintf("%s: variables %q and %q: %s", e.Type, e.Variable, e.Variable2, e.Details)
	}
	if e.Variable != "" {
		return fmt.Sprintf("%s: variable %q: %s", e.Type, e.Variable, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a missing variable or dimension. It matches
// ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind string // "variable" or "dimension"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
