package reduce

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the engine matches exactly one
// of these with errors.Is.
var (
	ErrUnknownDimension   = errors.New("unknown dimension")
	ErrAxisOutOfRange     = errors.New("axis out of range")
	ErrEmptyReductionAxis = errors.New("empty reduction axis")
	ErrConfiguration      = errors.New("invalid configuration")
	ErrWorkerFailure      = errors.New("worker failure")
	ErrInvalidArray       = errors.New("invalid array")
)

// Error carries the variable and axis a failed reduction was working on.
type Error struct {
	Op       string  // Phase that failed: "configure", "resolve", "dispatch".
	Variable string  // Variable name, if known.
	Axis     AxisRef // Axis as requested by the caller.
	Err      error   // Underlying error; wraps one of the category sentinels.
}

// Error implements the error interface.
func (e *Error) Error() string {
	subject := "array"
	if e.Variable != "" {
		subject = fmt.Sprintf("variable %q", e.Variable)
	}
	if e.Axis.set {
		return fmt.Sprintf("%s %s over %s: %v", e.Op, subject, e.Axis, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, subject, e.Err)
}

// Unwrap allows error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}
