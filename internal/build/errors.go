package build

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies build failures. The orchestrator's fallback policy
// keys off the kind, never off error text.
type ErrorKind string

const (
	// ErrInvalidConfig marks bad input, rejected before any side effect.
	ErrInvalidConfig ErrorKind = "invalid_config"
	// ErrEnvironment marks a working directory that cannot be created or used.
	ErrEnvironment ErrorKind = "environment_error"
	// ErrIO marks a file write or copy failure in either build path.
	ErrIO ErrorKind = "io_error"
	// ErrExternalTool marks a delegated tool that exited non-zero or went
	// missing after the capability probe.
	ErrExternalTool ErrorKind = "external_tool_failure"
	// ErrCancelled marks a cooperative cancellation between steps.
	ErrCancelled ErrorKind = "cancelled"
)

// Error is the typed failure produced by the build pipeline.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError constructs a typed build error without a cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs a typed build error around a cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Untyped errors report ErrIO,
// the catch-all for unexpected failures inside a path.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ErrIO
}

// CheckCancel converts a done context into a typed Cancelled error. Paths
// call it between steps; external tool invocations are opaque and are not
// interrupted mid-call.
func CheckCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(ErrCancelled, err, "build cancelled")
	}
	return nil
}
