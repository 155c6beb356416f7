// Package dberr defines the error taxonomy shared by the query engine.
//
// Three kinds exist:
//   - Usage: the caller broke an API contract (bad paging, missing query,
//     closed or unusable session). Returned at the violating call.
//   - Execution: the store driver failed while running a physical command.
//     Wrapped exactly once; the message mirrors the cause.
//   - ProtocolViolation: the engine's own ordering contract was broken
//     (too few result sets, a future resolved twice). Never retried.
package dberr

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// ErrCodeUsage indicates an API contract violation by the caller.
	ErrCodeUsage Code = "USAGE"

	// ErrCodeExecution indicates the driver failed to execute a command.
	ErrCodeExecution Code = "EXECUTION"

	// ErrCodeProtocol indicates a broken result-set or future protocol.
	ErrCodeProtocol Code = "PROTOCOL_VIOLATION"
)

// Error is the single domain error type of the engine.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description. For execution errors it is
	// the cause's message verbatim.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
//
// Execution errors render only the message so that the wrapped error reads
// exactly like the driver error it carries.
func (e *Error) Error() string {
	if e.Code == ErrCodeExecution {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Usage creates a usage error.
func Usage(format string, args ...any) *Error {
	return &Error{Code: ErrCodeUsage, Message: fmt.Sprintf(format, args...)}
}

// UsageCause creates a usage error that carries a cause, e.g. the drain
// failure that made a session unusable.
func UsageCause(err error, format string, args ...any) *Error {
	return &Error{Code: ErrCodeUsage, Message: fmt.Sprintf(format, args...), Err: err}
}

// Protocol creates a protocol violation.
func Protocol(format string, args ...any) *Error {
	return &Error{Code: ErrCodeProtocol, Message: fmt.Sprintf(format, args...)}
}

// Wrap converts a driver failure into an execution error.
//
// Returns nil for nil. If err already is (or wraps) an *Error it is returned
// unchanged, so no error is ever wrapped twice.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Code: ErrCodeExecution, Message: err.Error(), Err: err}
}

// IsUsageError reports whether err is a usage error.
func IsUsageError(err error) bool {
	return hasCode(err, ErrCodeUsage)
}

// IsExecutionError reports whether err is an execution error.
func IsExecutionError(err error) bool {
	return hasCode(err, ErrCodeExecution)
}

// IsProtocolViolation reports whether err is a protocol violation.
func IsProtocolViolation(err error) bool {
	return hasCode(err, ErrCodeProtocol)
}

func hasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
