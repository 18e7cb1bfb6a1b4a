// Package errors defines the application error taxonomy shared by the
// moderation and synchronization layers.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown      = "UNKNOWN"
	CodePrecondition = "PRECONDITION"
	CodeStore        = "STORE"
	CodeValidation   = "VALIDATION"
	CodeTimeout      = "TIMEOUT"
	CodeConfig       = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Severity() Severity
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code     string
	message  string
	severity Severity
	err      error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Severity() Severity {
	return e.severity
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't have one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Is and As forward to the standard library so callers importing this
// package under its own name still reach them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// SeverityOf returns the severity of the first ApplicationError in err's chain.
// Errors outside the taxonomy are treated as hard failures.
func SeverityOf(err error) Severity {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Severity()
	}

	return Hard
}

// PreconditionError reports a caller-side parameter problem detected before
// any collaborator was contacted.
type PreconditionError struct {
	base Error
}

func (e *PreconditionError) Error() string      { return e.base.Error() }
func (e *PreconditionError) Code() string       { return e.base.Code() }
func (e *PreconditionError) Severity() Severity { return e.base.Severity() }
func (e *PreconditionError) Unwrap() error      { return e.base.Unwrap() }

func NewPreconditionError(message string) error {
	return &PreconditionError{
		base: Error{
			code:     CodePrecondition,
			message:  message,
			severity: Hard,
		},
	}
}

// StoreError wraps a failure reported by the persistence layer.
type StoreError struct {
	base Error
}

func (e *StoreError) Error() string      { return e.base.Error() }
func (e *StoreError) Code() string       { return e.base.Code() }
func (e *StoreError) Severity() Severity { return e.base.Severity() }
func (e *StoreError) Unwrap() error      { return e.base.Unwrap() }

func NewStoreError(message string, severity Severity, cause error) error {
	return &StoreError{
		base: Error{
			code:     CodeStore,
			message:  message,
			severity: severity,
			err:      cause,
		},
	}
}

// ValidationSkip marks an inbound record that was dropped because it failed
// validation. It is logged, never surfaced to callers.
type ValidationSkip struct {
	base Error
}

func (e *ValidationSkip) Error() string      { return e.base.Error() }
func (e *ValidationSkip) Code() string       { return e.base.Code() }
func (e *ValidationSkip) Severity() Severity { return e.base.Severity() }
func (e *ValidationSkip) Unwrap() error      { return e.base.Unwrap() }

func NewValidationSkip(message string) error {
	return &ValidationSkip{
		base: Error{
			code:     CodeValidation,
			message:  message,
			severity: Soft,
		},
	}
}

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	base Error
}

func (e *TimeoutError) Error() string      { return e.base.Error() }
func (e *TimeoutError) Code() string       { return e.base.Code() }
func (e *TimeoutError) Severity() Severity { return e.base.Severity() }
func (e *TimeoutError) Unwrap() error      { return e.base.Unwrap() }

func NewTimeoutError(message string, severity Severity, cause error) error {
	return &TimeoutError{
		base: Error{
			code:     CodeTimeout,
			message:  message,
			severity: severity,
			err:      cause,
		},
	}
}

type ConfigError struct {
	base Error
}

func (e *ConfigError) Error() string      { return e.base.Error() }
func (e *ConfigError) Code() string       { return e.base.Code() }
func (e *ConfigError) Severity() Severity { return e.base.Severity() }
func (e *ConfigError) Unwrap() error      { return e.base.Unwrap() }

func NewConfigError(message string, cause error) error {
	return &ConfigError{
		base: Error{
			code:     CodeConfig,
			message:  message,
			severity: Hard,
			err:      cause,
		},
	}
}
