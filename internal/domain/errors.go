package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects a bad automation spec at creation time. It never
// enters the schedule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExecutionErrorKind classifies handler-level failures for retry decisions
// and failure inspection.
type ExecutionErrorKind string

const (
	ErrKindInsufficientFunds   ExecutionErrorKind = "insufficient_funds"
	ErrKindUnknownStrategy     ExecutionErrorKind = "unknown_strategy"
	ErrKindProtocolUnavailable ExecutionErrorKind = "protocol_unavailable"
	ErrKindLedgerUnavailable   ExecutionErrorKind = "ledger_unavailable"
	ErrKindInternal            ExecutionErrorKind = "internal"
)

// ExecutionError is a handler-level failure. It is caught by the scheduler
// and drives the retry/backoff state machine; it never propagates to the
// caller of Tick.
type ExecutionError struct {
	Kind       ExecutionErrorKind
	Message    string
	Underlying error
}

func (e *ExecutionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Underlying
}

// NewExecutionError creates an execution error.
func NewExecutionError(kind ExecutionErrorKind, message string) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message}
}

// WrapExecutionError creates an execution error wrapping an underlying
// collaborator error.
func WrapExecutionError(kind ExecutionErrorKind, message string, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message, Underlying: err}
}

// ExecutionKind extracts the kind from an error chain, or ErrKindInternal
// when the error is not an ExecutionError.
func ExecutionKind(err error) ExecutionErrorKind {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ErrKindInternal
}

// ConfigurationError marks a request for an unknown scenario, tolerance or
// similar static configuration. It is fatal to the single call that
// requested it and does not affect scheduler state.
type ConfigurationError struct {
	What  string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.What, e.Value)
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(what, value string) *ConfigurationError {
	return &ConfigurationError{What: what, Value: value}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
