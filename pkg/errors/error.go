// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Malformed or inconsistent order input, never sent to the exchange
//   - Exchange errors (200-299): Transport, authentication and rejection errors from the exchange
//   - Strategy errors (300-399): Partial or failed multi-order strategies
//   - Journal errors (400-499): Audit journal persistence errors
//
// Besides the coded Error type the package defines three typed errors the
// execution engine reports to its callers: ValidationError, ExchangeError and
// PartialStrategyFailure.
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Reject a field before any network call
//	err := errors.NewValidationError("price", raw, "must be a positive decimal")
//
//	// Check what kind of exchange failure happened
//	if errors.IsTransient(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error.
// The typed errors of this package map onto their category codes.
// Returns ErrCodeUnknown for any other error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ErrCodeInvalidParameter
	}

	var exchangeErr *ExchangeError
	if errors.As(err, &exchangeErr) {
		return exchangeErr.ErrorCode()
	}

	var partialErr *PartialStrategyFailure
	if errors.As(err, &partialErr) {
		return ErrCodePartialStrategyFailure
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// ValidationError reports malformed or logically inconsistent input.
// It always names the offending field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted reason.
func NewValidationErrorf(field, value, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("[%d] invalid %s %q: %s", ErrCodeInvalidParameter, e.Field, e.Value, e.Reason)
	}

	return fmt.Sprintf("[%d] invalid %s: %s", ErrCodeInvalidParameter, e.Field, e.Reason)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// ExchangeErrorKind classifies a failure reported by the exchange.
type ExchangeErrorKind string

const (
	// ExchangeErrorTransient is a timeout, disconnect or rate limit. Retrying may succeed.
	ExchangeErrorTransient ExchangeErrorKind = "TRANSIENT"
	// ExchangeErrorRejected means the exchange refused the request parameters.
	ExchangeErrorRejected ExchangeErrorKind = "REJECTED"
	// ExchangeErrorAuthFailure means the credentials were refused.
	ExchangeErrorAuthFailure ExchangeErrorKind = "AUTH_FAILURE"
)

// ExchangeError is a network, authentication or rejection error from the exchange.
type ExchangeError struct {
	Kind ExchangeErrorKind
	// Code is the exchange status code, 0 when the request never got an answer.
	Code    int64
	Message string
	Cause   error
	// RollbackError is set when a compensating cancel issued after this
	// failure did not succeed either.
	RollbackError error
}

// NewExchangeError creates a new ExchangeError.
func NewExchangeError(kind ExchangeErrorKind, code int64, message string, cause error) *ExchangeError {
	return &ExchangeError{
		Kind:          kind,
		Code:          code,
		Message:       message,
		Cause:         cause,
		RollbackError: nil,
	}
}

// ErrorCode maps the exchange error kind onto the package error codes.
func (e *ExchangeError) ErrorCode() ErrorCode {
	switch e.Kind {
	case ExchangeErrorTransient:
		return ErrCodeExchangeTransient
	case ExchangeErrorAuthFailure:
		return ErrCodeExchangeAuthFailure
	default:
		return ErrCodeExchangeRejected
	}
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("[%d] exchange error (%s", e.ErrorCode(), e.Kind)
	if e.Code != 0 {
		msg += fmt.Sprintf(", code %d", e.Code)
	}

	msg += "): " + e.Message

	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}

	if e.RollbackError != nil {
		msg += fmt.Sprintf(" (rollback failed: %v)", e.RollbackError)
	}

	return msg
}

// Unwrap returns the underlying error cause.
func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// IsExchangeError checks if an error is an ExchangeError.
func IsExchangeError(err error) bool {
	var exchangeErr *ExchangeError

	return errors.As(err, &exchangeErr)
}

// IsTransient reports whether err is an ExchangeError worth retrying.
func IsTransient(err error) bool {
	var exchangeErr *ExchangeError
	if errors.As(err, &exchangeErr) {
		return exchangeErr.Kind == ExchangeErrorTransient
	}

	return false
}

// PartialStrategyFailure reports a multi-order strategy that finished with
// fewer successful orders than requested. It is a reportable outcome, not a
// hard failure.
type PartialStrategyFailure struct {
	Kind      string
	Requested int
	Succeeded int
}

// NewPartialStrategyFailure creates a new PartialStrategyFailure.
func NewPartialStrategyFailure(kind string, requested, succeeded int) *PartialStrategyFailure {
	return &PartialStrategyFailure{
		Kind:      kind,
		Requested: requested,
		Succeeded: succeeded,
	}
}

// Error implements the error interface.
func (e *PartialStrategyFailure) Error() string {
	return fmt.Sprintf("[%d] %s strategy partially executed: %d of %d orders succeeded",
		ErrCodePartialStrategyFailure, e.Kind, e.Succeeded, e.Requested)
}

// IsPartialStrategyFailure checks if an error is a PartialStrategyFailure.
func IsPartialStrategyFailure(err error) bool {
	var partialErr *PartialStrategyFailure

	return errors.As(err, &partialErr)
}
