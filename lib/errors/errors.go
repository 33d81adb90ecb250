// Package errors provides structured error types for connpool.
// All errors are designed to be safe to return to monitoring clients without
// exposing credentials or other internal details.
//
// This package provides:
//   - Sentinel errors for common error conditions
//   - Pool-specific errors wrapping those categories
//   - Error codes for response categorization
//   - Error wrapping with context preservation
package errors

import (
	"errors"
	"fmt"
)

// Error codes for categorizing errors. The generic codes follow JSON-RPC 2.0,
// pool codes live in the -32000 to -32099 range.
const (
	CodeInvalidParams = -32602 // Invalid parameters
	CodeInternal      = -32603 // Internal error

	CodeTimeout       = -32005 // Operation timeout
	CodeUnavailable   = -32007 // Service unavailable
	CodeConfiguration = -32008 // Configuration rejected
	CodeConnection    = -32009 // Connection error
	CodeState         = -32010 // Invalid state
	CodeClosed        = -32011 // Closed for good
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates a service is unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidState indicates an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrConnection indicates a connection error.
	ErrConnection = errors.New("connection error")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")
)

// Pool errors
var (
	// ErrPoolClosed is returned by every operation on a closed pool.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrPoolDisabled is returned by checkout and checkin while the pool is disabled.
	ErrPoolDisabled = fmt.Errorf("pool: disabled: %w", ErrUnavailable)

	// ErrNoResourceAvailable is returned when a checkout exhausts its wait budget.
	ErrNoResourceAvailable = fmt.Errorf("pool: no resource available: %w", ErrTimeout)

	// ErrInvalidConfiguration is returned when a size or timeout update is rejected.
	ErrInvalidConfiguration = fmt.Errorf("pool: invalid configuration: %w", ErrConfiguration)

	// ErrTransactionOpen is returned when a resource is checked in with an open transaction.
	ErrTransactionOpen = fmt.Errorf("pool: resource has an open transaction: %w", ErrInvalidState)

	// ErrForeignResource is returned when checking in a resource that is not checked out from the pool.
	ErrForeignResource = fmt.Errorf("pool: resource not checked out from this pool: %w", ErrInvalidInput)

	// ErrResourceCreation is returned when the resource factory fails.
	ErrResourceCreation = fmt.Errorf("pool: resource creation failed: %w", ErrConnection)
)

// Resilience errors
var (
	// ErrCircuitOpen is returned when a circuit breaker rejects a request.
	ErrCircuitOpen = fmt.Errorf("circuit breaker open: %w", ErrUnavailable)
)

// Error is a structured error with a code and safe message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a safe, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns a client-safe error message without internal details.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and safe message.
// The original error is preserved for debugging but not exposed to clients.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromSentinel creates a structured error from an error wrapping one of the
// sentinels above. The message is the safe text of the matched category, so
// factory details such as DSNs never reach the client.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}

	code, message := classify(err)
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// classify maps an error to a code and the message of its most specific
// known sentinel.
func classify(err error) (int, string) {
	pool := []struct {
		target error
		code   int
	}{
		{ErrPoolClosed, CodeClosed},
		{ErrPoolDisabled, CodeUnavailable},
		{ErrNoResourceAvailable, CodeTimeout},
		{ErrInvalidConfiguration, CodeConfiguration},
		{ErrTransactionOpen, CodeState},
		{ErrForeignResource, CodeInvalidParams},
		{ErrCircuitOpen, CodeUnavailable},
		{ErrResourceCreation, CodeConnection},
	}
	for _, p := range pool {
		if errors.Is(err, p.target) {
			return p.code, p.target.Error()
		}
	}

	switch {
	case errors.Is(err, ErrClosed):
		return CodeClosed, ErrClosed.Error()
	case errors.Is(err, ErrTimeout):
		return CodeTimeout, ErrTimeout.Error()
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable, ErrUnavailable.Error()
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidParams, ErrInvalidInput.Error()
	case errors.Is(err, ErrInvalidState):
		return CodeState, ErrInvalidState.Error()
	case errors.Is(err, ErrConnection):
		return CodeConnection, ErrConnection.Error()
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration, ErrConfiguration.Error()
	default:
		return CodeInternal, ErrInternal.Error()
	}
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable returns true if the error indicates a service is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsConfiguration returns true if the error indicates a rejected configuration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
