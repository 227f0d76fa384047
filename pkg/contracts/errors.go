package contracts

import (
	"errors"
	"fmt"
)

// The error taxonomy. Every failure path returns one of these four
// categories; none is ever silently swallowed, and none leaves an envelope
// or capsule partially updated.

// ValidationError is a recoverable input failure (empty capsule content,
// missing delivery config). It surfaces to the caller with no state change.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Code)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// SecurityViolation is fatal to the current operation: a transport-isolation
// breach or a raster contract breach. It must abort before any network or
// transport call and is never retryable.
type SecurityViolation struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

func (e *SecurityViolation) Error() string {
	return fmt.Sprintf("security violation [%s]: %s", e.Check, e.Detail)
}

// TransportFailure records a collaborator failure (unreachable, non-2xx).
// It is recorded as a failed delivery attempt and retryable via explicit
// re-queue.
type TransportFailure struct {
	Method DeliveryMethod `json:"method"`
	Detail string         `json:"detail"`
	Err    error          `json:"-"`
}

func (e *TransportFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s failed: %s: %v", e.Method, e.Detail, e.Err)
	}
	return fmt.Sprintf("transport %s failed: %s", e.Method, e.Detail)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// ContractViolation is a malformed response from the parser/rasterizer
// collaborator. Fatal; surfaced verbatim with page context.
type ContractViolation struct {
	Collaborator string `json:"collaborator"`
	Page         int    `json:"page"`
	Detail       string `json:"detail"`
}

func (e *ContractViolation) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s contract violation (page %d): %s", e.Collaborator, e.Page, e.Detail)
	}
	return fmt.Sprintf("%s contract violation: %s", e.Collaborator, e.Detail)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsSecurityViolation reports whether err is (or wraps) a SecurityViolation.
// Callers treat these as hard stops, never retryable conditions.
func IsSecurityViolation(err error) bool {
	var v *SecurityViolation
	return errors.As(err, &v)
}

// IsTransportFailure reports whether err is (or wraps) a TransportFailure.
func IsTransportFailure(err error) bool {
	var v *TransportFailure
	return errors.As(err, &v)
}

// IsContractViolation reports whether err is (or wraps) a ContractViolation.
func IsContractViolation(err error) bool {
	var v *ContractViolation
	return errors.As(err, &v)
}
