package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so callers can use
// errors.Is(err, shared.ErrNotFound) against errors built with a custom message.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return de.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by every settlement module.
const (
	CodeValidation             = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeDuplicateTransaction   = "DUPLICATE_TRANSACTION"
	CodeGateway                = "GATEWAY_ERROR"
	CodeUnsettledPayment       = "UNSETTLED_PAYMENT"
	CodeReconciliationMismatch = "RECONCILIATION_MISMATCH"
	CodeNegativeBalance        = "NEGATIVE_BALANCE"
	CodeImmutableReport        = "IMMUTABLE_REPORT"
	CodeInvalidState           = "INVALID_STATE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeAlreadyExists          = "ALREADY_EXISTS"
)

// Common domain errors
var (
	ErrValidation             = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrDuplicateTransaction   = NewDomainError(CodeDuplicateTransaction, "Transaction has already been processed")
	ErrGateway                = NewDomainError(CodeGateway, "Payment gateway request failed")
	ErrUnsettledPayment       = NewDomainError(CodeUnsettledPayment, "Payment is paid but its enrollment is not settled")
	ErrReconciliationMismatch = NewDomainError(CodeReconciliationMismatch, "Recomputed totals do not match stored totals")
	ErrNegativeBalance        = NewDomainError(CodeNegativeBalance, "Cash-out exceeds the cash drawer balance")
	ErrImmutableReport        = NewDomainError(CodeImmutableReport, "Final reports cannot be modified")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrConcurrencyConflict    = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
)

// NewValidationError creates a validation error with a specific message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewNotFoundError creates a not-found error with a specific message
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// NewInvalidStateError creates an invalid-state error with a specific message
func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}

// ErrorCode extracts the domain error code from err, or "" if err is not a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
