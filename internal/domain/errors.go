package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain validation errors
const (
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeUnauthorizedRole    = "UNAUTHORIZED_ROLE"
	ErrCodeUnknownStatus       = "UNKNOWN_STATUS"
	ErrCodeUnknownRole         = "UNKNOWN_ROLE"
	ErrCodeInvalidTxTransition = "INVALID_TX_TRANSITION"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeMissingField        = "MISSING_REQUIRED_FIELD"
)

func NewInvalidTransitionError(from, to ApplicationStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewUnauthorizedRoleError(role Role, target ApplicationStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnauthorizedRole,
		Message: fmt.Sprintf("role %s may not set status %s", role, target),
	}
}

func NewUnknownStatusError(raw string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownStatus,
		Message: fmt.Sprintf("unknown application status %q", raw),
	}
}

func NewUnknownRoleError(raw string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnknownRole,
		Message: fmt.Sprintf("unknown role %q", raw),
	}
}

func NewInvalidTxTransitionError(from, to TransactionStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTxTransition,
		Message: fmt.Sprintf("cannot transition transaction from %s to %s", from, to),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

func NewMissingFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
