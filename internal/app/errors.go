package app

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError wraps an orchestration failure with the HTTP status the REST
// layer should surface.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeAttemptInProgress = "ATTEMPT_IN_PROGRESS"
	ErrCodePersistenceFailed = "PERSISTENCE_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNotFound          = "NOT_FOUND"
)

func NewAttemptInProgressError(applicationID string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAttemptInProgress,
		Message:    fmt.Sprintf("a settlement attempt for application %s is already in flight", applicationID),
		HTTPStatus: http.StatusConflict,
	}
}

func NewPersistenceFailedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePersistenceFailed,
		Message:    "application backend did not acknowledge the status update",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNotFoundError(what string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", what),
		HTTPStatus: http.StatusNotFound,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// Settlement terminal error codes. Each names the step that failed; the
// SettlementError carries which compensation was attempted and how it went.
const (
	ErrCodeHoldCreationFailed        = "HOLD_CREATION_FAILED"
	ErrCodeCheckoutFailed            = "CHECKOUT_FAILED"
	ErrCodeCaptureVerificationFailed = "CAPTURE_VERIFICATION_FAILED"
	ErrCodeAcceptFailedAfterCapture  = "ACCEPT_FAILED_AFTER_CAPTURE"
	ErrCodeRefundFailed              = "REFUND_FAILED"
	ErrCodeCancelHoldFailed          = "CANCEL_HOLD_FAILED"
)

// SettlementError is the typed terminal result of a failed settlement
// attempt. The coordinator never swallows a step error: Err holds the step
// failure, CompensationErr the compensation failure if one happened.
type SettlementError struct {
	Code                string
	Step                string
	Compensation        string
	CompensationOutcome string
	Err                 error
	CompensationErr     error
}

func (e *SettlementError) Error() string {
	msg := fmt.Sprintf("settlement failed at %s step (%s)", e.Step, e.Code)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.CompensationErr != nil {
		msg = fmt.Sprintf("%s; compensation %s failed: %v", msg, e.Compensation, e.CompensationErr)
	}
	return msg
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the attempt left money in a state that requires
// operator intervention.
func (e *SettlementError) Fatal() bool {
	switch e.Code {
	case ErrCodeRefundFailed, ErrCodeCancelHoldFailed, ErrCodeCaptureVerificationFailed:
		return true
	default:
		return false
	}
}

func IsSettlementError(err error) (*SettlementError, bool) {
	var setErr *SettlementError
	ok := errors.As(err, &setErr)
	return setErr, ok
}

// LedgerError is a structured failure reported by the payment ledger.
type LedgerError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *LedgerError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsLedgerError(err error) (*LedgerError, bool) {
	var ledgerErr *LedgerError
	ok := errors.As(err, &ledgerErr)
	return ledgerErr, ok
}

// Checkout failure reasons reported by the gateway adapter.
const (
	CheckoutReasonDismissed = "dismissed"
	CheckoutReasonFailed    = "failed"
	CheckoutReasonExpired   = "expired"
)

// CheckoutError is a terminal checkout outcome other than payment.
type CheckoutError struct {
	Reason  string
	Message string
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout %s: %s", e.Reason, e.Message)
}

// Dismissed reports whether the payer closed the widget rather than the
// gateway failing.
func (e *CheckoutError) Dismissed() bool {
	return e.Reason == CheckoutReasonDismissed
}

func IsCheckoutError(err error) (*CheckoutError, bool) {
	var checkoutErr *CheckoutError
	ok := errors.As(err, &checkoutErr)
	return checkoutErr, ok
}
