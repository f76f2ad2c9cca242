package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/taskora/settlement-service/internal/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) ||
		domain.IsErrorCode(err, domain.ErrCodeUnauthorizedRole) ||
		domain.IsErrorCode(err, domain.ErrCodeInvalidTxTransition) ||
		domain.IsErrorCode(err, domain.ErrCodeInvalidAmount) {
		return CategoryBusinessRule
	}

	if domain.IsErrorCode(err, domain.ErrCodeUnknownStatus) ||
		domain.IsErrorCode(err, domain.ErrCodeUnknownRole) ||
		domain.IsErrorCode(err, domain.ErrCodeMissingField) {
		return CategoryClientError
	}

	if checkoutErr, ok := IsCheckoutError(err); ok {
		// A dismissed or expired checkout is the payer's call, not an outage.
		if checkoutErr.Dismissed() || checkoutErr.Reason == CheckoutReasonExpired {
			return CategoryBusinessRule
		}
		return CategoryPermanent
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeAttemptInProgress:
			return CategoryBusinessRule
		case ErrCodeInvalidInput, ErrCodeNotFound:
			return CategoryClientError
		case ErrCodePersistenceFailed:
			return CategoryTransient
		case ErrCodeInternal:
			return CategoryInfrastructure
		}
	}

	if ledgerErr, ok := IsLedgerError(err); ok {
		if ledgerErr.StatusCode >= 500 {
			return CategoryTransient
		}

		switch ledgerErr.Code {
		case "insufficient_funds", "hold_expired", "already_captured",
			"already_cancelled", "already_refunded", "amount_mismatch":
			return CategoryPermanent
		case "hold_not_found", "payment_not_found", "missing_idempotency_key":
			return CategoryClientError
		case "internal_error":
			return CategoryTransient
		default:
			return CategoryPermanent
		}
	}

	// Default: transient (safe fallback for transport-level failures).
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	if setErr, ok := IsSettlementError(err); ok {
		switch setErr.Code {
		case ErrCodeCheckoutFailed:
			return http.StatusPaymentRequired
		case ErrCodeHoldCreationFailed, ErrCodeCaptureVerificationFailed:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}

	switch {
	case domain.IsErrorCode(err, domain.ErrCodeInvalidTransition),
		domain.IsErrorCode(err, domain.ErrCodeInvalidTxTransition):
		return http.StatusConflict
	case domain.IsErrorCode(err, domain.ErrCodeUnauthorizedRole):
		return http.StatusForbidden
	case domain.IsErrorCode(err, domain.ErrCodeUnknownStatus),
		domain.IsErrorCode(err, domain.ErrCodeUnknownRole),
		domain.IsErrorCode(err, domain.ErrCodeInvalidAmount),
		domain.IsErrorCode(err, domain.ErrCodeMissingField):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if ledgerErr, ok := IsLedgerError(err); ok {
		return ledgerErr.StatusCode
	}

	return http.StatusInternalServerError
}

// ToErrorCode maps an error to the stable code used in API responses.
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}
	if setErr, ok := IsSettlementError(err); ok {
		return setErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if _, ok := IsCheckoutError(err); ok {
		return ErrCodeCheckoutFailed
	}

	if ledgerErr, ok := IsLedgerError(err); ok {
		return "LEDGER_" + ledgerErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
