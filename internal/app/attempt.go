package app

import (
	"time"
)

// AttemptState tracks where a settlement attempt ended up in the journal.
type AttemptState string

const (
	AttemptStarted           AttemptState = "STARTED"
	AttemptSettled           AttemptState = "SETTLED"
	AttemptHoldFailed        AttemptState = "HOLD_FAILED"
	AttemptCheckoutFailed    AttemptState = "CHECKOUT_FAILED"
	AttemptCaptureUnverified AttemptState = "CAPTURE_UNVERIFIED"
	AttemptRefunded          AttemptState = "REFUNDED"
	AttemptRefundFailed      AttemptState = "REFUND_FAILED"
	AttemptCancelFailed      AttemptState = "CANCEL_FAILED"
)

// Compensation actions and outcomes recorded with each terminal state.
const (
	CompensationNone       = "NONE"
	CompensationCancelHold = "CANCEL_HOLD"
	CompensationRefund     = "REFUND"

	CompensationNotAttempted = "NOT_ATTEMPTED"
	CompensationSucceeded    = "SUCCEEDED"
	CompensationFailed       = "FAILED"
)

// SettlementAttempt is one journal row per call into the settlement saga.
// Rows in STARTED, CAPTURE_UNVERIFIED, REFUND_FAILED or CANCEL_FAILED are the
// reconciler's work queue.
type SettlementAttempt struct {
	ID              string
	ApplicationID   string
	TaskID          string
	PaymentID       string
	ExternalOrderID string
	AmountCents     int64
	Currency        string
	State           AttemptState

	ErrorCode           *string
	Compensation        string
	CompensationOutcome string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// Resolve moves the attempt to a terminal journal state and stamps it.
func (a *SettlementAttempt) Resolve(state AttemptState, errorCode string, compensation, outcome string) {
	now := time.Now()
	a.State = state
	a.Compensation = compensation
	a.CompensationOutcome = outcome
	a.UpdatedAt = now
	a.ResolvedAt = &now
	if errorCode != "" {
		a.ErrorCode = &errorCode
	}
}

// NeedsReconciliation reports whether an operator or the reconciler still owes
// this attempt a resolution.
func (a *SettlementAttempt) NeedsReconciliation() bool {
	switch a.State {
	case AttemptStarted, AttemptCaptureUnverified, AttemptRefundFailed, AttemptCancelFailed:
		return true
	default:
		return false
	}
}
