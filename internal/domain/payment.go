package domain

import (
	"slices"
	"time"
)

// TransactionStatus represents the current state of a payment transaction in
// its lifecycle. The ledger owns the authoritative copy; this mirror enforces
// the same transition rules on the coordinator's side.
type TransactionStatus string

const (
	TxCreated   TransactionStatus = "CREATED"
	TxHeld      TransactionStatus = "HELD"
	TxCaptured  TransactionStatus = "CAPTURED"
	TxCancelled TransactionStatus = "CANCELLED"
	TxRefunded  TransactionStatus = "REFUNDED"
	TxFailed    TransactionStatus = "FAILED"
)

// AmountBreakdown splits a settlement amount into its parts, in minor units.
// The ledger computes it with the hold; the coordinator carries it opaquely.
type AmountBreakdown struct {
	TotalCents int64 `json:"total_cents"`
	FeeCents   int64 `json:"fee_cents"`
	NetCents   int64 `json:"net_cents"`
}

// PaymentTransaction is one settlement attempt's money trail. It is the unit
// of compensation: it must never rest in CAPTURED without a corresponding
// ACCEPTED application, and never rest in CREATED/HELD indefinitely.
type PaymentTransaction struct {
	PaymentID       string
	ExternalOrderID string
	ApplicationID   string
	TaskID          string
	AmountCents     int64
	Currency        string
	Breakdown       AmountBreakdown
	Status          TransactionStatus

	GatewayReference *string

	CreatedAt   time.Time
	HeldAt      *time.Time
	CapturedAt  *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
}

func (t *PaymentTransaction) transition(target TransactionStatus) error {
	if err := t.canTransitionTo(target); err != nil {
		return err
	}
	t.Status = target
	return nil
}

func (t *PaymentTransaction) canTransitionTo(target TransactionStatus) error {
	switch t.Status {
	case TxCreated:
		return t.allow(target, TxHeld, TxCancelled, TxFailed)
	case TxHeld:
		return t.allow(target, TxCaptured, TxCancelled, TxFailed)
	case TxCaptured:
		return t.allow(target, TxRefunded)
	}
	return NewInvalidTxTransitionError(t.Status, target)
}

func (t *PaymentTransaction) allow(target TransactionStatus, allowed ...TransactionStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTxTransitionError(t.Status, target)
}

// MarkHeld records the ledger's confirmation that funds are reserved.
func (t *PaymentTransaction) MarkHeld(externalOrderID string, heldAt time.Time) error {
	if err := t.transition(TxHeld); err != nil {
		return err
	}
	t.ExternalOrderID = externalOrderID
	t.HeldAt = &heldAt
	return nil
}

// MarkCaptured records a confirmed funds transfer. CAPTURED is reachable only
// from HELD.
func (t *PaymentTransaction) MarkCaptured(gatewayReference string, capturedAt time.Time) error {
	if err := t.transition(TxCaptured); err != nil {
		return err
	}
	t.GatewayReference = &gatewayReference
	t.CapturedAt = &capturedAt
	return nil
}

// MarkCancelled records a released hold. CANCELLED is reachable only from
// CREATED or HELD.
func (t *PaymentTransaction) MarkCancelled(cancelledAt time.Time) error {
	if err := t.transition(TxCancelled); err != nil {
		return err
	}
	t.CancelledAt = &cancelledAt
	return nil
}

// MarkRefunded records a reversed capture. REFUNDED is reachable only from
// CAPTURED.
func (t *PaymentTransaction) MarkRefunded(refundedAt time.Time) error {
	if err := t.transition(TxRefunded); err != nil {
		return err
	}
	t.RefundedAt = &refundedAt
	return nil
}

// MarkFailed closes a transaction that never reached capture.
func (t *PaymentTransaction) MarkFailed() error {
	return t.transition(TxFailed)
}

// IsTerminal reports whether the transaction has reached a rest state.
func (t *PaymentTransaction) IsTerminal() bool {
	switch t.Status {
	case TxCaptured, TxCancelled, TxRefunded, TxFailed:
		return true
	default:
		return false
	}
}
