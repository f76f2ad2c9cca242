// Package app holds the ports and error taxonomy shared between the
// settlement services and the infrastructure that backs them.
package app

import (
	"context"
	"time"

	"github.com/taskora/settlement-service/internal/domain"
)

// LedgerClient is the port for the payment ledger backend.
type LedgerClient interface {
	CreateHold(ctx context.Context, req HoldRequest, idempotencyKey string) (*HoldResponse, error)
	Capture(ctx context.Context, req CaptureRequest, idempotencyKey string) (*CaptureResponse, error)
	CancelHold(ctx context.Context, req CancelRequest, idempotencyKey string) (*CancelResponse, error)
	Refund(ctx context.Context, req RefundRequest, idempotencyKey string) (*RefundResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentStatusResponse, error)
}

// CheckoutGateway is the port for the hosted checkout widget. Collect blocks
// until the payer completes or dismisses the checkout, or ctx is cancelled;
// caller cancellation carries dismissal semantics.
type CheckoutGateway interface {
	Collect(ctx context.Context, req CollectRequest) (*CollectResult, error)
}

// BackendClient is the port for the Application Backend, the system of record
// for task applications.
type BackendClient interface {
	GetApplication(ctx context.Context, id string) (*domain.TaskApplication, error)
	UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, role domain.Role) (*domain.TaskApplication, error)
	ListByTask(ctx context.Context, taskID string) ([]*domain.TaskApplication, error)
	ListByCompany(ctx context.Context, companyID string) ([]*domain.TaskApplication, error)
	ListByDeveloper(ctx context.Context, developerID string) ([]*domain.TaskApplication, error)
}

// EventPublisher is the port for transition and settlement notifications.
// Publish failures are logged by callers and never change an outcome.
type EventPublisher interface {
	PublishTransition(ctx context.Context, event TransitionEvent) error
	PublishSettlement(ctx context.Context, event SettlementEvent) error
}

// AttemptJournal records every settlement attempt and its compensation
// outcome so operators and the reconciler can resolve discrepancies. The
// journal is telemetry, not the system of record.
type AttemptJournal interface {
	Record(ctx context.Context, attempt *SettlementAttempt) error
	Update(ctx context.Context, attempt *SettlementAttempt) error
	FindUnresolved(ctx context.Context, cutoff time.Time, limit int) ([]*SettlementAttempt, error)
}

// Ledger DTOs.

type HoldRequest struct {
	ApplicationID string `json:"application_id"`
	TaskID        string `json:"task_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

type HoldResponse struct {
	PaymentID       string                 `json:"payment_id"`
	ExternalOrderID string                 `json:"external_order_id"`
	AmountCents     int64                  `json:"amount_cents"`
	Currency        string                 `json:"currency"`
	Breakdown       domain.AmountBreakdown `json:"amount_breakdown"`
	Status          string                 `json:"status"`
	HeldAt          time.Time              `json:"held_at"`
}

type CaptureRequest struct {
	PaymentID        string `json:"payment_id"`
	GatewayReference string `json:"gateway_reference"`
}

type CaptureResponse struct {
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	CapturedAt time.Time `json:"captured_at"`
}

type CancelRequest struct {
	PaymentID string `json:"payment_id"`
}

type CancelResponse struct {
	PaymentID   string    `json:"payment_id"`
	Status      string    `json:"status"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type RefundRequest struct {
	PaymentID string `json:"payment_id"`
}

type RefundResponse struct {
	PaymentID  string    `json:"payment_id"`
	Status     string    `json:"status"`
	RefundedAt time.Time `json:"refunded_at"`
}

type PaymentStatusResponse struct {
	PaymentID       string `json:"payment_id"`
	ExternalOrderID string `json:"external_order_id"`
	Status          string `json:"status"`
}

// Checkout DTOs.

type CollectRequest struct {
	ExternalOrderID string `json:"external_order_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
}

type CollectResult struct {
	GatewayReference string    `json:"payment_reference"`
	PaidAt           time.Time `json:"paid_at"`
}

// Event payloads.

type TransitionEvent struct {
	ApplicationID string    `json:"application_id"`
	TaskID        string    `json:"task_id"`
	CompanyID     string    `json:"company_id"`
	DeveloperID   string    `json:"developer_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Role          string    `json:"role"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type SettlementEvent struct {
	AttemptID     string    `json:"attempt_id"`
	ApplicationID string    `json:"application_id"`
	PaymentID     string    `json:"payment_id"`
	Outcome       string    `json:"outcome"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}
