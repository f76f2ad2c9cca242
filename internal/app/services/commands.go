package services

import (
	"github.com/taskora/settlement-service/internal/domain"
)

// TransitionCommand asks for a single table-governed status change.
type TransitionCommand struct {
	ApplicationID string
	Target        domain.ApplicationStatus
	Role          domain.Role
}

// AcceptPaymentCommand starts a settlement attempt: hold, checkout, capture,
// then the ACCEPTED transition.
type AcceptPaymentCommand struct {
	ApplicationID string
	AmountCents   int64
	Currency      string
	Role          domain.Role
}

// SettlementResult is the success payload of a settlement attempt.
type SettlementResult struct {
	Application *domain.TaskApplication
	Transaction *domain.PaymentTransaction
}
