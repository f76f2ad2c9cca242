package postgres

import (
	"github.com/taskora/settlement-service/internal/app"
)

func toDBModel(attempt *app.SettlementAttempt) *SettlementAttemptModel {
	m := &SettlementAttemptModel{
		ID:                  attempt.ID,
		ApplicationID:       attempt.ApplicationID,
		TaskID:              attempt.TaskID,
		AmountCents:         attempt.AmountCents,
		Currency:            attempt.Currency,
		State:               string(attempt.State),
		ErrorCode:           attempt.ErrorCode,
		Compensation:        attempt.Compensation,
		CompensationOutcome: attempt.CompensationOutcome,
		CreatedAt:           attempt.CreatedAt,
		UpdatedAt:           attempt.UpdatedAt,
		ResolvedAt:          attempt.ResolvedAt,
	}
	if attempt.PaymentID != "" {
		m.PaymentID = &attempt.PaymentID
	}
	if attempt.ExternalOrderID != "" {
		m.ExternalOrderID = &attempt.ExternalOrderID
	}
	return m
}

func toDomain(m *SettlementAttemptModel) *app.SettlementAttempt {
	attempt := &app.SettlementAttempt{
		ID:                  m.ID,
		ApplicationID:       m.ApplicationID,
		TaskID:              m.TaskID,
		AmountCents:         m.AmountCents,
		Currency:            m.Currency,
		State:               app.AttemptState(m.State),
		ErrorCode:           m.ErrorCode,
		Compensation:        m.Compensation,
		CompensationOutcome: m.CompensationOutcome,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		ResolvedAt:          m.ResolvedAt,
	}
	if m.PaymentID != nil {
		attempt.PaymentID = *m.PaymentID
	}
	if m.ExternalOrderID != nil {
		attempt.ExternalOrderID = *m.ExternalOrderID
	}
	return attempt
}
