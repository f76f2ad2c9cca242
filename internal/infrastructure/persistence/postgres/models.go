package postgres

import (
	"time"
)

// SettlementAttemptModel mirrors the settlement_attempts table.
type SettlementAttemptModel struct {
	ID                  string
	ApplicationID       string
	TaskID              string
	PaymentID           *string
	ExternalOrderID     *string
	AmountCents         int64
	Currency            string
	State               string
	ErrorCode           *string
	Compensation        string
	CompensationOutcome string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ResolvedAt          *time.Time
}
