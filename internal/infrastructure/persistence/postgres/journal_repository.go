// Package postgres persists the settlement attempt journal.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskora/settlement-service/internal/app"
)

var ErrAttemptNotFound = errors.New("settlement attempt not found")

type JournalRepository struct {
	db *pgxpool.Pool
}

func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Record(ctx context.Context, attempt *app.SettlementAttempt) error {
	query := `
		INSERT INTO settlement_attempts (
			id, application_id, task_id, payment_id, external_order_id,
			amount_cents, currency, state, error_code,
			compensation, compensation_outcome,
			created_at, updated_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	m := toDBModel(attempt)
	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.ApplicationID,
		m.TaskID,
		m.PaymentID,
		m.ExternalOrderID,
		m.AmountCents,
		m.Currency,
		m.State,
		m.ErrorCode,
		m.Compensation,
		m.CompensationOutcome,
		m.CreatedAt,
		m.UpdatedAt,
		m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement attempt: %w", err)
	}

	return nil
}

func (r *JournalRepository) Update(ctx context.Context, attempt *app.SettlementAttempt) error {
	query := `
		UPDATE settlement_attempts
		SET payment_id = $2, external_order_id = $3, state = $4,
		    error_code = $5, compensation = $6, compensation_outcome = $7,
		    updated_at = $8, resolved_at = $9
		WHERE id = $1
	`

	m := toDBModel(attempt)
	tag, err := r.db.Exec(ctx, query,
		m.ID,
		m.PaymentID,
		m.ExternalOrderID,
		m.State,
		m.ErrorCode,
		m.Compensation,
		m.CompensationOutcome,
		time.Now(),
		m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}

	return nil
}

// FindUnresolved returns attempts still owed a resolution, oldest first. The
// cutoff keeps attempts that are legitimately in flight out of the batch.
func (r *JournalRepository) FindUnresolved(ctx context.Context, cutoff time.Time, limit int) ([]*app.SettlementAttempt, error) {
	query := `
		SELECT id, application_id, task_id, payment_id, external_order_id,
		       amount_cents, currency, state, error_code,
		       compensation, compensation_outcome,
		       created_at, updated_at, resolved_at
		FROM settlement_attempts
		WHERE state IN ('STARTED', 'CAPTURE_UNVERIFIED', 'REFUND_FAILED', 'CANCEL_FAILED')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*app.SettlementAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}

func (r *JournalRepository) FindByID(ctx context.Context, id string) (*app.SettlementAttempt, error) {
	query := `
		SELECT id, application_id, task_id, payment_id, external_order_id,
		       amount_cents, currency, state, error_code,
		       compensation, compensation_outcome,
		       created_at, updated_at, resolved_at
		FROM settlement_attempts
		WHERE id = $1
	`

	attempt, err := scanAttempt(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	return attempt, nil
}

func scanAttempt(row pgx.Row) (*app.SettlementAttempt, error) {
	var m SettlementAttemptModel
	err := row.Scan(
		&m.ID,
		&m.ApplicationID,
		&m.TaskID,
		&m.PaymentID,
		&m.ExternalOrderID,
		&m.AmountCents,
		&m.Currency,
		&m.State,
		&m.ErrorCode,
		&m.Compensation,
		&m.CompensationOutcome,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return toDomain(&m), nil
}
