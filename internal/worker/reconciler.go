// Package worker runs the background reconciler that resolves settlement
// attempts the saga could not finish on its own.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/domain"
	"github.com/taskora/settlement-service/internal/infrastructure/metrics"
)

type Reconciler struct {
	journal  app.AttemptJournal
	ledger   app.LedgerClient
	backend  app.BackendClient
	metrics  *metrics.Metrics
	interval time.Duration
	// staleAge keeps attempts that are legitimately still in flight out of
	// the batch; a STARTED row younger than this may just be a slow checkout.
	staleAge  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewReconciler(
	journal app.AttemptJournal,
	ledger app.LedgerClient,
	backend app.BackendClient,
	m *metrics.Metrics,
	interval time.Duration,
	staleAge time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		journal:   journal,
		ledger:    ledger,
		backend:   backend,
		metrics:   m,
		interval:  interval,
		staleAge:  staleAge,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting settlement reconciler",
		"interval", r.interval,
		"stale_age", r.staleAge,
		"batch_size", r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping settlement reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAge)
	unresolved, err := r.journal.FindUnresolved(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch unresolved attempts", "error", err)
		return
	}

	r.metrics.ReconciliationQueue.Set(float64(len(unresolved)))
	if len(unresolved) == 0 {
		return
	}

	r.logger.Info("reconciling settlement attempts", "count", len(unresolved))

	for _, attempt := range unresolved {
		if err := r.reconcile(ctx, attempt); err != nil {
			r.logger.Error("reconciliation failed; will retry next cycle",
				"attempt_id", attempt.ID,
				"state", string(attempt.State),
				"error", err)
		}
	}
}

// reconcile reads the ledger's view of the attempt's money and drives it to a
// rest state. The ledger is the source of truth for money; the backend for
// the application status.
func (r *Reconciler) reconcile(ctx context.Context, attempt *app.SettlementAttempt) error {
	switch attempt.State {
	case app.AttemptStarted:
		return r.resolveAbandoned(ctx, attempt)
	case app.AttemptCaptureUnverified:
		return r.resolveUnverifiedCapture(ctx, attempt)
	case app.AttemptRefundFailed:
		return r.retryRefund(ctx, attempt)
	case app.AttemptCancelFailed:
		return r.retryCancel(ctx, attempt)
	}
	return nil
}

// resolveAbandoned handles attempts whose process died mid-saga. If no
// payment id was ever journaled the hold never existed; otherwise the ledger
// decides what is left to clean up.
func (r *Reconciler) resolveAbandoned(ctx context.Context, attempt *app.SettlementAttempt) error {
	if attempt.PaymentID == "" {
		attempt.Resolve(app.AttemptHoldFailed, app.ErrCodeHoldCreationFailed, app.CompensationNone, app.CompensationNotAttempted)
		return r.journal.Update(ctx, attempt)
	}
	return r.settleAgainstLedger(ctx, attempt)
}

// resolveUnverifiedCapture finishes a fail-closed capture: read the payment
// back and either complete the refund or release the hold.
func (r *Reconciler) resolveUnverifiedCapture(ctx context.Context, attempt *app.SettlementAttempt) error {
	return r.settleAgainstLedger(ctx, attempt)
}

func (r *Reconciler) settleAgainstLedger(ctx context.Context, attempt *app.SettlementAttempt) error {
	payment, err := r.ledger.GetPayment(ctx, attempt.PaymentID)
	if err != nil {
		return err
	}

	switch domain.TransactionStatus(payment.Status) {
	case domain.TxHeld:
		// Money is only reserved; releasing it is always safe.
		if _, err := r.ledger.CancelHold(ctx, app.CancelRequest{PaymentID: attempt.PaymentID}, attempt.ID+":cancel"); err != nil {
			return err
		}
		r.metrics.RecordCompensation(app.CompensationCancelHold, "succeeded")
		attempt.Resolve(app.AttemptCheckoutFailed, "", app.CompensationCancelHold, app.CompensationSucceeded)

	case domain.TxCaptured:
		accepted, err := r.applicationAccepted(ctx, attempt.ApplicationID)
		if err != nil {
			return err
		}
		if accepted {
			// The saga finished on the backend side; the journal just never
			// heard about it.
			attempt.Resolve(app.AttemptSettled, "", app.CompensationNone, app.CompensationNotAttempted)
			break
		}
		if _, err := r.ledger.Refund(ctx, app.RefundRequest{PaymentID: attempt.PaymentID}, attempt.ID+":refund"); err != nil {
			return err
		}
		r.metrics.RecordCompensation(app.CompensationRefund, "succeeded")
		attempt.Resolve(app.AttemptRefunded, "", app.CompensationRefund, app.CompensationSucceeded)

	case domain.TxCancelled:
		attempt.Resolve(app.AttemptCheckoutFailed, "", app.CompensationCancelHold, app.CompensationSucceeded)

	case domain.TxRefunded:
		attempt.Resolve(app.AttemptRefunded, "", app.CompensationRefund, app.CompensationSucceeded)

	default:
		// CREATED or FAILED: no money is reserved.
		attempt.Resolve(app.AttemptHoldFailed, "", app.CompensationNone, app.CompensationNotAttempted)
	}

	r.logger.Info("attempt reconciled",
		"attempt_id", attempt.ID,
		"payment_id", attempt.PaymentID,
		"resolved_state", string(attempt.State))

	return r.journal.Update(ctx, attempt)
}

func (r *Reconciler) retryRefund(ctx context.Context, attempt *app.SettlementAttempt) error {
	if _, err := r.ledger.Refund(ctx, app.RefundRequest{PaymentID: attempt.PaymentID}, attempt.ID+":refund"); err != nil {
		return err
	}

	r.metrics.RecordCompensation(app.CompensationRefund, "succeeded")
	attempt.Resolve(app.AttemptRefunded, "", app.CompensationRefund, app.CompensationSucceeded)
	return r.journal.Update(ctx, attempt)
}

func (r *Reconciler) retryCancel(ctx context.Context, attempt *app.SettlementAttempt) error {
	if _, err := r.ledger.CancelHold(ctx, app.CancelRequest{PaymentID: attempt.PaymentID}, attempt.ID+":cancel"); err != nil {
		return err
	}

	r.metrics.RecordCompensation(app.CompensationCancelHold, "succeeded")
	attempt.Resolve(app.AttemptCheckoutFailed, "", app.CompensationCancelHold, app.CompensationSucceeded)
	return r.journal.Update(ctx, attempt)
}

func (r *Reconciler) applicationAccepted(ctx context.Context, applicationID string) (bool, error) {
	application, err := r.backend.GetApplication(ctx, applicationID)
	if err != nil {
		return false, err
	}
	return application.Status == domain.StatusAccepted, nil
}
