package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/domain"
	"github.com/taskora/settlement-service/internal/infrastructure/metrics"
)

const (
	defaultCompensationRetries = 3
	defaultCompensationDelay   = 500 * time.Millisecond
	compensationTimeout        = 30 * time.Second
)

// SettlementService coordinates acceptance of an application with payment
// settlement: hold funds, collect payment through the hosted checkout, capture
// the hold, then move the application to ACCEPTED. Any failure after the hold
// triggers a compensation so no money rests in an inconsistent state without a
// journal entry pointing at it.
type SettlementService struct {
	status   *StatusService
	ledger   app.LedgerClient
	checkout app.CheckoutGateway
	journal  app.AttemptJournal
	events   app.EventPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	attempts *attemptRegistry

	compensationRetries int
	compensationDelay   time.Duration
}

func NewSettlementService(
	status *StatusService,
	ledger app.LedgerClient,
	checkout app.CheckoutGateway,
	journal app.AttemptJournal,
	events app.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		status:              status,
		ledger:              ledger,
		checkout:            checkout,
		journal:             journal,
		events:              events,
		metrics:             m,
		logger:              logger,
		attempts:            newAttemptRegistry(),
		compensationRetries: defaultCompensationRetries,
		compensationDelay:   defaultCompensationDelay,
	}
}

// WithCompensationPolicy overrides the retry budget for compensating calls.
func (s *SettlementService) WithCompensationPolicy(retries int, delay time.Duration) *SettlementService {
	if retries > 0 {
		s.compensationRetries = retries
	}
	if delay > 0 {
		s.compensationDelay = delay
	}
	return s
}

// AcceptWithPayment runs one settlement attempt end to end. At most one
// attempt per application is in flight at a time; a concurrent call gets an
// ATTEMPT_IN_PROGRESS conflict without touching the ledger.
func (s *SettlementService) AcceptWithPayment(ctx context.Context, cmd AcceptPaymentCommand) (*SettlementResult, error) {
	if err := s.validate(cmd); err != nil {
		return nil, err
	}

	application, err := s.status.Get(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	// Guard violations are checked before any external call so they need no
	// compensation. The accept step re-checks against the backend's state.
	if !domain.RoleMayApply(cmd.Role, domain.StatusAccepted) {
		return nil, domain.NewUnauthorizedRoleError(cmd.Role, domain.StatusAccepted)
	}
	if application.Status != domain.StatusShortlisted {
		return nil, domain.NewInvalidTransitionError(application.Status, domain.StatusAccepted)
	}

	if !s.attempts.begin(application.ID) {
		return nil, app.NewAttemptInProgressError(application.ID)
	}
	defer s.attempts.end(application.ID)

	started := time.Now()
	attempt := &app.SettlementAttempt{
		ID:                  uuid.New().String(),
		ApplicationID:       application.ID,
		TaskID:              application.TaskID,
		AmountCents:         cmd.AmountCents,
		Currency:            cmd.Currency,
		State:               app.AttemptStarted,
		Compensation:        app.CompensationNone,
		CompensationOutcome: app.CompensationNotAttempted,
		CreatedAt:           started,
		UpdatedAt:           started,
	}
	s.recordAttempt(ctx, attempt)

	result, err := s.run(ctx, application, cmd, attempt)

	s.metrics.RecordSettlement(string(attempt.State), time.Since(started))
	s.publishOutcome(ctx, attempt)

	if err != nil {
		s.logAttemptFailure(attempt, err)
		return nil, err
	}
	return result, nil
}

func (s *SettlementService) validate(cmd AcceptPaymentCommand) error {
	if strings.TrimSpace(cmd.ApplicationID) == "" {
		return domain.NewMissingFieldError("application_id")
	}
	if cmd.AmountCents <= 0 {
		return domain.NewInvalidAmountError(cmd.AmountCents)
	}
	if strings.TrimSpace(cmd.Currency) == "" {
		return domain.NewMissingFieldError("currency")
	}
	return nil
}

// run executes the four saga steps. It resolves the attempt journal entry on
// every exit path.
func (s *SettlementService) run(ctx context.Context, application *domain.TaskApplication, cmd AcceptPaymentCommand, attempt *app.SettlementAttempt) (*SettlementResult, error) {
	tx := &domain.PaymentTransaction{
		ApplicationID: application.ID,
		TaskID:        application.TaskID,
		AmountCents:   cmd.AmountCents,
		Currency:      cmd.Currency,
		Status:        domain.TxCreated,
		CreatedAt:     time.Now(),
	}

	// Step 1: place the hold.
	hold, err := s.ledger.CreateHold(ctx, app.HoldRequest{
		ApplicationID: application.ID,
		TaskID:        application.TaskID,
		AmountCents:   cmd.AmountCents,
		Currency:      cmd.Currency,
	}, attempt.ID+":hold")
	if err != nil {
		_ = tx.MarkFailed()
		attempt.Resolve(app.AttemptHoldFailed, app.ErrCodeHoldCreationFailed, app.CompensationNone, app.CompensationNotAttempted)
		s.updateAttempt(ctx, attempt)
		return nil, &app.SettlementError{
			Code:                app.ErrCodeHoldCreationFailed,
			Step:                "hold",
			Compensation:        app.CompensationNone,
			CompensationOutcome: app.CompensationNotAttempted,
			Err:                 err,
		}
	}

	tx.PaymentID = hold.PaymentID
	tx.Breakdown = hold.Breakdown
	if err := tx.MarkHeld(hold.ExternalOrderID, hold.HeldAt); err != nil {
		return nil, app.NewInternalError(err)
	}
	attempt.PaymentID = hold.PaymentID
	attempt.ExternalOrderID = hold.ExternalOrderID
	s.updateAttempt(ctx, attempt)

	s.logger.Info("hold placed",
		"attempt_id", attempt.ID,
		"application_id", application.ID,
		"payment_id", hold.PaymentID,
		"amount_cents", cmd.AmountCents)

	// Step 2: collect payment through the hosted checkout.
	collected, err := s.checkout.Collect(ctx, app.CollectRequest{
		ExternalOrderID: hold.ExternalOrderID,
		AmountCents:     cmd.AmountCents,
		Currency:        cmd.Currency,
	})
	if err != nil {
		return nil, s.failCheckout(ctx, tx, attempt, err)
	}

	// Step 3: capture the hold and verify the ledger confirmed it.
	capture, err := s.ledger.Capture(ctx, app.CaptureRequest{
		PaymentID:        hold.PaymentID,
		GatewayReference: collected.GatewayReference,
	}, attempt.ID+":capture")
	if err != nil || capture.Status != string(domain.TxCaptured) {
		// Fail closed: an unconfirmed capture may still have moved money, so
		// no automatic compensation. The reconciler reads the ledger back.
		attempt.Resolve(app.AttemptCaptureUnverified, app.ErrCodeCaptureVerificationFailed, app.CompensationNone, app.CompensationNotAttempted)
		s.updateAttempt(ctx, attempt)
		return nil, &app.SettlementError{
			Code:                app.ErrCodeCaptureVerificationFailed,
			Step:                "capture",
			Compensation:        app.CompensationNone,
			CompensationOutcome: app.CompensationNotAttempted,
			Err:                 err,
		}
	}
	if err := tx.MarkCaptured(collected.GatewayReference, capture.CapturedAt); err != nil {
		return nil, app.NewInternalError(err)
	}

	// Step 4: flip the application to ACCEPTED.
	updated, err := s.status.accept(ctx, application, cmd.Role)
	if err != nil {
		return nil, s.failAccept(ctx, tx, attempt, err)
	}

	attempt.Resolve(app.AttemptSettled, "", app.CompensationNone, app.CompensationNotAttempted)
	s.updateAttempt(ctx, attempt)

	s.logger.Info("settlement complete",
		"attempt_id", attempt.ID,
		"application_id", application.ID,
		"payment_id", tx.PaymentID)

	return &SettlementResult{Application: updated, Transaction: tx}, nil
}

// failCheckout compensates an abandoned or failed checkout by releasing the
// hold, then reports the checkout failure with the compensation outcome.
func (s *SettlementService) failCheckout(ctx context.Context, tx *domain.PaymentTransaction, attempt *app.SettlementAttempt, cause error) error {
	cancelErr := s.compensate(ctx, app.CompensationCancelHold, func(compCtx context.Context) error {
		_, err := s.ledger.CancelHold(compCtx, app.CancelRequest{PaymentID: tx.PaymentID}, attempt.ID+":cancel")
		return err
	})
	if cancelErr != nil {
		attempt.Resolve(app.AttemptCancelFailed, app.ErrCodeCancelHoldFailed, app.CompensationCancelHold, app.CompensationFailed)
		s.updateAttempt(ctx, attempt)
		return &app.SettlementError{
			Code:                app.ErrCodeCancelHoldFailed,
			Step:                "checkout",
			Compensation:        app.CompensationCancelHold,
			CompensationOutcome: app.CompensationFailed,
			Err:                 cause,
			CompensationErr:     cancelErr,
		}
	}

	_ = tx.MarkCancelled(time.Now())
	attempt.Resolve(app.AttemptCheckoutFailed, app.ErrCodeCheckoutFailed, app.CompensationCancelHold, app.CompensationSucceeded)
	s.updateAttempt(ctx, attempt)
	return &app.SettlementError{
		Code:                app.ErrCodeCheckoutFailed,
		Step:                "checkout",
		Compensation:        app.CompensationCancelHold,
		CompensationOutcome: app.CompensationSucceeded,
		Err:                 cause,
	}
}

// failAccept compensates a post-capture failure by refunding the captured
// funds.
func (s *SettlementService) failAccept(ctx context.Context, tx *domain.PaymentTransaction, attempt *app.SettlementAttempt, cause error) error {
	refundErr := s.compensate(ctx, app.CompensationRefund, func(compCtx context.Context) error {
		_, err := s.ledger.Refund(compCtx, app.RefundRequest{PaymentID: tx.PaymentID}, attempt.ID+":refund")
		return err
	})
	if refundErr != nil {
		attempt.Resolve(app.AttemptRefundFailed, app.ErrCodeRefundFailed, app.CompensationRefund, app.CompensationFailed)
		s.updateAttempt(ctx, attempt)
		return &app.SettlementError{
			Code:                app.ErrCodeRefundFailed,
			Step:                "accept",
			Compensation:        app.CompensationRefund,
			CompensationOutcome: app.CompensationFailed,
			Err:                 cause,
			CompensationErr:     refundErr,
		}
	}

	_ = tx.MarkRefunded(time.Now())
	attempt.Resolve(app.AttemptRefunded, app.ErrCodeAcceptFailedAfterCapture, app.CompensationRefund, app.CompensationSucceeded)
	s.updateAttempt(ctx, attempt)
	return &app.SettlementError{
		Code:                app.ErrCodeAcceptFailedAfterCapture,
		Step:                "accept",
		Compensation:        app.CompensationRefund,
		CompensationOutcome: app.CompensationSucceeded,
		Err:                 cause,
	}
}

// compensate runs a compensating ledger call with bounded exponential backoff.
// Compensation must survive a dead request context, so it runs on a detached
// context with its own deadline.
func (s *SettlementService) compensate(ctx context.Context, compensation string, op func(context.Context) error) error {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var lastErr error
	for i := 0; i < s.compensationRetries; i++ {
		if i > 0 {
			delay := s.compensationDelay * time.Duration(1<<(i-1))
			select {
			case <-time.After(delay):
			case <-compCtx.Done():
				s.metrics.RecordCompensation(compensation, "failed")
				return compCtx.Err()
			}
		}

		if lastErr = op(compCtx); lastErr == nil {
			s.metrics.RecordCompensation(compensation, "succeeded")
			return nil
		}
		if !app.IsRetryable(lastErr) {
			break
		}
		s.logger.Warn("compensation retry",
			"compensation", compensation,
			"attempt", i+1,
			"error", lastErr)
	}

	s.metrics.RecordCompensation(compensation, "failed")
	return lastErr
}

// The journal is telemetry: write failures are logged, never fatal.
func (s *SettlementService) recordAttempt(ctx context.Context, attempt *app.SettlementAttempt) {
	if err := s.journal.Record(ctx, attempt); err != nil {
		s.logger.Error("attempt journal record failed", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *SettlementService) updateAttempt(ctx context.Context, attempt *app.SettlementAttempt) {
	if err := s.journal.Update(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.Error("attempt journal update failed", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *SettlementService) publishOutcome(ctx context.Context, attempt *app.SettlementAttempt) {
	event := app.SettlementEvent{
		AttemptID:     attempt.ID,
		ApplicationID: attempt.ApplicationID,
		PaymentID:     attempt.PaymentID,
		Outcome:       string(attempt.State),
		AmountCents:   attempt.AmountCents,
		Currency:      attempt.Currency,
		OccurredAt:    time.Now(),
	}
	if err := s.events.PublishSettlement(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("settlement event publish failed", "attempt_id", attempt.ID, "error", err)
	}
}

func (s *SettlementService) logAttemptFailure(attempt *app.SettlementAttempt, err error) {
	setErr, ok := app.IsSettlementError(err)
	if ok && setErr.Fatal() {
		s.logger.Error("settlement attempt needs manual reconciliation",
			"attempt_id", attempt.ID,
			"application_id", attempt.ApplicationID,
			"payment_id", attempt.PaymentID,
			"state", string(attempt.State),
			"error", err)
		return
	}
	s.logger.Warn("settlement attempt failed",
		"attempt_id", attempt.ID,
		"application_id", attempt.ApplicationID,
		"state", string(attempt.State),
		"error", err)
}
