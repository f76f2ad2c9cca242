package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/domain"
)

type settlementFixture struct {
	ledger   *mockLedgerClient
	checkout *mockCheckoutGateway
	backend  *mockBackendClient
	journal  *fakeJournal
	events   *fakePublisher
	svc      *SettlementService
}

func newSettlementFixture() *settlementFixture {
	f := &settlementFixture{
		ledger:   new(mockLedgerClient),
		checkout: new(mockCheckoutGateway),
		backend:  new(mockBackendClient),
		journal:  &fakeJournal{},
		events:   &fakePublisher{},
	}
	m := testMetrics()
	logger := testLogger()
	status := NewStatusService(f.backend, f.events, m, logger)
	f.svc = NewSettlementService(status, f.ledger, f.checkout, f.journal, f.events, m, logger).
		WithCompensationPolicy(3, time.Millisecond)
	return f
}

func acceptCommand() AcceptPaymentCommand {
	return AcceptPaymentCommand{
		ApplicationID: "app-1",
		AmountCents:   250000,
		Currency:      "USD",
		Role:          domain.RoleCorporate,
	}
}

func holdResponse() *app.HoldResponse {
	return &app.HoldResponse{
		PaymentID:       "pay-1",
		ExternalOrderID: "ord-1",
		AmountCents:     250000,
		Currency:        "USD",
		Breakdown:       domain.AmountBreakdown{TotalCents: 250000, FeeCents: 12500, NetCents: 237500},
		Status:          "HELD",
		HeldAt:          time.Now(),
	}
}

func captureResponse(status string) *app.CaptureResponse {
	return &app.CaptureResponse{PaymentID: "pay-1", Status: status, CapturedAt: time.Now()}
}

func retryableLedgerError() *app.LedgerError {
	return &app.LedgerError{Code: "internal_error", Message: "try later", StatusCode: http.StatusServiceUnavailable}
}

func TestAcceptWithPayment_Settles(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, app.CollectRequest{
		ExternalOrderID: "ord-1",
		AmountCents:     250000,
		Currency:        "USD",
	}).Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
	f.ledger.On("Capture", mock.Anything, app.CaptureRequest{
		PaymentID:        "pay-1",
		GatewayReference: "gw-1",
	}, mock.Anything).Return(captureResponse("CAPTURED"), nil)
	f.backend.On("UpdateStatus", mock.Anything, "app-1", domain.StatusAccepted, domain.RoleCorporate).
		Return(testApplication(domain.StatusAccepted), nil)

	result, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, result.Application.Status)
	assert.Equal(t, domain.TxCaptured, result.Transaction.Status)
	assert.Equal(t, "pay-1", result.Transaction.PaymentID)
	assert.Equal(t, int64(237500), result.Transaction.Breakdown.NetCents)

	attempt := f.journal.last()
	require.NotNil(t, attempt)
	assert.Equal(t, app.AttemptSettled, attempt.State)
	assert.Equal(t, app.CompensationNone, attempt.Compensation)
	assert.False(t, attempt.NeedsReconciliation())

	require.Len(t, f.events.settlements, 1)
	assert.Equal(t, string(app.AttemptSettled), f.events.settlements[0].Outcome)

	f.ledger.AssertExpectations(t)
	f.checkout.AssertExpectations(t)
	f.backend.AssertExpectations(t)
}

func TestAcceptWithPayment_GuardFailuresTouchNoExternalState(t *testing.T) {
	t.Run("developer may not accept", func(t *testing.T) {
		f := newSettlementFixture()
		f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)

		cmd := acceptCommand()
		cmd.Role = domain.RoleDeveloper
		_, err := f.svc.AcceptWithPayment(context.Background(), cmd)

		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnauthorizedRole))
		f.ledger.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything, mock.Anything)
		assert.Nil(t, f.journal.last())
	})

	t.Run("application must be shortlisted", func(t *testing.T) {
		f := newSettlementFixture()
		f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusApplied), nil)

		_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))
		f.ledger.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("amount must be positive", func(t *testing.T) {
		f := newSettlementFixture()

		cmd := acceptCommand()
		cmd.AmountCents = 0
		_, err := f.svc.AcceptWithPayment(context.Background(), cmd)

		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidAmount))
		f.backend.AssertNotCalled(t, "GetApplication", mock.Anything, mock.Anything)
	})
}

func TestAcceptWithPayment_HoldFailure(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &app.LedgerError{Code: "insufficient_funds", Message: "balance too low", StatusCode: http.StatusUnprocessableEntity})

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.Error(t, err)
	setErr, ok := app.IsSettlementError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeHoldCreationFailed, setErr.Code)
	assert.Equal(t, app.CompensationNotAttempted, setErr.CompensationOutcome)
	assert.False(t, setErr.Fatal())

	attempt := f.journal.last()
	require.NotNil(t, attempt)
	assert.Equal(t, app.AttemptHoldFailed, attempt.State)
	f.checkout.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything)
}

func TestAcceptWithPayment_CheckoutDismissed(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Return(nil, &app.CheckoutError{Reason: app.CheckoutReasonDismissed, Message: "payer closed the widget"})
	f.ledger.On("CancelHold", mock.Anything, app.CancelRequest{PaymentID: "pay-1"}, mock.Anything).
		Return(&app.CancelResponse{PaymentID: "pay-1", Status: "CANCELLED", CancelledAt: time.Now()}, nil)

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.Error(t, err)
	setErr, ok := app.IsSettlementError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeCheckoutFailed, setErr.Code)
	assert.Equal(t, app.CompensationCancelHold, setErr.Compensation)
	assert.Equal(t, app.CompensationSucceeded, setErr.CompensationOutcome)
	assert.Equal(t, http.StatusPaymentRequired, app.ToHTTPStatus(err))

	attempt := f.journal.last()
	require.NotNil(t, attempt)
	assert.Equal(t, app.AttemptCheckoutFailed, attempt.State)
	assert.False(t, attempt.NeedsReconciliation())

	f.ledger.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
	f.backend.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptWithPayment_CancelHoldExhaustsRetries(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Return(nil, &app.CheckoutError{Reason: app.CheckoutReasonFailed, Message: "card declined"})
	f.ledger.On("CancelHold", mock.Anything, mock.Anything, mock.Anything).Return(nil, retryableLedgerError())

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.Error(t, err)
	setErr, ok := app.IsSettlementError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeCancelHoldFailed, setErr.Code)
	assert.Equal(t, app.CompensationFailed, setErr.CompensationOutcome)
	assert.True(t, setErr.Fatal())
	assert.Error(t, setErr.CompensationErr)

	f.ledger.AssertNumberOfCalls(t, "CancelHold", 3)

	attempt := f.journal.last()
	require.NotNil(t, attempt)
	assert.Equal(t, app.AttemptCancelFailed, attempt.State)
	assert.True(t, attempt.NeedsReconciliation())
}

func TestAcceptWithPayment_CaptureVerificationFailsClosed(t *testing.T) {
	t.Run("capture call errors", func(t *testing.T) {
		f := newSettlementFixture()

		f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
		f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
		f.checkout.On("Collect", mock.Anything, mock.Anything).
			Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
		f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(nil, retryableLedgerError())

		_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

		require.Error(t, err)
		setErr, ok := app.IsSettlementError(err)
		require.True(t, ok)
		assert.Equal(t, app.ErrCodeCaptureVerificationFailed, setErr.Code)
		assert.True(t, setErr.Fatal())

		// No automatic compensation: the capture may have landed.
		f.ledger.AssertNotCalled(t, "CancelHold", mock.Anything, mock.Anything, mock.Anything)
		f.ledger.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)

		attempt := f.journal.last()
		require.NotNil(t, attempt)
		assert.Equal(t, app.AttemptCaptureUnverified, attempt.State)
		assert.True(t, attempt.NeedsReconciliation())
	})

	t.Run("ledger reports a non-captured status", func(t *testing.T) {
		f := newSettlementFixture()

		f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
		f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
		f.checkout.On("Collect", mock.Anything, mock.Anything).
			Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
		f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(captureResponse("PENDING"), nil)

		_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

		require.Error(t, err)
		setErr, ok := app.IsSettlementError(err)
		require.True(t, ok)
		assert.Equal(t, app.ErrCodeCaptureVerificationFailed, setErr.Code)
		f.backend.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAcceptWithPayment_AcceptFailureRefunds(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
	f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(captureResponse("CAPTURED"), nil)
	f.backend.On("UpdateStatus", mock.Anything, "app-1", domain.StatusAccepted, domain.RoleCorporate).
		Return(nil, errors.New("backend write rejected"))
	f.ledger.On("Refund", mock.Anything, app.RefundRequest{PaymentID: "pay-1"}, mock.Anything).
		Return(&app.RefundResponse{PaymentID: "pay-1", Status: "REFUNDED", RefundedAt: time.Now()}, nil)

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.Error(t, err)
	setErr, ok := app.IsSettlementError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeAcceptFailedAfterCapture, setErr.Code)
	assert.Equal(t, app.CompensationRefund, setErr.Compensation)
	assert.Equal(t, app.CompensationSucceeded, setErr.CompensationOutcome)
	assert.False(t, setErr.Fatal())

	attempt := f.journal.last()
	require.NotNil(t, attempt)
	assert.Equal(t, app.AttemptRefunded, attempt.State)
	assert.False(t, attempt.NeedsReconciliation())
}

func TestAcceptWithPayment_RefundRetriesTransientFailures(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
	f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(captureResponse("CAPTURED"), nil)
	f.backend.On("UpdateStatus", mock.Anything, "app-1", domain.StatusAccepted, domain.RoleCorporate).
		Return(nil, errors.New("backend write rejected"))
	f.ledger.On("Refund", mock.Anything, mock.Anything, mock.Anything).Return(nil, retryableLedgerError()).Twice()
	f.ledger.On("Refund", mock.Anything, mock.Anything, mock.Anything).
		Return(&app.RefundResponse{PaymentID: "pay-1", Status: "REFUNDED", RefundedAt: time.Now()}, nil).Once()

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.Error(t, err)
	setErr, ok := app.IsSettlementError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeAcceptFailedAfterCapture, setErr.Code)
	assert.Equal(t, app.CompensationSucceeded, setErr.CompensationOutcome)
	f.ledger.AssertNumberOfCalls(t, "Refund", 3)
}

func TestAcceptWithPayment_RefundExhaustsRetries(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
	f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(captureResponse("CAPTURED"), nil)
	f.backend.On("UpdateStatus", mock.Anything, "app-1", domain.StatusAccepted, domain.RoleCorporate).
		Return(nil, errors.New("backend write rejected"))
	f.ledger.On("Refund", mock.Anything, mock.Anything, mock.Anything).Return(nil, retryableLedgerError())

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())

	require.Error(t, err)
	setErr, ok := app.IsSettlementError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeRefundFailed, setErr.Code)
	assert.True(t, setErr.Fatal())
	f.ledger.AssertNumberOfCalls(t, "Refund", 3)

	attempt := f.journal.last()
	require.NotNil(t, attempt)
	assert.Equal(t, app.AttemptRefundFailed, attempt.State)
	assert.True(t, attempt.NeedsReconciliation())
}

func TestAcceptWithPayment_ConcurrentAttemptRejected(t *testing.T) {
	f := newSettlementFixture()

	entered := make(chan struct{})
	release := make(chan struct{})

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil)
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Run(func(_ mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
	f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(captureResponse("CAPTURED"), nil)
	f.backend.On("UpdateStatus", mock.Anything, "app-1", domain.StatusAccepted, domain.RoleCorporate).
		Return(testApplication(domain.StatusAccepted), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())
		assert.NoError(t, err)
	}()

	<-entered
	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())
	close(release)
	wg.Wait()

	require.Error(t, err)
	svcErr, ok := app.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, app.ErrCodeAttemptInProgress, svcErr.Code)
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus)

	// Only the first attempt reached the ledger.
	f.ledger.AssertNumberOfCalls(t, "CreateHold", 1)
}

func TestAcceptWithPayment_RegistryReleasedAfterFailure(t *testing.T) {
	f := newSettlementFixture()

	f.backend.On("GetApplication", mock.Anything, "app-1").Return(testApplication(domain.StatusShortlisted), nil)
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, retryableLedgerError()).Once()
	f.ledger.On("CreateHold", mock.Anything, mock.Anything, mock.Anything).Return(holdResponse(), nil).Once()
	f.checkout.On("Collect", mock.Anything, mock.Anything).
		Return(&app.CollectResult{GatewayReference: "gw-1", PaidAt: time.Now()}, nil)
	f.ledger.On("Capture", mock.Anything, mock.Anything, mock.Anything).Return(captureResponse("CAPTURED"), nil)
	f.backend.On("UpdateStatus", mock.Anything, "app-1", domain.StatusAccepted, domain.RoleCorporate).
		Return(testApplication(domain.StatusAccepted), nil)

	_, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())
	require.Error(t, err)

	// The failed attempt released the marker; a fresh attempt goes through.
	result, err := f.svc.AcceptWithPayment(context.Background(), acceptCommand())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, result.Application.Status)
}

func TestAttemptRegistry(t *testing.T) {
	r := newAttemptRegistry()

	require.True(t, r.begin("app-1"))
	assert.False(t, r.begin("app-1"))
	assert.True(t, r.begin("app-2"))

	r.end("app-1")
	assert.True(t, r.begin("app-1"))
}
