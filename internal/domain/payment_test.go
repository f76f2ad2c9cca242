package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskora/settlement-service/internal/domain"
)

func newCreatedTransaction() *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		PaymentID:     "pay-1",
		ApplicationID: "app-1",
		TaskID:        "task-1",
		AmountCents:   250_000,
		Currency:      "USD",
		Status:        domain.TxCreated,
		CreatedAt:     time.Now(),
	}
}

func TestPaymentTransaction_HappyPath(t *testing.T) {
	tx := newCreatedTransaction()

	require.NoError(t, tx.MarkHeld("ord-77", time.Now()))
	assert.Equal(t, domain.TxHeld, tx.Status)
	assert.Equal(t, "ord-77", tx.ExternalOrderID)
	assert.NotNil(t, tx.HeldAt)

	require.NoError(t, tx.MarkCaptured("gw-ref-9", time.Now()))
	assert.Equal(t, domain.TxCaptured, tx.Status)
	assert.Equal(t, "gw-ref-9", *tx.GatewayReference)
	assert.True(t, tx.IsTerminal())
}

func TestPaymentTransaction_CapturedOnlyFromHeld(t *testing.T) {
	tx := newCreatedTransaction()

	err := tx.MarkCaptured("gw-ref", time.Now())
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTxTransition))
	assert.Equal(t, domain.TxCreated, tx.Status)
}

func TestPaymentTransaction_RefundedOnlyFromCaptured(t *testing.T) {
	tx := newCreatedTransaction()
	require.NoError(t, tx.MarkHeld("ord-1", time.Now()))

	err := tx.MarkRefunded(time.Now())
	require.Error(t, err)
	assert.Equal(t, domain.TxHeld, tx.Status)

	require.NoError(t, tx.MarkCaptured("gw-ref", time.Now()))
	require.NoError(t, tx.MarkRefunded(time.Now()))
	assert.Equal(t, domain.TxRefunded, tx.Status)
}

func TestPaymentTransaction_CancelledOnlyFromCreatedOrHeld(t *testing.T) {
	created := newCreatedTransaction()
	require.NoError(t, created.MarkCancelled(time.Now()))
	assert.Equal(t, domain.TxCancelled, created.Status)

	held := newCreatedTransaction()
	require.NoError(t, held.MarkHeld("ord-1", time.Now()))
	require.NoError(t, held.MarkCancelled(time.Now()))

	captured := newCreatedTransaction()
	require.NoError(t, captured.MarkHeld("ord-2", time.Now()))
	require.NoError(t, captured.MarkCaptured("gw-ref", time.Now()))
	err := captured.MarkCancelled(time.Now())
	require.Error(t, err)
	assert.Equal(t, domain.TxCaptured, captured.Status)
}

func TestPaymentTransaction_TerminalStatesRejectEverything(t *testing.T) {
	tx := newCreatedTransaction()
	require.NoError(t, tx.MarkFailed())

	assert.Error(t, tx.MarkHeld("ord", time.Now()))
	assert.Error(t, tx.MarkCaptured("ref", time.Now()))
	assert.Error(t, tx.MarkCancelled(time.Now()))
	assert.Error(t, tx.MarkRefunded(time.Now()))
	assert.True(t, tx.IsTerminal())
}
