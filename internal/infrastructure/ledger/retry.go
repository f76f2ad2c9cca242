package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/config"
)

// RetryLedgerClient wraps a LedgerClient with bounded retries for transient
// failures. Callers pass the same idempotency key on every try, so a retried
// write is safe on the ledger side.
type RetryLedgerClient struct {
	inner      app.LedgerClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryLedgerClient(inner app.LedgerClient, cfg config.RetryConfig) app.LedgerClient {
	return &RetryLedgerClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: cfg.MaxRetries,
	}
}

func (r *RetryLedgerClient) CreateHold(ctx context.Context, req app.HoldRequest, idempotencyKey string) (*app.HoldResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*app.HoldResponse, error) {
			return r.inner.CreateHold(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryLedgerClient) Capture(ctx context.Context, req app.CaptureRequest, idempotencyKey string) (*app.CaptureResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*app.CaptureResponse, error) {
			return r.inner.Capture(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryLedgerClient) CancelHold(ctx context.Context, req app.CancelRequest, idempotencyKey string) (*app.CancelResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*app.CancelResponse, error) {
			return r.inner.CancelHold(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryLedgerClient) Refund(ctx context.Context, req app.RefundRequest, idempotencyKey string) (*app.RefundResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*app.RefundResponse, error) {
			return r.inner.Refund(ctx, req, idempotencyKey)
		},
	)
}

func (r *RetryLedgerClient) GetPayment(ctx context.Context, paymentID string) (*app.PaymentStatusResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*app.PaymentStatusResponse, error) {
			return r.inner.GetPayment(ctx, paymentID)
		},
	)
}

func retry[T any](r *RetryLedgerClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var ledgerErr *app.LedgerError
	if errors.As(err, &ledgerErr) {
		if ledgerErr.StatusCode >= 500 {
			return true
		}

		if ledgerErr.Code == "internal_error" {
			return true
		}

		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// Transport-level failures (connection refused, timeouts) are retryable.
	return true
}

// Backoff calculation with exponential delay and jitter.
func (r *RetryLedgerClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(250)) * time.Millisecond

	return base + jitter
}
