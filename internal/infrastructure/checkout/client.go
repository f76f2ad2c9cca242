// Package checkout adapts the hosted checkout gateway to a single blocking
// Collect call.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/config"
)

// Session statuses reported by the gateway.
const (
	sessionPending   = "pending"
	sessionPaid      = "paid"
	sessionDismissed = "dismissed"
	sessionFailed    = "failed"
	sessionExpired   = "expired"
)

type HTTPCheckoutGateway struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewCheckoutGateway(cfg config.CheckoutConfig) app.CheckoutGateway {
	return &HTTPCheckoutGateway{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

type sessionRequest struct {
	ExternalOrderID string `json:"external_order_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
}

type sessionResponse struct {
	SessionID        string     `json:"session_id"`
	Status           string     `json:"status"`
	PaymentReference string     `json:"payment_reference"`
	FailureMessage   string     `json:"failure_message"`
	PaidAt           *time.Time `json:"paid_at"`
}

// Collect opens a checkout session for the held order and blocks until the
// payer finishes with it. The returned error is a CheckoutError for every
// payer-side outcome; transport failures come back as plain errors.
func (g *HTTPCheckoutGateway) Collect(ctx context.Context, req app.CollectRequest) (*app.CollectResult, error) {
	session, err := g.createSession(ctx, req)
	if err != nil {
		return nil, dismissalIfCancelled(ctx, err)
	}

	deadline := time.Now().Add(g.pollTimeout)
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		if result, done, err := g.resolve(session); done {
			return result, err
		}

		if time.Now().After(deadline) {
			return nil, &app.CheckoutError{
				Reason:  app.CheckoutReasonExpired,
				Message: fmt.Sprintf("session %s still %s after %s", session.SessionID, session.Status, g.pollTimeout),
			}
		}

		select {
		case <-ctx.Done():
			// Caller walked away; treat the same as the payer dismissing.
			return nil, &app.CheckoutError{
				Reason:  app.CheckoutReasonDismissed,
				Message: fmt.Sprintf("checkout abandoned: %v", ctx.Err()),
			}
		case <-ticker.C:
		}

		session, err = g.getSession(ctx, session.SessionID)
		if err != nil {
			return nil, dismissalIfCancelled(ctx, err)
		}
	}
}

// dismissalIfCancelled converts errors caused by the caller giving up into
// the dismissal outcome the coordinator compensates for.
func dismissalIfCancelled(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &app.CheckoutError{
			Reason:  app.CheckoutReasonDismissed,
			Message: fmt.Sprintf("checkout abandoned: %v", ctx.Err()),
		}
	}
	return err
}

// resolve maps a terminal session status to the Collect outcome.
func (g *HTTPCheckoutGateway) resolve(session *sessionResponse) (*app.CollectResult, bool, error) {
	switch session.Status {
	case sessionPaid:
		paidAt := time.Now()
		if session.PaidAt != nil {
			paidAt = *session.PaidAt
		}
		return &app.CollectResult{
			GatewayReference: session.PaymentReference,
			PaidAt:           paidAt,
		}, true, nil
	case sessionDismissed:
		return nil, true, &app.CheckoutError{
			Reason:  app.CheckoutReasonDismissed,
			Message: "payer dismissed the checkout",
		}
	case sessionFailed:
		msg := session.FailureMessage
		if msg == "" {
			msg = "payment failed"
		}
		return nil, true, &app.CheckoutError{
			Reason:  app.CheckoutReasonFailed,
			Message: msg,
		}
	case sessionExpired:
		return nil, true, &app.CheckoutError{
			Reason:  app.CheckoutReasonExpired,
			Message: "checkout session expired",
		}
	}
	return nil, false, nil
}

func (g *HTTPCheckoutGateway) createSession(ctx context.Context, req app.CollectRequest) (*sessionResponse, error) {
	body, err := json.Marshal(sessionRequest{
		ExternalOrderID: req.ExternalOrderID,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/sessions", g.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return g.send(httpReq)
}

func (g *HTTPCheckoutGateway) getSession(ctx context.Context, sessionID string) (*sessionResponse, error) {
	url := fmt.Sprintf("%s/api/v1/sessions/%s", g.baseURL, sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	return g.send(httpReq)
}

func (g *HTTPCheckoutGateway) send(req *http.Request) (*sessionResponse, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("checkout gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &session, nil
}
