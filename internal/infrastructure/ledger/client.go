// Package ledger implements the HTTP client for the payment ledger backend.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/config"
)

type HTTPLedgerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLedgerClient(cfg config.LedgerConfig) app.LedgerClient {
	return &HTTPLedgerClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *HTTPLedgerClient) CreateHold(ctx context.Context, req app.HoldRequest, idempotencyKey string) (*app.HoldResponse, error) {
	url := fmt.Sprintf("%s/api/v1/holds", c.baseURL)
	return sendRequest[app.HoldRequest, app.HoldResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPLedgerClient) Capture(ctx context.Context, req app.CaptureRequest, idempotencyKey string) (*app.CaptureResponse, error) {
	url := fmt.Sprintf("%s/api/v1/captures", c.baseURL)
	return sendRequest[app.CaptureRequest, app.CaptureResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPLedgerClient) CancelHold(ctx context.Context, req app.CancelRequest, idempotencyKey string) (*app.CancelResponse, error) {
	url := fmt.Sprintf("%s/api/v1/cancellations", c.baseURL)
	return sendRequest[app.CancelRequest, app.CancelResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPLedgerClient) Refund(ctx context.Context, req app.RefundRequest, idempotencyKey string) (*app.RefundResponse, error) {
	url := fmt.Sprintf("%s/api/v1/refunds", c.baseURL)
	return sendRequest[app.RefundRequest, app.RefundResponse](c, ctx, http.MethodPost, url, &req, idempotencyKey)
}

func (c *HTTPLedgerClient) GetPayment(ctx context.Context, paymentID string) (*app.PaymentStatusResponse, error) {
	url := fmt.Sprintf("%s/api/v1/payments/%s", c.baseURL, paymentID)
	return sendRequest[any, app.PaymentStatusResponse](c, ctx, http.MethodGet, url, nil, "")
}

type ledgerErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func sendRequest[Req any, Resp any](c *HTTPLedgerClient, ctx context.Context, method, url string, reqBody *Req, idempotencyKey string) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp ledgerErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("ledger returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, &app.LedgerError{
			Code:       errResp.Err,
			Message:    errResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var ledgerResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&ledgerResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &ledgerResp, nil
}
