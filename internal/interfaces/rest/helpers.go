// Package rest holds the response envelope and view models for the HTTP API.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/domain"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// ApplicationView is the wire representation of a task application.
type ApplicationView struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	DeveloperID string    `json:"developer_id"`
	CompanyID   string    `json:"company_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToApplicationView(a *domain.TaskApplication) ApplicationView {
	return ApplicationView{
		ID:          a.ID,
		TaskID:      a.TaskID,
		DeveloperID: a.DeveloperID,
		CompanyID:   a.CompanyID,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// TransactionView is the wire representation of a settlement's money trail.
type TransactionView struct {
	PaymentID       string                 `json:"payment_id"`
	ExternalOrderID string                 `json:"external_order_id"`
	Status          string                 `json:"status"`
	AmountCents     int64                  `json:"amount_cents"`
	Currency        string                 `json:"currency"`
	Breakdown       domain.AmountBreakdown `json:"amount_breakdown"`
	GatewayRef      string                 `json:"gateway_reference,omitempty"`
	CapturedAt      *time.Time             `json:"captured_at,omitempty"`
}

func ToTransactionView(t *domain.PaymentTransaction) TransactionView {
	view := TransactionView{
		PaymentID:       t.PaymentID,
		ExternalOrderID: t.ExternalOrderID,
		Status:          string(t.Status),
		AmountCents:     t.AmountCents,
		Currency:        t.Currency,
		Breakdown:       t.Breakdown,
		CapturedAt:      t.CapturedAt,
	}
	if t.GatewayReference != nil {
		view.GatewayRef = *t.GatewayReference
	}
	return view
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// WriteError maps service errors to HTTP responses.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode := app.ToHTTPStatus(err)
	errorCode := app.ToErrorCode(err)

	response := ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    errorCode,
			Message: err.Error(),
		},
	}

	if setErr, ok := app.IsSettlementError(err); ok {
		response.Error.Details = map[string]string{
			"step":                 setErr.Step,
			"compensation":         setErr.Compensation,
			"compensation_outcome": setErr.CompensationOutcome,
		}
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "code", errorCode, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
