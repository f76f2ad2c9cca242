package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/app/services"
	"github.com/taskora/settlement-service/internal/domain"
	"github.com/taskora/settlement-service/internal/interfaces/rest"
)

type settleRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Role        string `json:"role"`
}

type settleResponse struct {
	Application rest.ApplicationView `json:"application"`
	Transaction rest.TransactionView `json:"transaction"`
}

// Settle runs the full settlement saga: hold, checkout, capture, accept. The
// request blocks until the payer finishes with the checkout or the attempt
// fails.
func (h *Handlers) Settle(w http.ResponseWriter, r *http.Request) {
	applicationID := r.PathValue("id")

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, app.NewInvalidInputError(err), h.logger)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.settlementService.AcceptWithPayment(r.Context(), services.AcceptPaymentCommand{
		ApplicationID: applicationID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		Role:          role,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, settleResponse{
		Application: rest.ToApplicationView(result.Application),
		Transaction: rest.ToTransactionView(result.Transaction),
	})
}
