// Package handlers wires the HTTP API to the status and settlement services.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/taskora/settlement-service/internal/app/services"
)

type Handlers struct {
	statusService     *services.StatusService
	settlementService *services.SettlementService
	logger            *slog.Logger
}

func NewHandlers(
	statusService *services.StatusService,
	settlementService *services.SettlementService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		statusService:     statusService,
		settlementService: settlementService,
		logger:            logger,
	}
}

// RegisterRoutes mounts every endpoint on the mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/applications/{id}/transitions", h.Transition)
	mux.HandleFunc("POST /api/v1/applications/{id}/settlement", h.Settle)
	mux.HandleFunc("GET /api/v1/applications/{id}", h.GetApplication)
	mux.HandleFunc("GET /api/v1/applications/{id}/transitions", h.AllowedTransitions)
	mux.HandleFunc("GET /api/v1/tasks/{id}/applications", h.ListByTask)
	mux.HandleFunc("GET /api/v1/companies/{id}/applications", h.ListByCompany)
	mux.HandleFunc("GET /api/v1/developers/{id}/applications", h.ListByDeveloper)
	mux.HandleFunc("GET /healthz", h.Health)
}
