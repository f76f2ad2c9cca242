package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/app/services"
	"github.com/taskora/settlement-service/internal/domain"
	"github.com/taskora/settlement-service/internal/interfaces/rest"
)

type transitionRequest struct {
	TargetStatus string `json:"target_status"`
	Role         string `json:"role"`
}

// Transition applies one table-governed status change. ACCEPTED is not
// reachable here; acceptance goes through the settlement endpoint.
func (h *Handlers) Transition(w http.ResponseWriter, r *http.Request) {
	applicationID := r.PathValue("id")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, app.NewInvalidInputError(err), h.logger)
		return
	}

	target, err := domain.ParseApplicationStatus(req.TargetStatus)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	application, err := h.statusService.Transition(r.Context(), services.TransitionCommand{
		ApplicationID: applicationID,
		Target:        target,
		Role:          role,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToApplicationView(application))
}
