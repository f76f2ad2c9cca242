package handlers

import (
	"context"
	"net/http"

	"github.com/taskora/settlement-service/internal/domain"
	"github.com/taskora/settlement-service/internal/interfaces/rest"
)

func (h *Handlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	application, err := h.statusService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.ToApplicationView(application))
}

// AllowedTransitions reports where the given role could move the application
// next. Role comes from the query string since this is a read.
func (h *Handlers) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	next, err := h.statusService.AllowedNext(r.Context(), r.PathValue("id"), role)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	statuses := make([]string, 0, len(next))
	for _, s := range next {
		statuses = append(statuses, string(s))
	}
	rest.WriteJSON(w, http.StatusOK, map[string]any{"allowed_statuses": statuses})
}

func (h *Handlers) ListByTask(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, id string) ([]*domain.TaskApplication, error) {
		return h.statusService.ListByTask(ctx, id)
	})
}

func (h *Handlers) ListByCompany(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, id string) ([]*domain.TaskApplication, error) {
		return h.statusService.ListByCompany(ctx, id)
	})
}

func (h *Handlers) ListByDeveloper(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, id string) ([]*domain.TaskApplication, error) {
		return h.statusService.ListByDeveloper(ctx, id)
	})
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request, query func(context.Context, string) ([]*domain.TaskApplication, error)) {
	applications, err := query(r.Context(), r.PathValue("id"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	views := make([]rest.ApplicationView, 0, len(applications))
	for _, a := range applications {
		views = append(views, rest.ToApplicationView(a))
	}
	rest.WriteJSON(w, http.StatusOK, views)
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
