package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/domain"
	"github.com/taskora/settlement-service/internal/infrastructure/metrics"
)

// StatusService applies role-gated status transitions against the application
// backend. Every change goes through the transition table; ACCEPTED has no
// incoming table edge, so Transition can never produce it. Acceptance happens
// only through the settlement saga, which calls accept after capture.
type StatusService struct {
	backend app.BackendClient
	events  app.EventPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewStatusService(backend app.BackendClient, events app.EventPublisher, m *metrics.Metrics, logger *slog.Logger) *StatusService {
	return &StatusService{
		backend: backend,
		events:  events,
		metrics: m,
		logger:  logger,
	}
}

// Transition validates the caller's role, then the table edge, then persists
// the change through the backend. The role check runs first: an actor who may
// never set the target status gets an authorization error even when the edge
// itself is also absent.
func (s *StatusService) Transition(ctx context.Context, cmd TransitionCommand) (*domain.TaskApplication, error) {
	application, err := s.backend.GetApplication(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	updated, err := s.apply(ctx, application, cmd.Target, cmd.Role)
	if err != nil {
		s.metrics.RecordTransition(string(cmd.Target), "rejected")
		return nil, err
	}

	s.metrics.RecordTransition(string(cmd.Target), "applied")
	return updated, nil
}

// Get returns the current state of one application.
func (s *StatusService) Get(ctx context.Context, applicationID string) (*domain.TaskApplication, error) {
	return s.backend.GetApplication(ctx, applicationID)
}

// AllowedNext returns the statuses the given role could move the application
// to from its current status.
func (s *StatusService) AllowedNext(ctx context.Context, applicationID string, role domain.Role) ([]domain.ApplicationStatus, error) {
	application, err := s.backend.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	var reachable []domain.ApplicationStatus
	for _, next := range domain.AllowedNextStatuses(application.Status) {
		if domain.RoleMayApply(role, next) {
			reachable = append(reachable, next)
		}
	}
	return reachable, nil
}

func (s *StatusService) ListByTask(ctx context.Context, taskID string) ([]*domain.TaskApplication, error) {
	return s.backend.ListByTask(ctx, taskID)
}

func (s *StatusService) ListByCompany(ctx context.Context, companyID string) ([]*domain.TaskApplication, error) {
	return s.backend.ListByCompany(ctx, companyID)
}

func (s *StatusService) ListByDeveloper(ctx context.Context, developerID string) ([]*domain.TaskApplication, error) {
	return s.backend.ListByDeveloper(ctx, developerID)
}

// accept moves a SHORTLISTED application to ACCEPTED. It bypasses the table
// edge check (the table has no edge into ACCEPTED) but keeps the role gate and
// requires the application to still be SHORTLISTED. Only the settlement
// coordinator calls this, after funds are captured.
func (s *StatusService) accept(ctx context.Context, application *domain.TaskApplication, role domain.Role) (*domain.TaskApplication, error) {
	if !domain.RoleMayApply(role, domain.StatusAccepted) {
		return nil, domain.NewUnauthorizedRoleError(role, domain.StatusAccepted)
	}
	if application.Status != domain.StatusShortlisted {
		return nil, domain.NewInvalidTransitionError(application.Status, domain.StatusAccepted)
	}

	updated, err := s.persist(ctx, application, domain.StatusAccepted, role)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(domain.StatusAccepted), "applied")
	return updated, nil
}

func (s *StatusService) apply(ctx context.Context, application *domain.TaskApplication, target domain.ApplicationStatus, role domain.Role) (*domain.TaskApplication, error) {
	if !domain.RoleMayApply(role, target) {
		return nil, domain.NewUnauthorizedRoleError(role, target)
	}
	if !domain.CanTransition(application.Status, target) {
		return nil, domain.NewInvalidTransitionError(application.Status, target)
	}
	return s.persist(ctx, application, target, role)
}

// persist writes the new status through the backend and emits the transition
// event. The event goes out only after the backend acknowledged the change;
// publish failures are logged and never fail the transition.
func (s *StatusService) persist(ctx context.Context, application *domain.TaskApplication, target domain.ApplicationStatus, role domain.Role) (*domain.TaskApplication, error) {
	from := application.Status

	updated, err := s.backend.UpdateStatus(ctx, application.ID, target, role)
	if err != nil {
		return nil, app.NewPersistenceFailedError(err)
	}

	event := app.TransitionEvent{
		ApplicationID: updated.ID,
		TaskID:        updated.TaskID,
		CompanyID:     updated.CompanyID,
		DeveloperID:   updated.DeveloperID,
		FromStatus:    string(from),
		ToStatus:      string(target),
		Role:          string(role),
		OccurredAt:    time.Now(),
	}
	if err := s.events.PublishTransition(ctx, event); err != nil {
		s.logger.Warn("transition event publish failed",
			"application_id", updated.ID,
			"to_status", string(target),
			"error", err)
	}

	s.logger.Info("application status changed",
		"application_id", updated.ID,
		"from_status", string(from),
		"to_status", string(target),
		"role", string(role))

	return updated, nil
}
