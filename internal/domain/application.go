// Package domain encodes the task application and payment transaction entities.
package domain

import (
	"time"
)

// Role identifies the actor attempting a status transition.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDeveloper Role = "DEVELOPER"
	RoleCorporate Role = "CORPORATE"
)

// ParseRole validates a raw role string coming from the auth provider.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleDeveloper, RoleCorporate:
		return Role(raw), nil
	default:
		return "", NewUnknownRoleError(raw)
	}
}

// ApplicationStatus represents the current state of a task application in its lifecycle
type ApplicationStatus string

const (
	StatusApplied     ApplicationStatus = "APPLIED"
	StatusShortlisted ApplicationStatus = "SHORTLISTED"
	StatusAccepted    ApplicationStatus = "ACCEPTED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"
	StatusInProgress  ApplicationStatus = "IN_PROGRESS"
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusCompleted   ApplicationStatus = "COMPLETED"
	StatusCancelled   ApplicationStatus = "CANCELLED"
)

// ParseApplicationStatus validates a raw status string from a request or the backend.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	switch ApplicationStatus(raw) {
	case StatusApplied, StatusShortlisted, StatusAccepted, StatusRejected,
		StatusWithdrawn, StatusInProgress, StatusSubmitted, StatusCompleted, StatusCancelled:
		return ApplicationStatus(raw), nil
	default:
		return "", NewUnknownStatusError(raw)
	}
}

// TaskApplication is a developer's application to a paid task. The status
// field only changes through the status service; the Application Backend is
// the system of record.
type TaskApplication struct {
	ID          string
	TaskID      string
	DeveloperID string
	CompanyID   string
	Status      ApplicationStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the application is in a permanent rest state.
func (a *TaskApplication) IsTerminal() bool {
	return len(AllowedNextStatuses(a.Status)) == 0
}
