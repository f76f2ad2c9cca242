package domain

// allowedTransitions defines the valid status transitions. The key is the
// current status, the value the set of statuses reachable from it.
//
// SHORTLISTED has no edge to ACCEPTED on purpose: acceptance is gated behind a
// successful payment capture and is reachable only through the settlement
// service, never through a direct transition call.
var allowedTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusApplied:     {StatusShortlisted, StatusRejected, StatusWithdrawn},
	StatusShortlisted: {},
	StatusAccepted:    {StatusInProgress},
	StatusInProgress:  {StatusSubmitted, StatusCancelled},
	StatusSubmitted:   {StatusCompleted, StatusRejected},
	StatusWithdrawn:   {},
	StatusRejected:    {},
	StatusCompleted:   {},
	StatusCancelled:   {},
}

// rolePermissions lists the target statuses each role may set. ADMIN is
// handled separately and may set everything.
var rolePermissions = map[Role][]ApplicationStatus{
	RoleDeveloper: {StatusApplied, StatusWithdrawn, StatusInProgress, StatusSubmitted},
	RoleCorporate: {StatusShortlisted, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted},
}

// AllowedNextStatuses returns the statuses reachable from current. Terminal
// statuses return an empty set.
func AllowedNextStatuses(current ApplicationStatus) []ApplicationStatus {
	next, ok := allowedTransitions[current]
	if !ok {
		return nil
	}
	out := make([]ApplicationStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether the transition table has an edge from one
// status to another.
func CanTransition(from, to ApplicationStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RoleMayApply reports whether the role is authorized to set the target status.
func RoleMayApply(role Role, target ApplicationStatus) bool {
	if role == RoleAdmin {
		return true
	}
	for _, s := range rolePermissions[role] {
		if s == target {
			return true
		}
	}
	return false
}
