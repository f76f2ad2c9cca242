package services

import (
	"sync"
)

// attemptRegistry is the per-application mutual-exclusion marker. An entry
// exists from just before the hold request until the attempt reaches a
// terminal state with compensation resolved. It is process-local on purpose:
// the coordinator owns every in-flight attempt, and the journal gives
// operators cross-process visibility.
type attemptRegistry struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newAttemptRegistry() *attemptRegistry {
	return &attemptRegistry{inFlight: make(map[string]struct{})}
}

// begin marks an application as having an attempt in flight. It returns false
// if a prior attempt has not terminated yet.
func (r *attemptRegistry) begin(applicationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[applicationID]; busy {
		return false
	}
	r.inFlight[applicationID] = struct{}{}
	return true
}

func (r *attemptRegistry) end(applicationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, applicationID)
}
