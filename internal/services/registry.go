package services

import (
	"context"
	"sync"
)

// ActiveScanRegistry tracks one cancel handle per running job so a caller can
// stop it. It is injected into the scan service rather than living as a
// package singleton, so tests can provide their own instance.
type ActiveScanRegistry struct {
	mu      sync.Mutex
	handles map[string]context.CancelFunc
}

func NewActiveScanRegistry() *ActiveScanRegistry {
	return &ActiveScanRegistry{handles: make(map[string]context.CancelFunc)}
}

// Register stores the cancel handle for a job entering execution
func (r *ActiveScanRegistry) Register(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[jobID] = cancel
}

// Cancel fires the job's cancel handle and removes it. Returns false when the
// job has no registered handle (already settled, or a pure network call with
// nothing killable - cancellation is best effort).
func (r *ActiveScanRegistry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.handles[jobID]
	if !ok {
		return false
	}
	delete(r.handles, jobID)
	cancel()
	return true
}

// Done removes a settled job's handle without firing it
func (r *ActiveScanRegistry) Done(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.handles[jobID]; ok {
		delete(r.handles, jobID)
		_ = cancel // settled jobs release their context via the deferred cancel
	}
}

// Active returns the ids of jobs currently holding a handle
func (r *ActiveScanRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of in-flight jobs
func (r *ActiveScanRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
