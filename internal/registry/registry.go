// Package registry implements the running-jobs registry: the single
// process-wide mapping from job id to a shared child-process handle that
// both the engine's cancellation path and the consumer goroutine's wait path
// hold.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/transfer"
)

// Registry guards job_id → *transfer.Handle with a mutex. Only the engine
// mutates it: insert on start, remove on termination, read on cancellation.
// The mutex is never held across blocking I/O.
type Registry struct {
	mu      sync.Mutex
	running map[uuid.UUID]*transfer.Handle
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{running: make(map[uuid.UUID]*transfer.Handle)}
}

// TryInsert inserts the handle for jobID iff not already present, returning
// false if the job was already running. This check-then-insert is the
// registry's serialization point for concurrent execute calls on the same
// job id.
func (r *Registry) TryInsert(jobID uuid.UUID, h *transfer.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.running[jobID]; exists {
		return false
	}
	r.running[jobID] = h
	return true
}

// Remove deletes jobID's entry, if any.
func (r *Registry) Remove(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, jobID)
}

// Cancel signals termination of the subprocess registered for jobID. It
// returns false (a no-op) if jobID is not currently running — best-effort
// semantics.
func (r *Registry) Cancel(jobID uuid.UUID) bool {
	r.mu.Lock()
	h, ok := r.running[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	_ = h.Cancel()
	return true
}

// IsRunning reports whether jobID currently has a registry entry.
func (r *Registry) IsRunning(jobID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[jobID]
	return ok
}

// Len reports how many jobs are currently running.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
