package bridge

import (
	"errors"
	"sync"
)

// ErrDuplicateCall indicates a bridge is already registered for the call.
var ErrDuplicateCall = errors.New("a bridge is already active for this call")

// Registry tracks the live bridges by call ID. A second attach for the same
// call is rejected rather than displacing the active session.
type Registry struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]*Bridge)}
}

// Add registers a bridge under its call ID. Returns ErrDuplicateCall if one
// is already present.
func (r *Registry) Add(callID string, b *Bridge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bridges[callID]; exists {
		return ErrDuplicateCall
	}
	r.bridges[callID] = b
	return nil
}

// Remove drops the registration for a call. Removing an absent call is a
// no-op.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bridges, callID)
}

// Get returns the bridge for a call, or nil.
func (r *Registry) Get(callID string) *Bridge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bridges[callID]
}

// Count reports the number of live bridges.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bridges)
}

// Snapshot returns the call IDs of all live bridges.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.bridges))
	for id := range r.bridges {
		ids = append(ids, id)
	}
	return ids
}
