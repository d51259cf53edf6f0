package giveaway

import "sync"

// Registry is the deduplicated, insertion-ordered set of entrants for the
// current session. Mutations are serialized by the owning session; the
// internal lock only guards snapshots taken concurrently with an insert.
type Registry struct {
	mu      sync.RWMutex
	byID    map[int64]int
	ordered []Entrant
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[int64]int)}
}

// Add inserts an entrant unless the user id is already present. Returns
// whether the entrant was accepted.
func (r *Registry) Add(e Entrant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[e.UserID]; exists {
		return false
	}
	r.byID[e.UserID] = len(r.ordered)
	r.ordered = append(r.ordered, e)
	return true
}

// Len returns the number of distinct entrants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[int64]int)
	r.ordered = nil
}

// Snapshot returns the entrants in insertion order. The returned slice is a
// copy and safe to retain.
func (r *Registry) Snapshot() []Entrant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entrant, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Usernames returns the display names in insertion order.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.ordered))
	for i, e := range r.ordered {
		names[i] = e.Username
	}
	return names
}
