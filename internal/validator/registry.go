package validator

import (
	"sort"
	"sync"
)

// Registry tracks live validators so they can be inspected over HTTP
type Registry struct {
	mu         sync.RWMutex
	validators map[string]*FrameValidator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]*FrameValidator)}
}

// Add registers v under its ID
func (r *Registry) Add(v *FrameValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[v.ID()] = v
}

// Remove unregisters the validator with the given ID
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.validators[id]; !ok {
		return false
	}
	delete(r.validators, id)
	return true
}

// Get returns the validator with the given ID
func (r *Registry) Get(id string) (*FrameValidator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[id]
	return v, ok
}

// List returns stats for every registered validator, oldest first
func (r *Registry) List() []Stats {
	r.mu.RLock()
	list := make([]*FrameValidator, 0, len(r.validators))
	for _, v := range r.validators {
		list = append(list, v)
	}
	r.mu.RUnlock()

	stats := make([]Stats, 0, len(list))
	for _, v := range list {
		stats = append(stats, v.Stats())
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].CreatedAt.Before(stats[j].CreatedAt)
	})
	return stats
}

// Len returns the number of registered validators
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.validators)
}
