// Package component implements the component registry.
package component

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/pulse/internal/core"
)

// Registry maps component names to their role and type.
// Reads vastly outnumber writes (every sampler tick reads, only reloads write),
// hence the RWMutex.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
}

// NewRegistry creates a registry holding the given components.
func NewRegistry(components ...Component) *Registry {
	r := &Registry{components: make(map[string]Component, len(components))}
	for _, c := range components {
		r.components[c.Name] = c
	}
	return r
}

// Lookup returns the role of the named component.
// Returns (0, false) for unknown names.
func (r *Registry) Lookup(name string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c.Role, ok
}

// Get returns the full component entry.
func (r *Registry) Get(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Register adds a component. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[c.Name]; exists {
		return fmt.Errorf("%w: %s", core.ErrComponentExists, c.Name)
	}
	r.components[c.Name] = c
	return nil
}

// Remove deletes a component. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.components, name)
}

// Replace swaps the whole component set, as done on config reload.
func (r *Registry) Replace(components []Component) {
	next := make(map[string]Component, len(components))
	for _, c := range components {
		next[c.Name] = c
	}
	r.mu.Lock()
	r.components = next
	r.mu.Unlock()
}

// List returns all components ordered by (role rank, name).
func (r *Registry) List() []Component {
	r.mu.RLock()
	out := make([]Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role.Rank() < out[j].Role.Rank()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Names returns component names ordered by (role rank, name).
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}
