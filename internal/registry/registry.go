// Package registry provides the process-scoped lookup from component id
// to compiled handle used by preview and timeline collaborators.
//
// Lifecycle is explicit: created at host startup, cleared only by Reset,
// never implicitly reset on reload. A reload replaces an entry, it does
// not wipe its neighbors.
package registry

import (
	"sync"

	"github.com/frameloom-labs/frameloom/internal/compiler"
)

// Registry maps bundle ids to their current compiled handles.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*compiler.CompiledModule
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*compiler.CompiledModule)}
}

// Register stores or wholesale-replaces the handle for a bundle.
func (r *Registry) Register(mod *compiler.CompiledModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[mod.BundleID] = mod
}

// Lookup returns the current handle for a bundle id.
func (r *Registry) Lookup(id string) (*compiler.CompiledModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.handles[id]
	return mod, ok
}

// Remove drops a bundle's handle, on bundle deletion.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// All returns the registered handles.
func (r *Registry) All() []*compiler.CompiledModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*compiler.CompiledModule, 0, len(r.handles))
	for _, mod := range r.handles {
		out = append(out, mod)
	}
	return out
}

// Count returns the number of registered handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Reset clears the registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = make(map[string]*compiler.CompiledModule)
}
