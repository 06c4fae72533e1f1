package provider

import (
	"sync"

	dErrors "tabhq/pkg/domain-errors"
)

// Factory builds a new, unconfigured adapter instance.
type Factory func() Adapter

// Registry resolves provider names to fresh adapter instances. Every Resolve
// call returns a new adapter so credentials never leak between tenants or
// requests.
type Registry struct {
	mu        sync.RWMutex
	factories map[Name]Factory
}

// NewRegistry creates an empty registry. Adapters are wired in with Register
// at process startup.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Name]Factory)}
}

// Register adds a factory under the given provider name. Registering the same
// name twice replaces the previous factory.
func (r *Registry) Register(name Name, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[Normalize(string(name))] = factory
}

// Resolve returns a new unconfigured adapter for the named provider.
// Lookup is case-insensitive. Unknown names yield an unsupported_provider error.
func (r *Registry) Resolve(name string) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[Normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnsupportedProvider, "provider \""+name+"\" not supported")
	}
	return factory(), nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
