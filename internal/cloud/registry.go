package cloud

import (
	"sort"
	"sync"

	apierrors "github.com/systmms/apivault/internal/errors"
)

// Factory builds a provider instance for one credential. Construction must
// not perform network calls.
type Factory func(cred Credential) (Provider, error)

// Registry maps provider names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderName]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ProviderName]Factory),
	}
}

// Register adds or replaces the factory for name
func (r *Registry) Register(name ProviderName, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New creates a provider instance. An unregistered name returns an error
// wrapping errors.ErrUnknownProvider.
func (r *Registry) New(name ProviderName, cred Credential) (Provider, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, apierrors.UnknownProvider(string(name))
	}
	if cred == nil || cred.ProviderName() != name {
		return nil, apierrors.InvalidArgument("credential does not belong to provider %q", name)
	}
	return factory(cred)
}

// IsSupported reports whether name is registered
func (r *Registry) IsSupported(name ProviderName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]ProviderName, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
