package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// ErrProviderNotRegistered is returned by [Registry.CreateResolver] when no
// factory has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// ResolverFactory builds a resolver from the resolver section of the config.
type ResolverFactory func(ResolverConfig) (resolver.Provider, error)

// Registry maps resolver names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]ResolverFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]ResolverFactory)}
}

// RegisterResolver registers a resolver factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterResolver(name string, factory ResolverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[name] = factory
}

// CreateResolver instantiates the resolver registered under name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateResolver(name string, cfg ResolverConfig) (resolver.Provider, error) {
	r.mu.RLock()
	factory, ok := r.resolvers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: resolver/%q", ErrProviderNotRegistered, name)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create resolver %q: %w", name, err)
	}
	return p, nil
}

// ResolverNames returns every registered resolver name.
func (r *Registry) ResolverNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	return names
}
