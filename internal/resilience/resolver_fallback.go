package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// ResolverFallback implements [resolver.Provider] with automatic failover
// across several resolver backends. Each backend has its own circuit breaker.
// A backend that answers [resolver.ErrUnsupported] or [resolver.ErrNoResults]
// is skipped without counting against its breaker.
type ResolverFallback struct {
	group *FallbackGroup[resolver.Provider]
}

// Compile-time interface assertion.
var _ resolver.Provider = (*ResolverFallback)(nil)

// NewResolverFallback creates a [ResolverFallback] with primary as the
// preferred backend. cfg.CircuitBreaker.IsFailure is set when left nil.
func NewResolverFallback(primary resolver.Provider, primaryName string, cfg FallbackConfig) *ResolverFallback {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = IsResolverFailure
	}
	return &ResolverFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional resolver as a fallback.
func (f *ResolverFallback) AddFallback(name string, p resolver.Provider) {
	f.group.AddFallback(name, p)
}

// States returns the breaker state of every backend, keyed by name.
func (f *ResolverFallback) States() map[string]State {
	return f.group.States()
}

// Resolve asks each healthy backend in turn and returns the first source.
func (f *ResolverFallback) Resolve(ctx context.Context, query string) (audio.Source, error) {
	return ExecuteWithResult(ctx, f.group, func(p resolver.Provider) (audio.Source, error) {
		return p.Resolve(ctx, query)
	})
}

// IsResolverFailure reports whether err indicates an unhealthy resolver
// backend. Unsupported queries, empty results and caller cancellation do not.
func IsResolverFailure(err error) bool {
	switch {
	case errors.Is(err, resolver.ErrUnsupported),
		errors.Is(err, resolver.ErrNoResults),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
