// Package mock provides a test double for [resolver.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// Compile-time interface assertion.
var _ resolver.Provider = (*Provider)(nil)

// Provider is a mock implementation of [resolver.Provider].
type Provider struct {
	mu sync.Mutex

	// ResolveFunc, when set, computes the result of Resolve.
	ResolveFunc func(ctx context.Context, query string) (audio.Source, error)

	// ResolveResult is returned by Resolve when ResolveFunc is nil.
	ResolveResult audio.Source

	// ResolveErr is returned by Resolve when ResolveFunc is nil.
	ResolveErr error

	// Gate, when non-nil, makes Resolve block until a value is received or ctx
	// is done.
	Gate chan struct{}

	// ResolveCalls records the query of every Resolve invocation.
	ResolveCalls []string
}

// Resolve implements [resolver.Provider].
func (p *Provider) Resolve(ctx context.Context, query string) (audio.Source, error) {
	p.mu.Lock()
	p.ResolveCalls = append(p.ResolveCalls, query)
	gate := p.Gate
	fn := p.ResolveFunc
	res, err := p.ResolveResult, p.ResolveErr
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, query)
	}
	return res, err
}

// Calls returns a copy of the recorded queries.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ResolveCalls...)
}
