// Package app wires the songbot subsystems into a running application.
//
// The App struct owns the session lifecycle: New builds the resolver chain,
// the session table and the orchestrator, and Shutdown tears every guild's
// session down. The chat boundary lives in internal/discord and only talks to
// the [session.Orchestrator] returned by [App.Orchestrator].
//
// For testing, inject mock implementations via functional options
// (WithPlatform, WithResolver). When a resolver is not injected, New builds
// one from the config and the resolver registry.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/songbot/internal/command"
	"github.com/MrWong99/songbot/internal/config"
	"github.com/MrWong99/songbot/internal/observe"
	"github.com/MrWong99/songbot/internal/session"
	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// App owns the session table and everything needed to execute commands.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics

	platform audio.Platform
	resolver resolver.Provider
	chain    *Chain
	table    *session.Table
	orch     *session.Orchestrator

	// closers are called in order during Shutdown, after every session is
	// closed.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPlatform sets the voice platform sessions join through.
func WithPlatform(p audio.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithResolver injects a resolver instead of building one from config.
func WithResolver(r resolver.Provider) Option {
	return func(a *App) { a.resolver = r }
}

// WithRegistry sets the resolver registry. Default: a registry with the
// built-in resolvers.
func WithRegistry(reg *config.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithCloser registers fn to run during Shutdown.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App from cfg. A nil platform is accepted; play then fails
// with "Couldn't get voice manager" until the process is restarted with one.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
		RegisterBuiltinResolvers(a.registry)
	}

	if a.resolver == nil {
		res, err := BuildResolver(cfg, a.registry, a.metrics)
		if err != nil {
			return nil, fmt.Errorf("app: build resolver: %w", err)
		}
		a.resolver = res
		a.chain = res
	}

	prefix := cfg.Resolver.SearchPrefix
	if prefix == "" {
		prefix = resolver.SearchPrefix
	}

	a.table = session.NewTable()
	a.orch = session.New(a.table, a.platform, a.resolver,
		session.WithInterpreter(command.Interpreter{SearchPrefix: prefix}),
		session.WithCommandTimeout(cfg.Session.CommandTimeout),
		session.WithMetrics(a.metrics),
	)
	return a, nil
}

// Orchestrator returns the command orchestrator.
func (a *App) Orchestrator() *session.Orchestrator { return a.orch }

// Sessions returns the number of guilds with a live voice session.
func (a *App) Sessions() int { return a.table.Len() }

// ResolverStates returns the breaker state of every configured resolver. It
// is nil when the resolver was injected with [WithResolver].
func (a *App) ResolverStates() map[string]string {
	if a.chain == nil {
		return nil
	}
	return a.chain.States()
}

// Shutdown leaves every voice channel and runs the registered closers. It
// respects the context deadline: if ctx expires before all sessions are
// closed, remaining work is skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.table.Len(), "closers", len(a.closers))

		if err := a.orch.Close(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Warn("shutdown deadline exceeded while closing sessions", "remaining", a.table.Len())
				shutdownErr = ctx.Err()
				return
			}
			slog.Warn("session close error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
