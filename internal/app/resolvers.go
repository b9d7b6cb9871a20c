package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/songbot/internal/config"
	"github.com/MrWong99/songbot/internal/observe"
	"github.com/MrWong99/songbot/internal/resilience"
	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/audio/ffmpeg"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
	"github.com/MrWong99/songbot/pkg/provider/resolver/youtube"
	"github.com/MrWong99/songbot/pkg/provider/resolver/ytdlp"
)

// RegisterBuiltinResolvers wires the resolvers that ship with songbot into
// reg. Both decode through ffmpeg at cfg.FFmpegPath.
func RegisterBuiltinResolvers(reg *config.Registry) {
	reg.RegisterResolver("ytdlp", func(cfg config.ResolverConfig) (resolver.Provider, error) {
		opts := []ytdlp.Option{ytdlp.WithDecoder(ffmpeg.New(cfg.FFmpegPath))}
		if cfg.YTDLPPath != "" {
			opts = append(opts, ytdlp.WithPath(cfg.YTDLPPath))
		}
		return ytdlp.New(opts...), nil
	})
	reg.RegisterResolver("youtube", func(cfg config.ResolverConfig) (resolver.Provider, error) {
		return youtube.New(youtube.WithDecoder(ffmpeg.New(cfg.FFmpegPath))), nil
	})
}

// Chain is the resolver built by [BuildResolver]. It resolves through the
// rate limiter and exposes the breaker state of every backend.
type Chain struct {
	resolver.Provider
	fallback *resilience.ResolverFallback
}

// States returns the breaker state name of every backend, keyed by resolver
// name.
func (c *Chain) States() map[string]string {
	states := c.fallback.States()
	out := make(map[string]string, len(states))
	for name, st := range states {
		out[name] = st.String()
	}
	return out
}

// BuildResolver creates the configured resolver chain: every named resolver
// behind its own circuit breaker, tried in order, the whole chain rate
// limited with identical concurrent lookups collapsed.
func BuildResolver(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*Chain, error) {
	names := cfg.ResolverNames()
	rc := cfg.Resolver

	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  rc.Breaker.MaxFailures,
			ResetTimeout: rc.Breaker.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}

	var chain *resilience.ResolverFallback
	for _, name := range names {
		p, err := reg.CreateResolver(name, rc)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("resolver not registered, skipping", "name", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		p = &instrumented{name: name, next: p, metrics: metrics}
		if chain == nil {
			chain = resilience.NewResolverFallback(p, name, fbCfg)
		} else {
			chain.AddFallback(name, p)
		}
		slog.Info("resolver created", "name", name)
	}
	if chain == nil {
		return nil, fmt.Errorf("app: no usable resolver in %v", names)
	}

	var opts []resolver.LimitedOption
	if rc.RatePerSecond != 0 {
		opts = append(opts, resolver.WithRate(rc.RatePerSecond, rc.Burst))
	}
	if rc.LookupTimeout > 0 {
		opts = append(opts, resolver.WithLookupTimeout(rc.LookupTimeout))
	}
	return &Chain{Provider: resolver.NewLimited(chain, opts...), fallback: chain}, nil
}

// instrumented records latency and outcome of every lookup of one resolver.
type instrumented struct {
	name    string
	next    resolver.Provider
	metrics *observe.Metrics
}

var _ resolver.Provider = (*instrumented)(nil)

func (i *instrumented) Resolve(ctx context.Context, query string) (audio.Source, error) {
	start := time.Now()
	src, err := i.next.Resolve(ctx, query)
	i.metrics.RecordResolverRequest(ctx, i.name, lookupStatus(err), time.Since(start))
	return src, err
}

// lookupStatus classifies a lookup result for the status attribute.
func lookupStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resolver.ErrNoResults):
		return "no_results"
	case errors.Is(err, resolver.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
