package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/songbot/pkg/audio"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Default limits applied by [NewLimited].
const (
	DefaultRate          = 2.0
	DefaultBurst         = 4
	DefaultLookupTimeout = 30 * time.Second
)

// LimitedOption configures a [Limited] resolver.
type LimitedOption func(*Limited)

// WithRate sets the sustained lookups per second and the burst size.
// A non-positive perSecond disables rate limiting.
func WithRate(perSecond float64, burst int) LimitedOption {
	return func(l *Limited) {
		if perSecond <= 0 {
			l.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLookupTimeout bounds a single shared lookup.
func WithLookupTimeout(d time.Duration) LimitedOption {
	return func(l *Limited) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// Limited wraps a [Provider] with a token-bucket rate limiter and collapses
// concurrent lookups of the same query into one backend call.
//
// Because a collapsed lookup is shared, it runs detached from any single
// caller's cancellation and is bounded by its own timeout instead. Each caller
// still stops waiting as soon as its own ctx is done.
type Limited struct {
	next    Provider
	limiter *rate.Limiter
	timeout time.Duration
	group   singleflight.Group
}

// Compile-time interface assertion.
var _ Provider = (*Limited)(nil)

// NewLimited wraps next with [DefaultRate], [DefaultBurst] and
// [DefaultLookupTimeout] unless overridden by opts.
func NewLimited(next Provider, opts ...LimitedOption) *Limited {
	l := &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst),
		timeout: DefaultLookupTimeout,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Resolve implements [Provider].
func (l *Limited) Resolve(ctx context.Context, query string) (audio.Source, error) {
	ch := l.group.DoChan(query, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		if l.limiter != nil {
			if err := l.limiter.Wait(lookupCtx); err != nil {
				return nil, fmt.Errorf("resolver: rate limit: %w", err)
			}
		}
		return l.next.Resolve(lookupCtx, query)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.Debug("resolver: shared lookup", "query", query)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(audio.Source), nil
	}
}
