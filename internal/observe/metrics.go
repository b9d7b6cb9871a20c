// Package observe provides application-wide observability primitives for
// songbot: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all songbot metrics.
const meterName = "github.com/MrWong99/songbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Commands ---

	// Commands counts handled chat commands. Use with attributes:
	//   attribute.String("command", ...), attribute.String("outcome", ...)
	Commands metric.Int64Counter

	// CommandDuration tracks end-to-end command latency, including lock wait,
	// voice join and source resolution.
	CommandDuration metric.Float64Histogram

	// --- Sessions and playback ---

	// ActiveSessions tracks the number of guilds with a live voice session.
	ActiveSessions metric.Int64UpDownCounter

	// TracksEnqueued counts tracks appended to any queue.
	TracksEnqueued metric.Int64Counter

	// PlaybackErrors counts tracks that failed to open or failed mid-stream.
	PlaybackErrors metric.Int64Counter

	// --- Resolvers ---

	// ResolverRequests counts resolver lookups. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ResolverRequests metric.Int64Counter

	// ResolverDuration tracks resolver lookup latency per provider.
	ResolverDuration metric.Float64Histogram

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes: attribute.String("provider", ...), attribute.String("state", ...)
	BreakerTransitions metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Commands
// that join a channel and run a search routinely take a few seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Commands, err = m.Int64Counter("songbot.commands",
		metric.WithDescription("Total chat commands by command name and outcome."),
	); err != nil {
		return nil, err
	}
	if met.CommandDuration, err = m.Float64Histogram("songbot.command.duration",
		metric.WithDescription("Latency of chat command handling."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("songbot.active_sessions",
		metric.WithDescription("Number of guilds with a live voice session."),
	); err != nil {
		return nil, err
	}
	if met.TracksEnqueued, err = m.Int64Counter("songbot.tracks.enqueued",
		metric.WithDescription("Total tracks appended to playback queues."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackErrors, err = m.Int64Counter("songbot.playback.errors",
		metric.WithDescription("Total tracks that failed during playback."),
	); err != nil {
		return nil, err
	}

	if met.ResolverRequests, err = m.Int64Counter("songbot.resolver.requests",
		metric.WithDescription("Total resolver lookups by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ResolverDuration, err = m.Float64Histogram("songbot.resolver.duration",
		metric.WithDescription("Latency of resolver lookups."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("songbot.resolver.breaker.transitions",
		metric.WithDescription("Total resolver circuit breaker state changes."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("songbot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCommand records one handled command with its outcome and latency.
func (m *Metrics) RecordCommand(ctx context.Context, command, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	)
	m.Commands.Add(ctx, 1, attrs)
	m.CommandDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordResolverRequest records one resolver lookup.
func (m *Metrics) RecordResolverRequest(ctx context.Context, provider, status string, d time.Duration) {
	m.ResolverRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.ResolverDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordBreakerTransition records a circuit breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("state", state),
		),
	)
}
