// Package observe provides application-wide observability primitives for
// Cadenza: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all Cadenza metrics.
const meterName = "github.com/cadenza-fm/cadenza"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// PipelineDuration tracks recommendation pipeline latency. Use with
	// attribute.String("cache", "hit"|"miss").
	PipelineDuration metric.Float64Histogram

	// StoreQueryDuration tracks store gateway round-trip latency. Use with
	// attribute.String("query", ...).
	StoreQueryDuration metric.Float64Histogram

	// --- Counters ---

	// Interactions counts recorded interaction events. Use with
	// attribute.String("event_type", ...).
	Interactions metric.Int64Counter

	// SkipBursts counts detected skip bursts.
	SkipBursts metric.Int64Counter

	// RefreshTriggers counts push refresh triggers. Use with
	// attribute.String("reason", ...).
	RefreshTriggers metric.Int64Counter

	// FanoutEmits counts per-session push deliveries. Use with
	// attribute.String("status", "ok"|"error").
	FanoutEmits metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live push sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attribute.String("method", ...) and attribute.String("route", ...),
	// where route is the matched chi pattern.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) around the
// pipeline's 300 ms warm / 1 s cold targets.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PipelineDuration, err = m.Float64Histogram("cadenza.pipeline.duration",
		metric.WithDescription("Latency of the recommendation pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreQueryDuration, err = m.Float64Histogram("cadenza.store.query.duration",
		metric.WithDescription("Latency of store gateway queries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Interactions, err = m.Int64Counter("cadenza.interactions",
		metric.WithDescription("Total recorded interaction events by event type."),
	); err != nil {
		return nil, err
	}
	if met.SkipBursts, err = m.Int64Counter("cadenza.skip_bursts",
		metric.WithDescription("Total detected skip bursts."),
	); err != nil {
		return nil, err
	}
	if met.RefreshTriggers, err = m.Int64Counter("cadenza.refresh.triggers",
		metric.WithDescription("Total push refresh triggers by reason."),
	); err != nil {
		return nil, err
	}
	if met.FanoutEmits, err = m.Int64Counter("cadenza.fanout.emits",
		metric.WithDescription("Total per-session push deliveries by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("cadenza.active_sessions",
		metric.WithDescription("Number of live push sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("cadenza.http.request.duration",
		metric.WithDescription("HTTP request latency by method and matched route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordPipeline records one pipeline run with its cache outcome.
func (m *Metrics) RecordPipeline(ctx context.Context, d time.Duration, cacheOutcome string) {
	m.PipelineDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("cache", cacheOutcome)))
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
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
