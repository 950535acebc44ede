// Package observe provides application-wide observability primitives for
// hfpag: OpenTelemetry metrics, tracing and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider]. A package-level default
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

// meterName is the instrumentation scope name used for all hfpag metrics.
const meterName = "github.com/MrWong99/hfpag"

// Metrics holds all OpenTelemetry metric instruments for the gateway.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- SCO lifecycle ---

	// ScoTransitions counts SCO state transitions. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	ScoTransitions metric.Int64Counter

	// ScoSetupDuration tracks the time from codec negotiation to an active
	// audio link.
	ScoSetupDuration metric.Float64Histogram

	// CodecFallbacks counts setups that fell back to the baseline codec.
	// Use with attribute:
	//   attribute.String("codec", ...), the codec that was rejected.
	CodecFallbacks metric.Int64Counter

	// InvariantViolations counts synchronization passes skipped because the
	// call mirror reported an active call that was also transferred to the
	// gateway.
	InvariantViolations metric.Int64Counter

	// --- Requests ---

	// SignalingRequests counts handled HF requests. Use with attributes:
	//   attribute.String("request", ...), attribute.String("result", ...)
	SignalingRequests metric.Int64Counter

	// CallManagerErrors counts failed call-manager operations. Use with
	// attribute:
	//   attribute.String("op", ...)
	CallManagerErrors metric.Int64Counter

	// IndicatorUpdates counts indicator updates sent to HF devices. Use with
	// attribute:
	//   attribute.String("indicator", ...)
	IndicatorUpdates metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running peer sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveScoLinks tracks the number of links with audio running.
	ActiveScoLinks metric.Int64UpDownCounter

	// --- Admin surface ---

	// AdminRequestDuration tracks requests served by the health and metrics
	// endpoints. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	AdminRequestDuration metric.Float64Histogram
}

// setupBuckets defines histogram bucket boundaries (in seconds) for SCO
// setup, which spans an AT round trip plus the controller handshake.
var setupBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10,
}

// adminBuckets defines histogram bucket boundaries (in seconds) for admin
// requests; readiness checks are bounded by their own timeout.
var adminBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// SCO lifecycle.
	if met.ScoTransitions, err = m.Int64Counter("hfpag.sco.transitions",
		metric.WithDescription("SCO state transitions by source and target state."),
	); err != nil {
		return nil, err
	}
	if met.ScoSetupDuration, err = m.Float64Histogram("hfpag.sco.setup.duration",
		metric.WithDescription("Time from codec negotiation to active audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(setupBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CodecFallbacks, err = m.Int64Counter("hfpag.codec.fallbacks",
		metric.WithDescription("SCO setups retried with the baseline codec."),
	); err != nil {
		return nil, err
	}
	if met.InvariantViolations, err = m.Int64Counter("hfpag.sco.invariant_violations",
		metric.WithDescription("Synchronization passes skipped on inconsistent call state."),
	); err != nil {
		return nil, err
	}

	// Requests.
	if met.SignalingRequests, err = m.Int64Counter("hfpag.signaling.requests",
		metric.WithDescription("HF requests handled by request type and result."),
	); err != nil {
		return nil, err
	}
	if met.CallManagerErrors, err = m.Int64Counter("hfpag.callmanager.errors",
		metric.WithDescription("Failed call-manager operations by operation."),
	); err != nil {
		return nil, err
	}
	if met.IndicatorUpdates, err = m.Int64Counter("hfpag.indicator.updates",
		metric.WithDescription("Indicator updates sent to HF devices by indicator."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("hfpag.active_sessions",
		metric.WithDescription("Number of running peer sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveScoLinks, err = m.Int64UpDownCounter("hfpag.active_sco_links",
		metric.WithDescription("Number of SCO links with audio running."),
	); err != nil {
		return nil, err
	}

	// Admin surface.
	if met.AdminRequestDuration, err = m.Float64Histogram("hfpag.admin.request.duration",
		metric.WithDescription("Duration of health and metrics requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(adminBuckets...),
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

// RecordScoTransition records a state transition.
func (m *Metrics) RecordScoTransition(ctx context.Context, from, to string) {
	m.ScoTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordScoSetup records the duration of a successful SCO setup.
func (m *Metrics) RecordScoSetup(ctx context.Context, d time.Duration, codec string) {
	m.ScoSetupDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("codec", codec)),
	)
}

// RecordCodecFallback records a fallback away from codec.
func (m *Metrics) RecordCodecFallback(ctx context.Context, codec string) {
	m.CodecFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("codec", codec)),
	)
}

// RecordInvariantViolation records a skipped synchronization pass.
func (m *Metrics) RecordInvariantViolation(ctx context.Context) {
	m.InvariantViolations.Add(ctx, 1)
}

// RecordSignalingRequest records a handled HF request.
func (m *Metrics) RecordSignalingRequest(ctx context.Context, request, result string) {
	m.SignalingRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("request", request),
			attribute.String("result", result),
		),
	)
}

// RecordCallManagerError records a failed call-manager operation.
func (m *Metrics) RecordCallManagerError(ctx context.Context, op string) {
	m.CallManagerErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}

// RecordIndicatorUpdate records an indicator update sent to an HF.
func (m *Metrics) RecordIndicatorUpdate(ctx context.Context, indicator string) {
	m.IndicatorUpdates.Add(ctx, 1,
		metric.WithAttributes(attribute.String("indicator", indicator)),
	)
}
