// Package observe provides application-wide observability primitives for
// Attestra: OpenTelemetry metrics, tracing, and structured logging helpers.
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Attestra metrics.
const meterName = "github.com/MrWong99/attestra"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// PipelineDuration tracks end-to-end dual-pipeline run latency.
	PipelineDuration metric.Float64Histogram

	// BackendDuration tracks individual transcription backend latency.
	BackendDuration metric.Float64Histogram

	// ValidationDuration tracks audio cross-validation latency.
	ValidationDuration metric.Float64Histogram

	// --- Counters ---

	// PipelineRuns counts dual-pipeline runs. Use with attribute:
	//   attribute.String("outcome", "matched"|"auto"|"escalated")
	PipelineRuns metric.Int64Counter

	// Escalations counts QC case creations.
	Escalations metric.Int64Counter

	// --- Error counters ---

	// BackendErrors counts transcription backend failures. Use with
	// attributes: attribute.String("pipeline", ...), attribute.String("kind", ...)
	BackendErrors metric.Int64Counter

	// --- Gauges ---

	// PendingCases tracks cases awaiting a reviewer decision.
	PendingCases metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// transcription latencies, which run much longer than typical request
// handling.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PipelineDuration, err = m.Float64Histogram("attestra.pipeline.duration",
		metric.WithDescription("End-to-end dual-pipeline run latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("attestra.backend.duration",
		metric.WithDescription("Transcription backend latency by pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ValidationDuration, err = m.Float64Histogram("attestra.validation.duration",
		metric.WithDescription("Audio cross-validation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PipelineRuns, err = m.Int64Counter("attestra.pipeline.runs",
		metric.WithDescription("Total dual-pipeline runs by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Escalations, err = m.Int64Counter("attestra.qc.escalations",
		metric.WithDescription("Total QC case creations."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.BackendErrors, err = m.Int64Counter("attestra.backend.errors",
		metric.WithDescription("Total transcription backend failures by pipeline and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PendingCases, err = m.Int64UpDownCounter("attestra.qc.pending",
		metric.WithDescription("QC cases awaiting a reviewer decision."),
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

// RecordRun records one dual-pipeline run with its outcome and duration.
func (m *Metrics) RecordRun(ctx context.Context, outcome string, seconds float64) {
	m.PipelineRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.PipelineDuration.Record(ctx, seconds)
}

// RecordBackendError records a transcription backend failure.
func (m *Metrics) RecordBackendError(ctx context.Context, pipeline, kind string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("pipeline", pipeline),
			attribute.String("kind", kind),
		),
	)
}
