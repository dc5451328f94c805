package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventAdded records an event persisted to the queue.
	RecordEventAdded(ctx context.Context, category string)

	// RecordEventDropped records an event that never reached the queue.
	RecordEventDropped(ctx context.Context, category, reason string)

	// RecordBatch records one delivery attempt and its outcome.
	RecordBatch(ctx context.Context, outcome string, size int, duration time.Duration)

	// RecordErrorReport records a diagnostic report attempt.
	RecordErrorReport(ctx context.Context, kind string, sent bool)

	// RecordSessionsRepaired records synthesized session_end events.
	RecordSessionsRepaired(ctx context.Context, count int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsAdded      metric.Int64Counter
	eventsDropped    metric.Int64Counter
	batches          metric.Int64Counter
	batchSize        metric.Int64Histogram
	batchLatency     metric.Float64Histogram
	errorReports     metric.Int64Counter
	sessionsRepaired metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventpipe")

	eventsAdded, err := meter.Int64Counter("eventpipe.events.added",
		metric.WithDescription("Number of events persisted to the queue"),
	)
	if err != nil {
		return nil, err
	}

	eventsDropped, err := meter.Int64Counter("eventpipe.events.dropped",
		metric.WithDescription("Number of events dropped before persistence"),
	)
	if err != nil {
		return nil, err
	}

	batches, err := meter.Int64Counter("eventpipe.batches",
		metric.WithDescription("Number of batches sent to the collector"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram("eventpipe.batch.size",
		metric.WithDescription("Events per batch"),
	)
	if err != nil {
		return nil, err
	}

	batchLatency, err := meter.Float64Histogram("eventpipe.batch.latency_ms",
		metric.WithDescription("Batch send latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errorReports, err := meter.Int64Counter("eventpipe.error_reports",
		metric.WithDescription("Number of diagnostic error reports attempted"),
	)
	if err != nil {
		return nil, err
	}

	sessionsRepaired, err := meter.Int64Counter("eventpipe.sessions.repaired",
		metric.WithDescription("Number of synthesized session_end events"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsAdded:      eventsAdded,
		eventsDropped:    eventsDropped,
		batches:          batches,
		batchSize:        batchSize,
		batchLatency:     batchLatency,
		errorReports:     errorReports,
		sessionsRepaired: sessionsRepaired,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEventAdded records a persisted event.
func (m *otelMetrics) RecordEventAdded(ctx context.Context, category string) {
	m.eventsAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// RecordEventDropped records a dropped event.
func (m *otelMetrics) RecordEventDropped(ctx context.Context, category, reason string) {
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("reason", reason),
	))
}

// RecordBatch records a delivery attempt.
func (m *otelMetrics) RecordBatch(ctx context.Context, outcome string, size int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.batches.Add(ctx, 1, attrs)
	m.batchSize.Record(ctx, int64(size), attrs)
	m.batchLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordErrorReport records a diagnostic report.
func (m *otelMetrics) RecordErrorReport(ctx context.Context, kind string, sent bool) {
	m.errorReports.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("sent", sent),
	))
}

// RecordSessionsRepaired records synthesized session ends.
func (m *otelMetrics) RecordSessionsRepaired(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.sessionsRepaired.Add(ctx, int64(count))
}
