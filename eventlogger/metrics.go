package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine activity.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordLogged records an accepted event; merged is true for repeats.
	RecordLogged(ctx context.Context, typ EventType, merged bool)

	// RecordInvalid records an event dropped by validation.
	RecordInvalid(ctx context.Context)

	// RecordSend records one Sender call. kind is "single" or "batch".
	RecordSend(ctx context.Context, kind string, size int, duration time.Duration, err error)

	// RecordStoreError records a failed EventStore call. op names the call.
	RecordStoreError(ctx context.Context, op string)

	// RecordFlush records a bulk flush and how many stored events it removed.
	RecordFlush(ctx context.Context, trigger string, size int, removed int)
}

type otelMetrics struct {
	logged      metric.Int64Counter
	invalid     metric.Int64Counter
	sends       metric.Int64Counter
	sendErrors  metric.Int64Counter
	sendLatency metric.Float64Histogram
	batchSize   metric.Int64Histogram
	flushes     metric.Int64Counter
	removed     metric.Int64Counter
	storeErrors metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventlogger")

	logged, err := meter.Int64Counter("eventlogger.events.logged",
		metric.WithDescription("Number of accepted events"),
	)
	if err != nil {
		return nil, err
	}

	invalid, err := meter.Int64Counter("eventlogger.events.invalid",
		metric.WithDescription("Number of events dropped by validation"),
	)
	if err != nil {
		return nil, err
	}

	sends, err := meter.Int64Counter("eventlogger.sends",
		metric.WithDescription("Number of Sender calls"),
	)
	if err != nil {
		return nil, err
	}

	sendErrors, err := meter.Int64Counter("eventlogger.send.errors",
		metric.WithDescription("Number of failed Sender calls"),
	)
	if err != nil {
		return nil, err
	}

	sendLatency, err := meter.Float64Histogram("eventlogger.send.latency_ms",
		metric.WithDescription("Sender call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram("eventlogger.send.batch_size",
		metric.WithDescription("Number of events per Sender call"),
	)
	if err != nil {
		return nil, err
	}

	flushes, err := meter.Int64Counter("eventlogger.flushes",
		metric.WithDescription("Number of bulk flushes"),
	)
	if err != nil {
		return nil, err
	}

	removed, err := meter.Int64Counter("eventlogger.events.removed",
		metric.WithDescription("Number of stored events removed by flushes"),
	)
	if err != nil {
		return nil, err
	}

	storeErrors, err := meter.Int64Counter("eventlogger.store.errors",
		metric.WithDescription("Number of failed event store calls"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		logged:      logged,
		invalid:     invalid,
		sends:       sends,
		sendErrors:  sendErrors,
		sendLatency: sendLatency,
		batchSize:   batchSize,
		flushes:     flushes,
		removed:     removed,
		storeErrors: storeErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel meter
// provider, or a no-op recorder if initialization fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordLogged(ctx context.Context, typ EventType, merged bool) {
	m.logged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", string(typ)),
		attribute.Bool("merged", merged),
	))
}

func (m *otelMetrics) RecordInvalid(ctx context.Context) {
	m.invalid.Add(ctx, 1)
}

func (m *otelMetrics) RecordSend(ctx context.Context, kind string, size int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.Bool("success", err == nil),
	}
	m.sends.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sendLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.batchSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("kind", kind)))
	if err != nil {
		m.sendErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (m *otelMetrics) RecordStoreError(ctx context.Context, op string) {
	m.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *otelMetrics) RecordFlush(ctx context.Context, trigger string, size int, removed int) {
	attrs := metric.WithAttributes(attribute.String("trigger", trigger))
	m.flushes.Add(ctx, 1, attrs)
	if removed > 0 {
		m.removed.Add(ctx, int64(removed), attrs)
	}
}

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordLogged(_ context.Context, _ EventType, _ bool) {}

func (NoopMetrics) RecordInvalid(_ context.Context) {}

func (NoopMetrics) RecordSend(_ context.Context, _ string, _ int, _ time.Duration, _ error) {}

func (NoopMetrics) RecordStoreError(_ context.Context, _ string) {}

func (NoopMetrics) RecordFlush(_ context.Context, _ string, _ int, _ int) {}
