package botevent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName names the otel meter and tracer.
const instrumentationName = "github.com/rbaliyan/botevent"

const (
	spanKeyEventID          = "event.id"
	spanKeyEventType        = "event.type"
	spanKeyEventPriority    = "event.priority"
	spanKeyEventProgression = "event.progression"
	spanKeyEventBlocking    = "event.blocking"
)

// emitMetrics groups the publisher instruments. A nil *emitMetrics records
// nothing.
type emitMetrics struct {
	emitted  metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

func newEmitMetrics() *emitMetrics {
	meter := otel.Meter(instrumentationName)
	emitted, _ := meter.Int64Counter("botevent.emitted",
		metric.WithDescription("Total number of events emitted"),
		metric.WithUnit("{event}"))
	failed, _ := meter.Int64Counter("botevent.emit.failed",
		metric.WithDescription("Number of emits whose bus publish failed"),
		metric.WithUnit("{event}"))
	duration, _ := meter.Float64Histogram("botevent.emit.duration",
		metric.WithDescription("Time spent waiting for the bus"),
		metric.WithUnit("ms"))
	return &emitMetrics{
		emitted:  emitted,
		failed:   failed,
		duration: duration,
	}
}

func (m *emitMetrics) recordEmit(ctx context.Context, eventType string, progression Progression, proceed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(spanKeyEventType, eventType),
		attribute.String(spanKeyEventProgression, string(progression)),
		attribute.Bool("event.proceed", proceed),
	)
	if m.emitted != nil {
		m.emitted.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}

func (m *emitMetrics) recordFailure(ctx context.Context, eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String(spanKeyEventType, eventType)))
}
