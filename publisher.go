package botevent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbaliyan/botevent/usage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Publisher emits events on a Bus and turns the bus result into a simple
// proceed/block answer for the caller.
//
// A Publisher is safe for concurrent use; concurrent Emit calls share no
// mutable state.
type Publisher struct {
	bus         Bus
	registry    BehaviorRegistry
	validator   usage.Validator
	development bool
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *emitMetrics
}

// NewPublisher creates a publisher on top of bus.
func NewPublisher(bus Bus, opts ...Option) (*Publisher, error) {
	if bus == nil {
		return nil, ErrBusRequired
	}
	o := newPublisherOptions(opts...)

	p := &Publisher{
		bus:         bus,
		registry:    o.registry,
		validator:   o.validator,
		development: o.development,
		logger:      o.logger.With("component", "publisher"),
	}
	if o.tracingEnabled {
		p.tracer = otel.Tracer(instrumentationName)
	}
	if o.metricsEnabled {
		p.metrics = newEmitMetrics()
	}
	return p, nil
}

// Registry returns the behavior registry used by the publisher.
func (p *Publisher) Registry() BehaviorRegistry {
	return p.registry
}

// Emit publishes an event and waits for the bus to report the outcome.
//
// The returned error is the bus error, unchanged. Otherwise the result tells
// whether the caller may proceed: only a successful publish with a continue
// progression proceeds. Unknown progression values are treated as a block.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any, metadata Metadata) (*EmitResult, error) {
	behavior := p.registry.Behavior(eventType)
	env := newEnvelope(eventType, data, metadata, behavior)

	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, fmt.Sprintf("%s.emit", eventType),
			trace.WithAttributes(
				attribute.String(spanKeyEventType, eventType),
				attribute.String(spanKeyEventPriority, string(env.Priority()))),
			trace.WithSpanKind(trace.SpanKindProducer))
		defer span.End()
	}

	start := time.Now()
	res, err := p.bus.Publish(ctx, env)
	if err != nil {
		p.metrics.recordFailure(ctx, eventType)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	if res == nil {
		res = &PublishResult{}
	}

	if res.Progression != "" && !res.Progression.Valid() {
		p.logger.Warn("bus returned unknown progression, treating as block",
			"event", eventType,
			"event_id", res.EventID,
			"progression", string(res.Progression))
	}

	result := &EmitResult{
		proceed:     res.Success && res.Progression == ProgressionContinue,
		eventID:     res.EventID,
		wasBlocking: res.WasBlocking,
	}
	if !result.proceed {
		result.reason = blockReason(res.Responses)
		verdicts, _ := AggregateReasons(validResponses(res.Responses))
		p.logger.Debug("event did not proceed",
			"event", eventType,
			"event_id", res.EventID,
			"success", res.Success,
			"progression", string(res.Progression),
			"reason", result.reason,
			"verdicts", verdicts)
	}

	if span != nil {
		span.SetAttributes(
			attribute.String(spanKeyEventID, res.EventID),
			attribute.String(spanKeyEventProgression, string(res.Progression)),
			attribute.Bool(spanKeyEventBlocking, res.WasBlocking))
	}
	p.metrics.recordEmit(ctx, eventType, res.Progression, result.proceed, time.Since(start))

	if p.development && result.eventID != "" {
		p.track(ctx, eventType, result)
	}
	return result, nil
}

// track records the emission and arms the proceed check. Validator failures
// are logged and never reach the caller.
func (p *Publisher) track(ctx context.Context, eventType string, result *EmitResult) {
	eventID := result.eventID
	p.safely("track emission", eventID, func() error {
		return p.validator.TrackEmission(ctx, eventType, eventID, result.wasBlocking)
	})
	result.onCheck = func() {
		p.safely("mark progression checked", eventID, func() error {
			return p.validator.MarkProgressionChecked(context.WithoutCancel(ctx), eventID)
		})
	}
}

func (p *Publisher) safely(op, eventID string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("usage validator panic recovered", "op", op, "event_id", eventID, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		p.logger.Debug("usage validator failed", "op", op, "event_id", eventID, "error", err)
	}
}

// newEnvelope builds the envelope for one emit. Caller metadata is copied
// as-is; priority resolves from the caller, then the behavior default, then
// DefaultPriority.
func newEnvelope(eventType string, data any, metadata Metadata, behavior Behavior) *Envelope {
	meta := metadata.Clone()

	priority, ok := metadata.Priority()
	if !ok {
		priority = behavior.DefaultPriority
	}
	if priority == "" {
		priority = DefaultPriority
	}
	meta[MetadataKeyPriority] = priority

	return &Envelope{
		Type:     eventType,
		Data:     data,
		Metadata: meta,
		Progression: ProgressionState{
			State:       ProgressionContinue,
			ProcessedBy: []string{},
		},
	}
}
