// Package local provides an in-process bus that delivers events to
// responders registered in the same process.
//
// Every publish fans out to the responders of the event type (plus those
// subscribed to "*") concurrently, waits for their verdicts and aggregates
// them with botevent.Policy according to the event behavior.
//
// A responder that errors, panics or exceeds the responder timeout simply
// has no vote. The bus never retries. When the caller's context ends before
// the verdicts are in, Publish returns the context error instead of a
// decision.
package local

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/botevent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// AllEvents subscribes a responder to every event type.
const AllEvents = "*"

// Bus errors
var (
	ErrResponderExists   = errors.New("responder already subscribed")
	ErrResponderRequired = errors.New("responder is required")
	ErrEnvelopeRequired  = errors.New("envelope is required")
)

// Bus implements botevent.Bus with in-process responders.
type Bus struct {
	status         int32
	events         sync.Map // map[string]*eventResponders
	registry       botevent.BehaviorRegistry
	policy         botevent.Policy
	timeout        time.Duration
	maxConcurrency int
	limiter        *rate.Limiter
	middleware     []botevent.Middleware
	logger         *slog.Logger

	failedCounter metric.Int64Counter
}

// eventResponders holds the responders of one event type
type eventResponders struct {
	mu         sync.RWMutex
	responders map[string]botevent.Responder
}

// New creates a local bus.
func New(opts ...Option) *Bus {
	o := newOptions(opts...)

	meter := otel.Meter("botevent.transport.local")
	failedCounter, _ := meter.Int64Counter("botevent.responder.failed",
		metric.WithDescription("Number of responder calls that produced no verdict"),
		metric.WithUnit("{response}"),
	)

	return &Bus{
		status:         1,
		registry:       o.registry,
		policy:         o.policy,
		timeout:        o.timeout,
		maxConcurrency: o.maxConcurrency,
		limiter:        o.limiter,
		middleware:     o.middleware,
		logger:         o.logger.With("component", "bus>local"),
		failedCounter:  failedCounter,
	}
}

func (b *Bus) isOpen() bool {
	return atomic.LoadInt32(&b.status) == 1
}

// Subscribe registers a responder for an event type, or for every type with
// AllEvents. The returned function removes the responder.
func (b *Bus) Subscribe(eventType, responderID string, r botevent.Responder) (func(), error) {
	if !b.isOpen() {
		return nil, botevent.ErrBusClosed
	}
	if r == nil {
		return nil, ErrResponderRequired
	}
	if eventType == "" {
		return nil, fmt.Errorf("%w: empty event type", botevent.ErrInvalidEventType)
	}

	r = botevent.Chain(r, b.middleware...)

	val, _ := b.events.LoadOrStore(eventType, &eventResponders{
		responders: make(map[string]botevent.Responder),
	})
	er := val.(*eventResponders)

	er.mu.Lock()
	if _, exists := er.responders[responderID]; exists {
		er.mu.Unlock()
		return nil, fmt.Errorf("%w: %q on %q", ErrResponderExists, responderID, eventType)
	}
	er.responders[responderID] = r
	er.mu.Unlock()

	b.logger.Debug("added responder", "event", eventType, "responder", responderID)

	var once sync.Once
	return func() {
		once.Do(func() {
			er.mu.Lock()
			delete(er.responders, responderID)
			er.mu.Unlock()
			b.logger.Debug("removed responder", "event", eventType, "responder", responderID)
		})
	}, nil
}

// ResponderCount returns how many responders receive events of eventType,
// including AllEvents subscribers.
func (b *Bus) ResponderCount(eventType string) int {
	return len(b.responders(eventType))
}

type boundResponder struct {
	id        string
	responder botevent.Responder
}

// responders returns the responders for an event type ordered by ID.
// A responder subscribed to both the type and AllEvents is returned once,
// bound to its type subscription.
func (b *Bus) responders(eventType string) []boundResponder {
	var out []boundResponder
	seen := make(map[string]bool)
	collect := func(key string) {
		val, ok := b.events.Load(key)
		if !ok {
			return
		}
		er := val.(*eventResponders)
		er.mu.RLock()
		for id, r := range er.responders {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, boundResponder{id: id, responder: r})
		}
		er.mu.RUnlock()
	}
	collect(eventType)
	if eventType != AllEvents {
		collect(AllEvents)
	}
	slices.SortFunc(out, func(a, b boundResponder) int {
		return cmp.Compare(a.id, b.id)
	})
	return out
}

// Publish delivers the envelope to every responder of its type and returns
// the aggregated outcome. The envelope's progression state is updated with
// the decision and the IDs of the responders that answered.
func (b *Bus) Publish(ctx context.Context, env *botevent.Envelope) (*botevent.PublishResult, error) {
	if !b.isOpen() {
		return nil, botevent.ErrBusClosed
	}
	if env == nil {
		return nil, ErrEnvelopeRequired
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	eventID := botevent.NewID()
	behavior := b.registry.Behavior(env.Type)
	responses := b.collect(ctx, eventID, env, b.responders(env.Type))
	if err := ctx.Err(); err != nil {
		b.logger.Debug("publish canceled", "event", env.Type, "event_id", eventID, "error", err)
		return nil, err
	}

	progression, wasBlocking := b.policy.Decide(behavior, responses)

	env.Progression.State = progression
	for _, r := range responses {
		env.Progression.ProcessedBy = append(env.Progression.ProcessedBy, r.ResponderID)
	}

	b.logger.Debug("event published",
		"event", env.Type,
		"event_id", eventID,
		"mode", string(behavior.Mode),
		"responses", len(responses),
		"progression", string(progression))

	return &botevent.PublishResult{
		Success:     true,
		EventID:     eventID,
		Progression: progression,
		WasBlocking: wasBlocking,
		Responses:   responses,
	}, nil
}

// collect runs the responders concurrently and returns the verdicts that
// arrived, in responder ID order.
func (b *Bus) collect(ctx context.Context, eventID string, env *botevent.Envelope, subs []boundResponder) []*botevent.ResponderResponse {
	if len(subs) == 0 {
		return nil
	}

	results := make([]*botevent.ResponderResponse, len(subs))
	var g errgroup.Group
	if b.maxConcurrency > 0 {
		g.SetLimit(b.maxConcurrency)
	}
	for i, sub := range subs {
		g.Go(func() error {
			resp, err := b.invoke(ctx, eventID, sub, env)
			if err != nil || resp == nil {
				b.responderFailed(ctx, env.Type, eventID, sub.id, err)
				return nil
			}
			results[i] = &botevent.ResponderResponse{
				ResponderID: sub.id,
				Response:    resp,
				Timestamp:   time.Now(),
			}
			return nil
		})
	}
	_ = g.Wait()

	return slices.DeleteFunc(results, func(r *botevent.ResponderResponse) bool {
		return r == nil
	})
}

type outcome struct {
	resp *botevent.BotEventResponse
	err  error
}

// invoke calls one responder, bounded by the responder timeout. Panics are
// recovered and reported as errors.
func (b *Bus) invoke(ctx context.Context, eventID string, sub boundResponder, env *botevent.Envelope) (*botevent.BotEventResponse, error) {
	ctx = botevent.ContextWithResponder(ctx, eventID, sub.id, b.logger)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("responder panic recovered",
					"event", env.Type,
					"responder", sub.id,
					"panic", r,
					"stack", string(debug.Stack()))
				ch <- outcome{err: fmt.Errorf("responder panic: %v", r)}
			}
		}()
		resp, err := sub.responder.Respond(ctx, env)
		ch <- outcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-ch:
		return o.resp, o.err
	}
}

func (b *Bus) responderFailed(ctx context.Context, eventType, eventID, responderID string, err error) {
	reason := "error"
	switch {
	case err == nil:
		reason = "empty"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	}
	b.logger.Debug("responder produced no verdict",
		"event", eventType,
		"event_id", eventID,
		"responder", responderID,
		"reason", reason,
		"error", err)
	if b.failedCounter != nil {
		b.failedCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("event", eventType),
				attribute.String("reason", reason),
			))
	}
}

// Close stops the bus. Further publishes and subscriptions fail with
// botevent.ErrBusClosed.
func (b *Bus) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.status, 1, 0) {
		return nil
	}
	b.events.Range(func(key, _ any) bool {
		b.events.Delete(key)
		return true
	})
	b.logger.Debug("bus closed")
	return nil
}

// Compile-time interface check
var _ botevent.Bus = (*Bus)(nil)
