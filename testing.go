package botevent

import (
	"context"
	"sync"
	"time"
)

// TestPublisher creates a publisher configured for testing, with tracing and
// metrics disabled. Panics if bus is nil (test setup error).
//
// Example:
//
//	bus := botevent.NewStaticBus(&botevent.PublishResult{Success: true, Progression: botevent.ProgressionContinue})
//	pub := botevent.TestPublisher(bus)
func TestPublisher(bus Bus, opts ...Option) *Publisher {
	opts = append([]Option{WithTracing(false), WithMetrics(false)}, opts...)
	p, err := NewPublisher(bus, opts...)
	if err != nil {
		panic("botevent.TestPublisher: " + err.Error())
	}
	return p
}

// StaticBus answers every publish with a copy of the same result.
type StaticBus struct {
	mu     sync.Mutex
	result *PublishResult
}

// NewStaticBus creates a bus that always returns result.
// A nil result makes Publish return (nil, nil).
func NewStaticBus(result *PublishResult) *StaticBus {
	return &StaticBus{result: result}
}

// Publish returns a copy of the configured result.
func (b *StaticBus) Publish(ctx context.Context, env *Envelope) (*PublishResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result == nil {
		return nil, nil
	}
	res := *b.result
	return &res, nil
}

// SetResult replaces the configured result.
func (b *StaticBus) SetResult(result *PublishResult) {
	b.mu.Lock()
	b.result = result
	b.mu.Unlock()
}

// RecordedEnvelope is an envelope that was published during a test
type RecordedEnvelope struct {
	Envelope  *Envelope
	Timestamp time.Time
}

// RecordingBus wraps a bus and records all published envelopes.
type RecordingBus struct {
	Bus
	mu        sync.Mutex
	envelopes []RecordedEnvelope
}

// NewRecordingBus creates a bus that records envelopes and delegates to b.
// Panics if b is nil.
func NewRecordingBus(b Bus) *RecordingBus {
	if b == nil {
		panic("botevent: bus is required for NewRecordingBus")
	}
	return &RecordingBus{
		Bus:       b,
		envelopes: make([]RecordedEnvelope, 0),
	}
}

// Publish records the envelope and delegates to the underlying bus
func (b *RecordingBus) Publish(ctx context.Context, env *Envelope) (*PublishResult, error) {
	b.mu.Lock()
	b.envelopes = append(b.envelopes, RecordedEnvelope{
		Envelope:  env,
		Timestamp: time.Now(),
	})
	b.mu.Unlock()

	return b.Bus.Publish(ctx, env)
}

// Envelopes returns a copy of all recorded envelopes
func (b *RecordingBus) Envelopes() []RecordedEnvelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]RecordedEnvelope, len(b.envelopes))
	copy(result, b.envelopes)
	return result
}

// Last returns the last recorded envelope, or nil if none
func (b *RecordingBus) Last() *Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.envelopes) == 0 {
		return nil
	}
	return b.envelopes[len(b.envelopes)-1].Envelope
}

// Count returns the number of recorded envelopes
func (b *RecordingBus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.envelopes)
}

// Reset clears all recorded envelopes
func (b *RecordingBus) Reset() {
	b.mu.Lock()
	b.envelopes = make([]RecordedEnvelope, 0)
	b.mu.Unlock()
}

// FailingBus fails publishes with a configured error.
// Useful for testing error propagation.
type FailingBus struct {
	Bus
	mu       sync.Mutex
	err      error
	failAll  bool
	failNext int
}

// NewFailingBus creates a bus that can be configured to fail.
// Panics if b is nil.
func NewFailingBus(b Bus) *FailingBus {
	if b == nil {
		panic("botevent: bus is required for NewFailingBus")
	}
	return &FailingBus{Bus: b}
}

// Publish fails if configured, otherwise delegates to the underlying bus
func (b *FailingBus) Publish(ctx context.Context, env *Envelope) (*PublishResult, error) {
	b.mu.Lock()
	shouldFail := b.failAll || b.failNext > 0
	err := b.err
	if b.failNext > 0 {
		b.failNext--
	}
	b.mu.Unlock()

	if shouldFail {
		if err != nil {
			return nil, err
		}
		return nil, ErrBusClosed
	}

	return b.Bus.Publish(ctx, env)
}

// FailAll makes all publishes fail with the given error
func (b *FailingBus) FailAll(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAll = true
	b.err = err
}

// FailNext makes the next n publishes fail with the given error
func (b *FailingBus) FailNext(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = n
	b.err = err
}

// Reset clears all failure configuration
func (b *FailingBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAll = false
	b.failNext = 0
	b.err = nil
}
