// Package usage tracks whether emitters actually look at the outcome of the
// events they publish.
//
// An emitter that publishes an interceptable event and never inspects the
// proceed flag silently ignores any block its responders raised. In
// development builds the publisher records every emission in a Validator and
// marks it once the proceed flag is read, so tooling can flag emissions that
// were blocking but never checked.
//
// # Backends
//
//   - Nop: production default, records nothing
//   - MemoryValidator: single process, with TTL cleanup
//   - RedisValidator: shared across processes
//   - MongoValidator: shared across processes, with a cross-process
//     Unchecked report
//
// # Usage
//
//	validator := usage.NewMemoryValidator(time.Hour)
//	defer validator.Close()
//
//	pub, _ := botevent.NewPublisher(bus,
//	    botevent.WithDevelopment(true),
//	    botevent.WithUsageValidator(validator))
//
//	// ... later, in a test or at shutdown
//	validator.Report(slog.Default())
package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNotTracked is returned when an event ID was never tracked or has expired.
var ErrNotTracked = errors.New("emission not tracked")

// Validator records emissions and proceed checks.
//
// Implementations must be safe for concurrent use. Errors are diagnostic
// only; the publisher never lets them change an emit outcome.
type Validator interface {
	// TrackEmission records that an event was emitted.
	TrackEmission(ctx context.Context, eventType, eventID string, wasBlocking bool) error

	// MarkProgressionChecked records that the emitter read the proceed flag.
	MarkProgressionChecked(ctx context.Context, eventID string) error
}

// Emission is the tracked state of one emitted event.
type Emission struct {
	EventType   string
	EventID     string
	WasBlocking bool
	Checked     bool
	EmittedAt   time.Time
}

// Nop is a Validator that records nothing.
type Nop struct{}

// TrackEmission does nothing.
func (Nop) TrackEmission(context.Context, string, string, bool) error { return nil }

// MarkProgressionChecked does nothing.
func (Nop) MarkProgressionChecked(context.Context, string) error { return nil }

// Compile-time check
var _ Validator = Nop{}

func reportUnchecked(logger *slog.Logger, unchecked []Emission) int {
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range unchecked {
		logger.Warn("blocking event result was never checked",
			"event", e.EventType,
			"event_id", e.EventID,
			"emitted_at", e.EmittedAt)
	}
	return len(unchecked)
}
