package botevent

import (
	"context"

	"github.com/google/uuid"
)

// Bus delivers envelopes to responders and reports the outcome.
//
// Publish may return an error for transport failures; the Publisher hands
// that error to its caller unchanged. Timeouts and retries are the bus's
// concern.
type Bus interface {
	Publish(ctx context.Context, env *Envelope) (*PublishResult, error)
}

// BusFunc adapts a function to the Bus interface.
type BusFunc func(ctx context.Context, env *Envelope) (*PublishResult, error)

// Publish calls f(ctx, env).
func (f BusFunc) Publish(ctx context.Context, env *Envelope) (*PublishResult, error) {
	return f(ctx, env)
}

// Responder is a participant that returns a verdict for each event it
// receives. Returning an error means "no response".
type Responder interface {
	Respond(ctx context.Context, env *Envelope) (*BotEventResponse, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, env *Envelope) (*BotEventResponse, error)

// Respond calls f(ctx, env).
func (f ResponderFunc) Respond(ctx context.Context, env *Envelope) (*BotEventResponse, error) {
	return f(ctx, env)
}

// NewID generates a new unique event ID
func NewID() string {
	return uuid.NewString()
}
