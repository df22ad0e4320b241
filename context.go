package botevent

import (
	"context"
	"log/slog"
)

const (
	responderContextKey contextKey = iota
)

type responderContextData struct {
	eventID     string
	responderID string
	logger      *slog.Logger
}

// contextKey
type contextKey int

// ContextWithResponder returns a context carrying the event and responder
// identity. Buses call it before invoking a responder.
func ContextWithResponder(ctx context.Context, eventID, responderID string, l *slog.Logger) context.Context {
	return context.WithValue(ctx, responderContextKey, &responderContextData{
		eventID:     eventID,
		responderID: responderID,
		logger:      l,
	})
}

// ContextEventID get event id stored in the responder context
func ContextEventID(ctx context.Context) string {
	s, ok := ctx.Value(responderContextKey).(*responderContextData)
	if ok {
		return s.eventID
	}
	return ""
}

// ContextResponderID get responder id stored in the responder context
func ContextResponderID(ctx context.Context) string {
	s, ok := ctx.Value(responderContextKey).(*responderContextData)
	if ok {
		return s.responderID
	}
	return ""
}

// ContextLogger get the responder logger, or slog.Default when none is set
func ContextLogger(ctx context.Context) *slog.Logger {
	s, ok := ctx.Value(responderContextKey).(*responderContextData)
	if ok && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
