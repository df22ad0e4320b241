// Package nats provides a bus whose responders live behind NATS.
//
// Publish sends the encoded envelope on "<prefix>.<event type>" (with "/"
// turned into ".") and collects replies on a private inbox until the reply
// timeout, the expected responder count or the context ends. Replies are
// aggregated with botevent.Policy exactly as the local bus does.
//
//	conn, _ := nats.Connect(nats.DefaultURL)
//	bus, err := botnats.New(conn,
//	    botnats.WithRegistry(registry),
//	    botnats.WithReplyTimeout(500*time.Millisecond),
//	)
//
// Responders attach with Serve. Subject wildcards work, so "security/*"
// receives every event in the security namespace:
//
//	sub, err := botnats.Serve(conn, "security/*", "scanner", scanner)
//	defer sub.Unsubscribe()
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rbaliyan/botevent"
	"github.com/rbaliyan/botevent/transport/codec"
)

// Errors
var (
	ErrConnRequired      = errors.New("nats connection is required")
	ErrEnvelopeRequired  = errors.New("envelope is required")
	ErrResponderRequired = errors.New("responder is required")
)

// Message headers
const (
	HeaderContentType = "Content-Type"
	HeaderEventID     = "Botevent-Event-Id"
)

// Conn is the subset of *nats.Conn used by this package.
type Conn interface {
	Publish(subj string, data []byte) error
	PublishMsg(m *nats.Msg) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	NewRespInbox() string
}

// Subject returns the NATS subject for an event type.
func Subject(prefix, eventType string) string {
	return prefix + "." + strings.ReplaceAll(eventType, "/", ".")
}

// Bus implements botevent.Bus over NATS request/multi-reply.
type Bus struct {
	status        int32
	conn          Conn
	codec         codec.Codec
	registry      botevent.BehaviorRegistry
	policy        botevent.Policy
	subjectPrefix string
	timeout       time.Duration
	expected      int
	bufferSize    int
	logger        *slog.Logger
}

// New creates a NATS bus on an established connection.
func New(conn Conn, opts ...Option) (*Bus, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	o := newOptions(opts...)
	return &Bus{
		status:        1,
		conn:          conn,
		codec:         o.codec,
		registry:      o.registry,
		policy:        o.policy,
		subjectPrefix: o.subjectPrefix,
		timeout:       o.timeout,
		expected:      o.expected,
		bufferSize:    o.bufferSize,
		logger:        o.logger.With("component", "bus>nats"),
	}, nil
}

func (b *Bus) isOpen() bool {
	return atomic.LoadInt32(&b.status) == 1
}

// Publish sends the envelope to the responders of its type and aggregates
// the replies that arrive within the reply window.
//
// Transport failures and context cancellation are returned as errors.
// Replies that fail to decode are dropped.
func (b *Bus) Publish(ctx context.Context, env *botevent.Envelope) (*botevent.PublishResult, error) {
	if !b.isOpen() {
		return nil, botevent.ErrBusClosed
	}
	if env == nil {
		return nil, ErrEnvelopeRequired
	}

	eventID := botevent.NewID()
	data, err := b.codec.EncodeRequest(&codec.Request{EventID: eventID, Envelope: env})
	if err != nil {
		return nil, err
	}

	replies := make(chan *nats.Msg, b.bufferSize)
	inbox := b.conn.NewRespInbox()
	sub, err := b.conn.Subscribe(inbox, func(m *nats.Msg) {
		select {
		case replies <- m:
		default:
			b.logger.Warn("reply buffer full, dropping reply", "event", env.Type, "event_id", eventID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe inbox: %w", err)
	}
	defer func() {
		if sub != nil {
			_ = sub.Unsubscribe()
		}
	}()

	msg := nats.NewMsg(Subject(b.subjectPrefix, env.Type))
	msg.Reply = inbox
	msg.Data = data
	msg.Header.Set(HeaderContentType, b.codec.ContentType())
	msg.Header.Set(HeaderEventID, eventID)
	if err := b.conn.PublishMsg(msg); err != nil {
		return nil, fmt.Errorf("nats publish: %w", err)
	}

	responses, err := b.gather(ctx, eventID, replies)
	if err != nil {
		return nil, err
	}

	behavior := b.registry.Behavior(env.Type)
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

// gather collects replies until the reply timeout, the expected count or
// ctx ends. Only ctx ending is an error.
func (b *Bus) gather(ctx context.Context, eventID string, replies <-chan *nats.Msg) ([]*botevent.ResponderResponse, error) {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	var responses []*botevent.ResponderResponse
	for {
		if b.expected > 0 && len(responses) >= b.expected {
			return responses, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return responses, nil
		case m := <-replies:
			c := b.codec
			if ct := m.Header.Get(HeaderContentType); ct != "" {
				c = codec.ByContentType(ct)
			}
			resp, err := c.DecodeReply(m.Data)
			if err != nil {
				b.logger.Warn("failed to decode reply", "event_id", eventID, "error", err)
				continue
			}
			responses = append(responses, resp)
		}
	}
}

// Close stops the bus. The connection is owned by the caller and stays open.
func (b *Bus) Close(ctx context.Context) error {
	atomic.StoreInt32(&b.status, 0)
	return nil
}

// Serve attaches a responder to an event type (or "<namespace>/*") and
// answers every request with its verdict. A responder error or panic sends
// no reply. Unsubscribe the returned subscription to stop serving.
func Serve(conn Conn, eventType, responderID string, r botevent.Responder, opts ...ServeOption) (*nats.Subscription, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if r == nil {
		return nil, ErrResponderRequired
	}
	o := newServeOptions(opts...)
	logger := o.logger.With("component", "responder>"+responderID)
	r = botevent.Chain(r, o.middleware...)

	handle := func(m *nats.Msg) {
		if m.Reply == "" {
			return
		}
		c := o.codec
		if ct := m.Header.Get(HeaderContentType); ct != "" {
			c = codec.ByContentType(ct)
		}
		req, err := c.DecodeRequest(m.Data)
		if err != nil {
			logger.Warn("failed to decode request", "subject", m.Subject, "error", err)
			return
		}

		ctx := botevent.ContextWithResponder(context.Background(), req.EventID, responderID, logger)
		resp, err := respond(ctx, o.timeout, r, req.Envelope)
		if err != nil || resp == nil {
			logger.Debug("no verdict", "event", req.Envelope.Type, "event_id", req.EventID, "error", err)
			return
		}

		data, err := c.EncodeReply(&botevent.ResponderResponse{
			ResponderID: responderID,
			Response:    resp,
			Timestamp:   time.Now(),
		})
		if err != nil {
			logger.Warn("failed to encode reply", "event_id", req.EventID, "error", err)
			return
		}
		reply := nats.NewMsg(m.Reply)
		reply.Data = data
		reply.Header.Set(HeaderContentType, c.ContentType())
		reply.Header.Set(HeaderEventID, req.EventID)
		if err := conn.PublishMsg(reply); err != nil {
			logger.Warn("failed to send reply", "event_id", req.EventID, "error", err)
		}
	}

	sub, err := conn.Subscribe(Subject(o.subjectPrefix, eventType), handle)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	logger.Debug("serving", "event", eventType)
	return sub, nil
}

func respond(ctx context.Context, timeout time.Duration, r botevent.Responder, env *botevent.Envelope) (resp *botevent.BotEventResponse, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("responder panic: %v\n%s", p, debug.Stack())
		}
	}()
	return r.Respond(ctx, env)
}

// Compile-time interface checks
var (
	_ botevent.Bus = (*Bus)(nil)
	_ Conn         = (*nats.Conn)(nil)
)
