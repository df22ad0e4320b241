package nats

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/botevent"
	"github.com/rbaliyan/botevent/transport/codec"
)

// Default configuration values
var (
	// DefaultSubjectPrefix is prepended to every event subject.
	DefaultSubjectPrefix = "botevent"

	// DefaultReplyTimeout is how long the bus collects replies.
	DefaultReplyTimeout = 2 * time.Second

	// DefaultReplyBuffer is the reply channel size per publish.
	DefaultReplyBuffer = 64

	// DefaultRespondTimeout bounds a served responder.
	DefaultRespondTimeout = 5 * time.Second
)

// options holds configuration for the bus (unexported)
type options struct {
	codec         codec.Codec
	registry      botevent.BehaviorRegistry
	policy        botevent.Policy
	subjectPrefix string
	timeout       time.Duration
	expected      int
	bufferSize    int
	logger        *slog.Logger
}

// Option configures the NATS bus
type Option func(*options)

// WithCodec sets the codec for request serialization
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithRegistry sets the behavior registry used to pick the aggregation rule.
func WithRegistry(r botevent.BehaviorRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithQuorum sets the continue quorum for CONSENSUS events.
func WithQuorum(n int) Option {
	return func(o *options) {
		o.policy.Quorum = n
	}
}

// WithSubjectPrefix sets the subject prefix.
func WithSubjectPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.subjectPrefix = prefix
		}
	}
}

// WithReplyTimeout sets how long a publish waits for replies.
func WithReplyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithExpectedResponders stops collecting as soon as n replies arrived.
// Zero waits for the full reply timeout.
func WithExpectedResponders(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.expected = n
		}
	}
}

// WithReplyBuffer sets the reply channel buffer size. Replies beyond the
// buffer are dropped.
func WithReplyBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		codec:         codec.Default(),
		subjectPrefix: DefaultSubjectPrefix,
		timeout:       DefaultReplyTimeout,
		bufferSize:    DefaultReplyBuffer,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = botevent.NewRegistry()
	}
	return o
}

// serveOptions holds configuration for a served responder (unexported)
type serveOptions struct {
	codec         codec.Codec
	subjectPrefix string
	timeout       time.Duration
	middleware    []botevent.Middleware
	logger        *slog.Logger
}

// ServeOption configures Serve
type ServeOption func(*serveOptions)

// WithServeCodec sets the codec used for replies.
// Requests are decoded by their Content-Type header.
func WithServeCodec(c codec.Codec) ServeOption {
	return func(o *serveOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithServeSubjectPrefix sets the subject prefix. It must match the bus.
func WithServeSubjectPrefix(prefix string) ServeOption {
	return func(o *serveOptions) {
		if prefix != "" {
			o.subjectPrefix = prefix
		}
	}
}

// WithServeTimeout bounds each responder call.
func WithServeTimeout(d time.Duration) ServeOption {
	return func(o *serveOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithServeMiddleware wraps the served responder.
// The first middleware is the outermost.
func WithServeMiddleware(mws ...botevent.Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, mws...)
	}
}

// WithServeLogger sets the logger
func WithServeLogger(l *slog.Logger) ServeOption {
	return func(o *serveOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func newServeOptions(opts ...ServeOption) *serveOptions {
	o := &serveOptions{
		codec:         codec.Default(),
		subjectPrefix: DefaultSubjectPrefix,
		timeout:       DefaultRespondTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
