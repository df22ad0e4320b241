package local

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/botevent"
	"golang.org/x/time/rate"
)

// DefaultResponderTimeout bounds how long a single responder may take.
var DefaultResponderTimeout = 5 * time.Second

// options holds configuration for the bus (unexported)
type options struct {
	registry       botevent.BehaviorRegistry
	policy         botevent.Policy
	timeout        time.Duration
	maxConcurrency int
	limiter        *rate.Limiter
	middleware     []botevent.Middleware
	logger         *slog.Logger
}

// Option configures the local bus
type Option func(*options)

// WithRegistry sets the behavior registry used to pick the aggregation rule.
func WithRegistry(r botevent.BehaviorRegistry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithQuorum sets the continue quorum for CONSENSUS events.
// Zero means a simple majority of the responses received.
func WithQuorum(n int) Option {
	return func(o *options) {
		o.policy.Quorum = n
	}
}

// WithResponderTimeout sets the per-responder timeout.
// Set to 0 to wait for responders indefinitely (bounded only by ctx).
func WithResponderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxConcurrency caps how many responders run at once for one event.
// Set to 0 for no limit.
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithRateLimit throttles publishes to r per second with the given burst.
// Publish waits for a token and fails if ctx ends first.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		if r > 0 && burst > 0 {
			o.limiter = rate.NewLimiter(r, burst)
		}
	}
}

// WithMiddleware wraps every responder subscribed after the bus is created.
// The first middleware is the outermost.
func WithMiddleware(mws ...botevent.Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mws...)
	}
}

// WithLogger sets the logger for the bus
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// newOptions creates options with defaults and applies provided options
func newOptions(opts ...Option) *options {
	o := &options{
		timeout: DefaultResponderTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = botevent.NewRegistry()
	}
	return o
}
