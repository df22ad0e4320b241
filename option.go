package botevent

import (
	"log/slog"

	"github.com/rbaliyan/botevent/usage"
)

// publisherOptions holds configuration for a publisher (unexported)
type publisherOptions struct {
	registry       BehaviorRegistry
	validator      usage.Validator
	development    bool
	logger         *slog.Logger
	tracingEnabled bool
	metricsEnabled bool
}

// Option configures a Publisher.
type Option func(*publisherOptions)

// WithRegistry sets the behavior registry. The default is an empty Registry
// whose fallback is PASSIVE.
func WithRegistry(r BehaviorRegistry) Option {
	return func(o *publisherOptions) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithUsageValidator sets the validator used in development mode.
func WithUsageValidator(v usage.Validator) Option {
	return func(o *publisherOptions) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithDevelopment enables development-mode usage tracking.
func WithDevelopment(enabled bool) Option {
	return func(o *publisherOptions) {
		o.development = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *publisherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracing enables/disables OpenTelemetry tracing. Default is true.
func WithTracing(enabled bool) Option {
	return func(o *publisherOptions) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables/disables OpenTelemetry metrics. Default is true.
func WithMetrics(enabled bool) Option {
	return func(o *publisherOptions) {
		o.metricsEnabled = enabled
	}
}

// newPublisherOptions creates options with defaults and applies provided options
func newPublisherOptions(opts ...Option) *publisherOptions {
	o := &publisherOptions{
		validator:      usage.Nop{},
		logger:         slog.Default(),
		tracingEnabled: true,
		metricsEnabled: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	return o
}
