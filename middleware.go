package botevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by a responder whose circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Middleware wraps a Responder.
type Middleware func(next Responder) Responder

// Chain applies middlewares to r. The first middleware is the outermost.
func Chain(r Responder, mws ...Middleware) Responder {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			r = mws[i](r)
		}
	}
	return r
}

// LoggingMiddleware logs every verdict at debug level and every failure at
// warn level, using the logger from the responder context.
func LoggingMiddleware() Middleware {
	return func(next Responder) Responder {
		return ResponderFunc(func(ctx context.Context, env *Envelope) (*BotEventResponse, error) {
			start := time.Now()
			resp, err := next.Respond(ctx, env)
			logger := ContextLogger(ctx)
			if err != nil {
				logger.Warn("responder failed",
					"event", env.Type,
					"event_id", ContextEventID(ctx),
					"responder", ContextResponderID(ctx),
					"error", err)
				return resp, err
			}
			if resp != nil {
				logger.Debug("responder verdict",
					"event", env.Type,
					"event_id", ContextEventID(ctx),
					"responder", ContextResponderID(ctx),
					"progression", string(resp.Progression),
					"duration", time.Since(start))
			}
			return resp, nil
		})
	}
}

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed means the circuit is functioning normally
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit is open due to failures (requests fail fast)
	CircuitOpen
	// CircuitHalfOpen means the circuit is testing if the responder recovered
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return fmt.Sprintf("CircuitState(%d)", int(s))
}

// CircuitBreaker stops calling a responder that keeps failing. While open,
// the responder casts no vote.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	timeout          time.Duration

	state         CircuitState
	failures      int
	successes     int
	lastStateTime time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
// failureThreshold: number of consecutive failures before opening (default: 5)
// successThreshold: number of consecutive successes in half-open before closing (default: 2)
// timeout: time to wait before attempting half-open (default: 30s)
func NewCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            CircuitClosed,
		lastStateTime:    time.Now(),
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may go through. An open circuit moves to
// half-open once the timeout has passed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if time.Since(cb.lastStateTime) <= cb.timeout {
			return false
		}
		cb.setState(CircuitHalfOpen)
	}
	return true
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.setState(CircuitClosed)
		}
	}
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successes = 0
	cb.failures++
	switch {
	case cb.state == CircuitClosed && cb.failures >= cb.failureThreshold:
		cb.setState(CircuitOpen)
	case cb.state == CircuitHalfOpen:
		cb.setState(CircuitOpen)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s CircuitState) {
	cb.state = s
	cb.successes = 0
	cb.lastStateTime = time.Now()
}

// CircuitBreakerMiddleware fails fast with ErrCircuitOpen while cb is open.
// Errors and empty verdicts count as failures.
//
//	cb := botevent.NewCircuitBreaker(5, 2, 30*time.Second)
//	bus.Subscribe("security/*", "scanner", botevent.Chain(scanner, botevent.CircuitBreakerMiddleware(cb)))
func CircuitBreakerMiddleware(cb *CircuitBreaker) Middleware {
	return func(next Responder) Responder {
		return ResponderFunc(func(ctx context.Context, env *Envelope) (*BotEventResponse, error) {
			if !cb.Allow() {
				ContextLogger(ctx).Warn("circuit breaker open, failing fast",
					"event", env.Type,
					"responder", ContextResponderID(ctx),
					"state", cb.State().String())
				return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, ContextResponderID(ctx))
			}

			resp, err := next.Respond(ctx, env)
			if err != nil || resp == nil {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
			return resp, err
		})
	}
}
