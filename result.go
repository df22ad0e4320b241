package botevent

import (
	"fmt"
	"sync"
)

// EmitResult is the caller-facing outcome of Emit.
//
// In development mode, the first call to Proceed is reported to the usage
// validator so that tooling can find blocking results that were ignored.
// The other accessors have no side effects.
type EmitResult struct {
	proceed     bool
	eventID     string
	wasBlocking bool
	reason      string

	onCheck func()
	once    sync.Once
}

// Proceed reports whether the emitter may go ahead. It is true only when the
// bus succeeded and the progression is continue.
//
// The first call marks the event as checked with the usage validator.
func (r *EmitResult) Proceed() bool {
	r.once.Do(func() {
		if r.onCheck != nil {
			r.onCheck()
		}
	})
	return r.proceed
}

// EventID returns the bus-assigned event ID, or "" if none was given.
func (r *EmitResult) EventID() string {
	return r.eventID
}

// WasBlocking reports whether the bus held the event on responder verdicts.
func (r *EmitResult) WasBlocking() bool {
	return r.wasBlocking
}

// Reason explains why the event did not proceed. It is empty when the event
// proceeds.
func (r *EmitResult) Reason() string {
	return r.reason
}

// String does not count as a proceed check.
func (r *EmitResult) String() string {
	if r.proceed {
		return fmt.Sprintf("EmitResult{proceed=true, event_id=%q, blocking=%t}", r.eventID, r.wasBlocking)
	}
	return fmt.Sprintf("EmitResult{proceed=false, event_id=%q, blocking=%t, reason=%q}",
		r.eventID, r.wasBlocking, r.reason)
}
