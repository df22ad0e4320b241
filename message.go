package botevent

import "time"

// Progression is a verdict on whether an event should go ahead.
type Progression string

const (
	// ProgressionContinue lets the event proceed.
	ProgressionContinue Progression = "continue"
	// ProgressionBlock stops the event.
	ProgressionBlock Progression = "block"
	// ProgressionDefer postpones the event.
	ProgressionDefer Progression = "defer"
	// ProgressionRetry asks the emitter to try again later.
	ProgressionRetry Progression = "retry"
)

// Valid reports whether p is one of the four known progression values.
// Anything else must be treated as unsafe.
func (p Progression) Valid() bool {
	switch p {
	case ProgressionContinue, ProgressionBlock, ProgressionDefer, ProgressionRetry:
		return true
	}
	return false
}

func (p Progression) String() string {
	return string(p)
}

// ProgressionState is the progression attached to a published envelope.
type ProgressionState struct {
	State       Progression `json:"state" msgpack:"state"`
	ProcessedBy []string    `json:"processedBy" msgpack:"processed_by"`
}

// Envelope is the unit handed to the bus. A fresh envelope is built for
// every Emit call.
type Envelope struct {
	Type        string           `json:"type" msgpack:"type"`
	Data        any              `json:"data" msgpack:"data"`
	Metadata    Metadata         `json:"metadata" msgpack:"metadata"`
	Progression ProgressionState `json:"progression" msgpack:"progression"`
}

// Priority returns the envelope priority, falling back to DefaultPriority.
func (e *Envelope) Priority() Priority {
	if p, ok := e.Metadata.Priority(); ok {
		return p
	}
	return DefaultPriority
}

// BotEventResponse is one responder's verdict on an event.
type BotEventResponse struct {
	Progression Progression `json:"progression" msgpack:"progression"`
	Reason      string      `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// ResponderResponse wraps a BotEventResponse with the responder identity.
// Entries with a nil Response are malformed and ignored by aggregation.
type ResponderResponse struct {
	ResponderID string            `json:"responderId" msgpack:"responder_id"`
	Response    *BotEventResponse `json:"response" msgpack:"response"`
	Timestamp   time.Time         `json:"timestamp" msgpack:"timestamp"`
}

// PublishResult is what a Bus reports back for a published envelope.
type PublishResult struct {
	Success bool
	// EventID is empty when the bus did not assign one.
	EventID string
	// Progression is not trusted: values outside the known set never proceed.
	Progression Progression
	WasBlocking bool
	Responses   []*ResponderResponse
}

// validResponses returns the nested responses of all well-formed entries.
func validResponses(entries []*ResponderResponse) []*BotEventResponse {
	out := make([]*BotEventResponse, 0, len(entries))
	for _, r := range entries {
		if r == nil || r.Response == nil {
			continue
		}
		out = append(out, r.Response)
	}
	return out
}
