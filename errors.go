package botevent

import "errors"

var (
	// ErrBusRequired is returned by NewPublisher when no bus is supplied.
	ErrBusRequired = errors.New("bus is required")

	// ErrBusClosed is returned by bus implementations after Close.
	ErrBusClosed = errors.New("bus is closed")

	// ErrInvalidPriority reports an unknown priority level.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidMode reports an unknown behavior mode.
	ErrInvalidMode = errors.New("invalid event mode")

	// ErrInvalidEventType reports an empty or malformed event type.
	ErrInvalidEventType = errors.New("invalid event type")
)

// Fallback reasons used when a blocked event carries no usable reason.
const (
	ReasonNotProvided  = "No specific reason provided"
	ReasonBlockedNoWhy = "Event was blocked but no reasons were provided"
)
