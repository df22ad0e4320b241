package botevent

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Mode selects how a bus treats responder verdicts for an event type.
type Mode string

const (
	// ModePassive events are observed only; verdicts are ignored.
	ModePassive Mode = "PASSIVE"
	// ModeApproval events are vetoed by any single block.
	ModeApproval Mode = "APPROVAL"
	// ModeInterceptable events follow the majority verdict.
	ModeInterceptable Mode = "INTERCEPTABLE"
	// ModeConsensus events need a quorum of continue verdicts.
	ModeConsensus Mode = "CONSENSUS"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePassive, ModeApproval, ModeInterceptable, ModeConsensus:
		return true
	}
	return false
}

// ParseMode converts s to a Mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Behavior describes how an event type is handled.
type Behavior struct {
	Mode          Mode
	Interceptable bool
	// DefaultPriority is empty when the event type has no default.
	DefaultPriority Priority
}

// BehaviorRegistry resolves the behavior of an event type.
// Implementations must be safe for concurrent use.
type BehaviorRegistry interface {
	Behavior(eventType string) Behavior
}

// wildcardSuffix marks a namespace entry, e.g. "security/*".
const wildcardSuffix = "/*"

// Registry is an in-memory BehaviorRegistry.
//
// Lookup order: exact event type, then the longest matching namespace
// wildcard ("security/*" matches "security/alert" and "security/auth/fail"),
// then the fallback behavior.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]Behavior
	fallback  Behavior
}

// NewRegistry creates a registry whose fallback is a passive behavior.
func NewRegistry() *Registry {
	return &Registry{
		behaviors: make(map[string]Behavior),
		fallback:  Behavior{Mode: ModePassive},
	}
}

// Set registers the behavior for an event type or a "<namespace>/*" pattern.
func (r *Registry) Set(eventType string, b Behavior) error {
	if eventType == "" || eventType == wildcardSuffix {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, eventType)
	}
	if !b.Mode.Valid() {
		return fmt.Errorf("%w: %q for %q", ErrInvalidMode, b.Mode, eventType)
	}
	if b.DefaultPriority != "" && !b.DefaultPriority.Valid() {
		return fmt.Errorf("%w: %q for %q", ErrInvalidPriority, b.DefaultPriority, eventType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors[eventType] = b
	return nil
}

// SetFallback sets the behavior returned for unknown event types.
func (r *Registry) SetFallback(b Behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = b
}

// Behavior returns the behavior for an event type.
func (r *Registry) Behavior(eventType string) Behavior {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.behaviors[eventType]; ok {
		return b
	}

	ns := eventType
	for {
		idx := strings.LastIndexByte(ns, '/')
		if idx <= 0 {
			break
		}
		ns = ns[:idx]
		if b, ok := r.behaviors[ns+wildcardSuffix]; ok {
			return b
		}
	}
	return r.fallback
}

// Types returns the registered event types and patterns, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.behaviors))
}

// Compile-time check
var _ BehaviorRegistry = (*Registry)(nil)
