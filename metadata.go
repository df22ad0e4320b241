package botevent

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MetadataKeyPriority is the metadata key carrying the event priority.
const MetadataKeyPriority = "priority"

// Priority is the urgency attached to every published event.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// DefaultPriority is used when neither the caller nor the event behavior
// supplies a priority.
const DefaultPriority = PriorityMedium

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ParsePriority converts s to a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return p, nil
}

// Metadata is free-form event metadata. Keys supplied by the caller are
// carried to the bus untouched.
type Metadata map[string]any

// Priority returns the priority stored in the metadata, if any.
// Both Priority and plain string values are accepted.
func (m Metadata) Priority() (Priority, bool) {
	if m == nil {
		return "", false
	}
	switch v := m[MetadataKeyPriority].(type) {
	case Priority:
		return v, v != ""
	case string:
		return Priority(v), v != ""
	}
	return "", false
}

// Clone returns a shallow copy of the metadata. A nil receiver yields an
// empty, non-nil map.
func (m Metadata) Clone() Metadata {
	c := make(Metadata, len(m)+1)
	maps.Copy(c, m)
	return c
}

// String renders metadata with sorted keys.
func (m Metadata) String() string {
	if m == nil {
		return ""
	}
	keys := slices.Sorted(maps.Keys(m))
	vals := make([]string, 0, len(keys))
	for _, key := range keys {
		vals = append(vals, fmt.Sprintf("%s=%v", key, m[key]))
	}
	return fmt.Sprintf("Metadata{%s}", strings.Join(vals, ", "))
}
