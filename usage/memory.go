package usage

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// MemoryValidator implements Validator with an in-process map.
//
// Entries expire after the configured TTL; a background goroutine removes
// them every cleanup interval. Call Close to stop it.
type MemoryValidator struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	stopCh  chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	emission Emission
	expiry   time.Time
}

// DefaultCleanupInterval is how often expired entries are removed.
var DefaultCleanupInterval = time.Minute

// NewMemoryValidator creates a validator that remembers emissions for ttl.
// A zero ttl keeps entries until Close.
func NewMemoryValidator(ttl time.Duration) *MemoryValidator {
	v := &MemoryValidator{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	if ttl > 0 {
		go v.cleanup()
	}
	return v
}

// TrackEmission records an emission. Tracking the same ID again resets it.
func (v *MemoryValidator) TrackEmission(ctx context.Context, eventType, eventID string, wasBlocking bool) error {
	now := time.Now()
	e := &memoryEntry{
		emission: Emission{
			EventType:   eventType,
			EventID:     eventID,
			WasBlocking: wasBlocking,
			EmittedAt:   now,
		},
	}
	if v.ttl > 0 {
		e.expiry = now.Add(v.ttl)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[eventID] = e
	return nil
}

// MarkProgressionChecked marks an emission as checked.
// Returns ErrNotTracked for unknown or expired IDs.
func (v *MemoryValidator) MarkProgressionChecked(ctx context.Context, eventID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[eventID]
	if !ok || e.expired(time.Now()) {
		return ErrNotTracked
	}
	e.emission.Checked = true
	return nil
}

// Emission returns the tracked state of an event.
func (v *MemoryValidator) Emission(eventID string) (Emission, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	e, ok := v.entries[eventID]
	if !ok || e.expired(time.Now()) {
		return Emission{}, false
	}
	return e.emission, true
}

// Unchecked returns the blocking emissions whose proceed flag was never
// read, oldest first.
func (v *MemoryValidator) Unchecked() []Emission {
	now := time.Now()

	v.mu.RLock()
	var out []Emission
	for _, e := range v.entries {
		if e.emission.WasBlocking && !e.emission.Checked && !e.expired(now) {
			out = append(out, e.emission)
		}
	}
	v.mu.RUnlock()

	slices.SortFunc(out, func(a, b Emission) int {
		if c := a.EmittedAt.Compare(b.EmittedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.EventID, b.EventID)
	})
	return out
}

// Report logs every unchecked blocking emission at warn level and returns
// how many were found.
func (v *MemoryValidator) Report(logger *slog.Logger) int {
	return reportUnchecked(logger, v.Unchecked())
}

// Len returns the number of entries, including expired ones not yet
// cleaned up.
func (v *MemoryValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// Reset removes all entries.
func (v *MemoryValidator) Reset() {
	v.mu.Lock()
	v.entries = make(map[string]*memoryEntry)
	v.mu.Unlock()
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (v *MemoryValidator) Close() {
	v.once.Do(func() {
		close(v.stopCh)
	})
}

func (v *MemoryValidator) cleanup() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			v.mu.Lock()
			for id, e := range v.entries {
				if e.expired(now) {
					delete(v.entries, id)
				}
			}
			v.mu.Unlock()
		}
	}
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

// Compile-time check
var _ Validator = (*MemoryValidator)(nil)
