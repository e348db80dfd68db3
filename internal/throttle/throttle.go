package throttle

import (
	"sync"
)

// DefaultWindow is the throttling window, in seconds, used when the
// configuration does not supply one.
const DefaultWindow int64 = 10

// Decision describes a single accept/throttle outcome. It is handed to the
// observer as a side channel only; nothing in it feeds back into throttling.
type Decision struct {
	Key       string
	EventID   string
	Timestamp int64
	Last      int64 // last accepted timestamp for the key, 0 if first sight
	Window    int64 // window in effect when the decision was made
	Accepted  bool
	FirstSeen bool
}

// Observer receives every decision the throttler makes. Implementations must
// not block; the throttler calls it outside its lock.
type Observer func(d Decision)

// Option configures a Throttler at construction time.
type Option func(*Throttler)

// WithObserver attaches a decision observer. Pass nil to disable.
func WithObserver(obs Observer) Option {
	return func(t *Throttler) { t.observer = obs }
}

// Throttler suppresses events that arrive too soon after the last accepted
// event for the same key. For each key, the first event is always accepted;
// after that an event is accepted only when at least `window` time units have
// elapsed since the previously accepted one (boundary inclusive).
//
// All methods are safe for concurrent use. A single mutex serializes every
// operation on one instance; separate instances never contend.
type Throttler struct {
	mu           sync.Mutex
	window       int64
	lastAccepted map[string]int64
	observer     Observer
}

// New creates a Throttler with the given window, in abstract time units
// (seconds in practice). The window may be zero or negative; such a window
// accepts effectively every event.
func New(window int64, opts ...Option) *Throttler {
	t := &Throttler{
		window:       window,
		lastAccepted: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ShouldProcess reports whether the event should be processed (true) or
// throttled (false).
//
// The event ID plays no role in the decision; it is carried through to the
// observer for traceability only. Timestamps are taken at face value: no
// validation, no reordering. An accepted out-of-order event overwrites the
// stored timestamp even when it is numerically smaller than what was there.
func (t *Throttler) ShouldProcess(timestamp int64, eventID, key string) bool {
	t.mu.Lock()
	d := Decision{
		Key:       key,
		EventID:   eventID,
		Timestamp: timestamp,
		Window:    t.window,
	}
	last, seen := t.lastAccepted[key]
	switch {
	case !seen:
		t.lastAccepted[key] = timestamp
		d.Accepted = true
		d.FirstSeen = true
	case timestamp-last >= t.window:
		t.lastAccepted[key] = timestamp
		d.Last = last
		d.Accepted = true
	default:
		// Throttled decisions leave the map untouched.
		d.Last = last
	}
	obs := t.observer
	t.mu.Unlock()

	if obs != nil {
		obs(d)
	}
	return d.Accepted
}

// SetWindow replaces the throttling window. It affects every decision made
// after the call returns and never revisits past ones. No bounds are
// enforced: zero, negative, and arbitrarily large windows are all legal.
func (t *Throttler) SetWindow(window int64) {
	t.mu.Lock()
	t.window = window
	t.mu.Unlock()
}

// Window returns the current throttling window.
func (t *Throttler) Window() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Clear forgets every tracked key and returns how many were dropped. The
// window setting is untouched; the next event for any key is accepted
// unconditionally.
func (t *Throttler) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.lastAccepted)
	t.lastAccepted = make(map[string]int64)
	return n
}

// KeyCount returns the number of distinct keys currently tracked.
func (t *Throttler) KeyCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastAccepted)
}

// RemoveOlderThan is an optional maintenance operation: it drops every key
// whose last accepted timestamp is strictly below threshold and returns the
// number removed. The base throttling operations never call it.
func (t *Throttler) RemoveOlderThan(threshold int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, last := range t.lastAccepted {
		if last < threshold {
			delete(t.lastAccepted, key)
			removed++
		}
	}
	return removed
}
