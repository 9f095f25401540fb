// Package ratelimit provides a process-local sliding window limiter for the
// analysis pipeline. It is abuse mitigation only; billing is enforced by the
// quota ledger.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults used when configuration leaves the limits unset
const (
	DefaultLimit  = 10
	DefaultWindow = 30 * time.Second
)

// Window admits at most limit events in any trailing window of the given length
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	hits   []time.Time
}

// NewWindow creates a limiter. Non-positive arguments fall back to the defaults.
func NewWindow(limit int, window time.Duration) *Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Window{limit: limit, window: window, now: time.Now}
}

// WithClock replaces the time source
func (w *Window) WithClock(now func() time.Time) *Window {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
	return w
}

// Allow records an event if the window has room. When it does not, the
// returned duration is how long until the oldest event leaves the window.
func (w *Window) Allow() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)

	if len(w.hits) >= w.limit {
		retry := w.hits[0].Add(w.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return false, retry
	}

	w.hits = append(w.hits, now)
	return true, 0
}

// Count returns the number of events currently inside the window
func (w *Window) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.now())
	return len(w.hits)
}

// Reset forgets all recorded events
func (w *Window) Reset() {
	w.mu.Lock()
	w.hits = nil
	w.mu.Unlock()
}

// Limit returns the configured maximum
func (w *Window) Limit() int {
	return w.limit
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}
