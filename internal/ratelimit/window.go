// Package ratelimit implements the sliding-window limiter used for outbound
// transforms. The same Window backs the simulation transport and the
// rate-limiting decorator so both drop exactly the same calls.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Window admits at most limit events per interval. Rejected events are not
// recorded and never queued.
type Window struct {
	mu       sync.Mutex
	clock    clock.Clock
	history  []time.Time
	limit    int
	interval time.Duration
}

func NewWindow(limit int, interval time.Duration, clk clock.Clock) *Window {
	if clk == nil {
		clk = clock.New()
	}
	return &Window{
		clock:    clk,
		history:  make([]time.Time, 0, limit),
		limit:    limit,
		interval: interval,
	}
}

// Allow prunes attempts that fell out of the window and records a new one if
// there is room for it. The window boundary is exclusive: an attempt exactly
// one interval old no longer counts.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	windowStart := now.Add(-w.interval)

	fresh := w.history[:0]
	for _, t := range w.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	w.history = fresh

	if len(w.history) >= w.limit {
		return false
	}
	w.history = append(w.history, now)
	return true
}

// SetLimit changes the cap without touching the recorded history.
func (w *Window) SetLimit(limit int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.limit = limit
}

func (w *Window) Limit() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limit
}

// Reset forgets every recorded attempt.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = w.history[:0]
}

// Len returns the number of attempts still inside the window as of the last Allow.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.history)
}
