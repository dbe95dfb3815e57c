// ABOUTME: Fixed-window per-session rate limiter consulted before each dispatch
// ABOUTME: Counters for dead sessions are pruned alongside the cleanup sweep

package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited indicates the caller has exhausted its window budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Defaults applied when configuration leaves values unset.
const (
	DefaultMaxRequests = 60
	DefaultWindow      = time.Minute
)

// window tracks one session's request count in the current fixed window.
type window struct {
	start time.Time
	count int
}

// Limiter maintains a fixed-size window counter per session id. It never
// touches session state itself; the broker consults it strictly after a
// successful session lookup, which fixes the lock-acquisition order between
// the two structures.
type Limiter struct {
	mu       sync.Mutex
	max      int
	interval time.Duration
	windows  map[string]*window
}

// New creates a limiter allowing max requests per interval per session.
func New(max int, interval time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if interval <= 0 {
		interval = DefaultWindow
	}
	return &Limiter{
		max:      max,
		interval: interval,
		windows:  map[string]*window{},
	}
}

// Allow records one request for the session and reports whether it fits in
// the current window. The first request after a window rolls over resets the
// counter.
func (l *Limiter) Allow(sessionID string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[sessionID]
	if !ok || now.Sub(w.start) >= l.interval {
		l.windows[sessionID] = &window{start: now, count: 1}
		return true
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// Forget drops the counter for a session, typically on explicit logout.
func (l *Limiter) Forget(sessionID string) {
	l.mu.Lock()
	delete(l.windows, sessionID)
	l.mu.Unlock()
}

// Prune removes counters whose sessions are no longer live according to the
// supplied predicate, plus any counter whose window has long since closed.
// Returns the number of counters removed. Called from the cleanup sweep.
func (l *Limiter) Prune(live func(sessionID string) bool) int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, w := range l.windows {
		if !live(id) || now.Sub(w.start) >= 2*l.interval {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked counters (for monitoring and tests).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
