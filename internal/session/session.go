// ABOUTME: Session record type and the policy knobs that shape its lifecycle
// ABOUTME: Transport kinds, eviction policies, and expiry policies live here

package session

import (
	"time"
)

// TransportKind identifies which channel created a session.
type TransportKind string

// Supported transports
const (
	TransportHTTP   TransportKind = "http"
	TransportSocket TransportKind = "socket"
	TransportPipe   TransportKind = "pipe"
)

// EvictionPolicy controls behavior when a user hits the per-user session cap.
type EvictionPolicy string

const (
	// EvictOldest silently removes the user's least-recently-active session.
	EvictOldest EvictionPolicy = "evict_oldest"
	// RejectNew refuses the new session with ErrLimitExceeded.
	RejectNew EvictionPolicy = "reject"
)

// ExpiryPolicy controls how the session deadline advances.
type ExpiryPolicy string

const (
	// SlidingExpiry extends the deadline on every successful use.
	SlidingExpiry ExpiryPolicy = "sliding"
	// FixedExpiry sets the deadline once at creation.
	FixedExpiry ExpiryPolicy = "fixed"
)

// Session represents one authenticated caller's working context.
// Instances returned by the Store are snapshots; mutating them has no effect
// on stored state.
type Session struct {
	ID            string
	UserID        string
	WalletAddress string
	Permissions   []string
	CreatedAt     time.Time
	LastActivity  time.Time
	ExpiresAt     time.Time
	Transport     TransportKind
	Authenticated bool

	// UsesRemaining is nil for unlimited sessions. For use-limited sessions
	// it is decremented on each dispatched call; at zero the session is
	// unusable and treated like an expired one.
	UsesRemaining *int
}

// HasPermission reports whether the session's flat permission set contains
// the given permission. An empty required permission always passes.
func (s *Session) HasPermission(permission string) bool {
	if permission == "" {
		return true
	}
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// snapshot returns a deep copy safe to hand outside the store lock.
func (s *Session) snapshot() *Session {
	cp := *s
	cp.Permissions = append([]string(nil), s.Permissions...)
	if s.UsesRemaining != nil {
		uses := *s.UsesRemaining
		cp.UsesRemaining = &uses
	}
	return &cp
}
