// ABOUTME: Concurrency-safe session table with per-user caps and expiry checks
// ABOUTME: Credential verification runs before the lock; lookups return snapshots

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pod-protocol/pod-mcp-server/internal/auth"
)

// Store errors
var (
	// ErrNotFound indicates the session is absent, expired, or exhausted.
	ErrNotFound = errors.New("session not found")
	// ErrLimitExceeded indicates the user's session quota is full under the
	// reject policy.
	ErrLimitExceeded = errors.New("session limit exceeded")
)

// DefaultTimeout is the session timeout used when none is configured.
const DefaultTimeout = 30 * time.Minute

// DefaultMaxPerUser is the per-user concurrent session cap used when none is
// configured.
const DefaultMaxPerUser = 5

// Options configure a Store.
type Options struct {
	Timeout    time.Duration  // session inactivity timeout
	MaxPerUser int            // concurrent sessions per user
	Eviction   EvictionPolicy // behavior at the per-user cap
	Expiry     ExpiryPolicy   // sliding or fixed deadlines
	MaxUses    int            // 0 means unlimited; otherwise per-session use budget
}

// Stats are read-only aggregates over the session table.
type Stats struct {
	TotalSessions         int
	UniqueUsers           int
	AuthenticatedSessions int
}

// Store is the shared session table. A single mutex guards the maps; every
// critical section is a map lookup plus timestamp writes, so hold times stay
// O(1) and no I/O ever happens under the lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}

	verifier auth.Verifier
	opts     Options
	logger   *slog.Logger
}

// NewStore creates a session store backed by the given verifier.
func NewStore(verifier auth.Verifier, opts Options, logger *slog.Logger) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxPerUser <= 0 {
		opts.MaxPerUser = DefaultMaxPerUser
	}
	if opts.Eviction == "" {
		opts.Eviction = EvictOldest
	}
	if opts.Expiry == "" {
		opts.Expiry = SlidingExpiry
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
		verifier: verifier,
		opts:     opts,
		logger:   logger,
	}
}

// Create verifies the credential and inserts a new session for the resolved
// identity. At the per-user cap the configured eviction policy applies:
// evict-oldest removes the user's least-recently-active session, reject
// returns ErrLimitExceeded. The verifier call happens before any lock is
// taken so a slow or timed-out provider never leaves partial state behind.
func (s *Store) Create(ctx context.Context, credential string, proof *auth.WalletProof, transport TransportKind) (*Session, error) {
	identity, err := s.verifier.Verify(ctx, credential, proof)
	if err != nil {
		return nil, err
	}
	return s.insert(identity.UserID, identity.WalletAddress, identity.Permissions, transport, true)
}

// CreateLocal mints a session without credential verification. Used by the
// local pipe transport when authentication is explicitly disabled.
func (s *Store) CreateLocal(permissions []string, transport TransportKind) (*Session, error) {
	return s.insert("local", "", permissions, transport, false)
}

func (s *Store) insert(userID, wallet string, permissions []string, transport TransportKind, authenticated bool) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		WalletAddress: wallet,
		Permissions:   append([]string(nil), permissions...),
		CreatedAt:     now,
		LastActivity:  now,
		ExpiresAt:     now.Add(s.opts.Timeout),
		Transport:     transport,
		Authenticated: authenticated,
	}
	if s.opts.MaxUses > 0 {
		uses := s.opts.MaxUses
		sess.UsesRemaining = &uses
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byUser[userID]) >= s.opts.MaxPerUser {
		if s.opts.Eviction == RejectNew {
			return nil, ErrLimitExceeded
		}
		s.evictOldestLocked(userID)
	}

	s.sessions[sess.ID] = sess
	ids := s.byUser[userID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.byUser[userID] = ids
	}
	ids[sess.ID] = struct{}{}

	s.logger.Info("session created",
		"session_id", sess.ID,
		"user_id", userID,
		"transport", transport,
		"expires_at", sess.ExpiresAt,
	)

	return sess.snapshot(), nil
}

// evictOldestLocked removes the least-recently-active session for a user.
// Must be called with mu held.
func (s *Store) evictOldestLocked(userID string) {
	var oldest *Session
	for id := range s.byUser[userID] {
		sess := s.sessions[id]
		if oldest == nil || sess.LastActivity.Before(oldest.LastActivity) {
			oldest = sess
		}
	}
	if oldest == nil {
		return
	}
	s.removeLocked(oldest.ID)
	s.logger.Info("session evicted",
		"session_id", oldest.ID,
		"user_id", userID,
		"last_activity", oldest.LastActivity,
	)
}

// Get returns a snapshot of the session and advances its activity timestamp.
// Under sliding expiry the deadline moves with it. Returns ErrNotFound for
// absent, expired, or use-exhausted sessions; expiry is re-checked here so a
// dead session is unusable even before the sweep runs.
func (s *Store) Get(id string) (*Session, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.deadLocked(sess, now) {
		s.removeLocked(id)
		return nil, ErrNotFound
	}

	sess.LastActivity = now
	if s.opts.Expiry == SlidingExpiry {
		sess.ExpiresAt = now.Add(s.opts.Timeout)
	}
	return sess.snapshot(), nil
}

// ConsumeUse decrements a use-limited session's remaining budget. It is a
// no-op for unlimited sessions. Called by the broker once per dispatched
// call, after the rate limiter has admitted it.
func (s *Store) ConsumeUse(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.UsesRemaining == nil {
		return nil
	}
	if *sess.UsesRemaining <= 0 {
		s.removeLocked(id)
		return ErrNotFound
	}
	*sess.UsesRemaining--
	return nil
}

// Delete removes a session if present. Idempotent: reports whether a record
// was actually removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	s.removeLocked(id)
	s.logger.Info("session deleted", "session_id", id)
	return true
}

// Has reports whether a session id is currently live (present and usable).
// Used by the rate limiter's garbage collection.
func (s *Store) Has(id string) bool {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return ok && !s.deadLocked(sess, now)
}

// Sweep removes every expired or exhausted session and returns the count
// removed. Runs under the same lock as Get and Delete, so a session mid-use
// can never be swept out from under that operation.
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.deadLocked(sess, now) {
			s.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live records in the table, including expired
// sessions not yet swept.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CountForUser returns the number of records held by one user.
func (s *Store) CountForUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}

// Stats computes read-only aggregates under a shared lock.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalSessions: len(s.sessions),
		UniqueUsers:   len(s.byUser),
	}
	for _, sess := range s.sessions {
		if sess.Authenticated {
			stats.AuthenticatedSessions++
		}
	}
	return stats
}

// deadLocked reports whether a session is expired or use-exhausted.
// Must be called with mu held (read or write).
func (s *Store) deadLocked(sess *Session, now time.Time) bool {
	if now.After(sess.ExpiresAt) {
		return true
	}
	return sess.UsesRemaining != nil && *sess.UsesRemaining <= 0
}

// removeLocked deletes a session from both indexes. Must be called with mu
// held for writing.
func (s *Store) removeLocked(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	delete(s.sessions, id)
	if ids := s.byUser[sess.UserID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
}
