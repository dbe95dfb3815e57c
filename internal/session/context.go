// ABOUTME: Context propagation for the authenticated session snapshot
// ABOUTME: Provides WithSession/FromContext for handlers below the broker

package session

import (
	"context"
)

// sessionContextKey is the key type for storing a Session in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context with the session snapshot attached. The
// broker calls this before invoking a handler, so tool and resource code can
// recover the caller's session from the context alone.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext retrieves the session from the context, returning nil if not
// present.
func FromContext(ctx context.Context) *Session {
	val := ctx.Value(sessionContextKey{})
	if val == nil {
		return nil
	}
	sess, ok := val.(*Session)
	if !ok {
		return nil
	}
	return sess
}

// MustFromContext retrieves the session from the context, panicking if not
// present. For handlers that are only ever reachable through the broker.
func MustFromContext(ctx context.Context) *Session {
	sess := FromContext(ctx)
	if sess == nil {
		panic("session: no session in context")
	}
	return sess
}
