// ABOUTME: Transport-agnostic pipeline: session lookup, rate limit, dispatch
// ABOUTME: Records each dispatched call into the call history store

package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pod-protocol/pod-mcp-server/internal/auth"
	"github.com/pod-protocol/pod-mcp-server/internal/ratelimit"
	"github.com/pod-protocol/pod-mcp-server/internal/session"
	"github.com/pod-protocol/pod-mcp-server/internal/store"
	"github.com/pod-protocol/pod-mcp-server/internal/tools"
)

// CallLog receives a record for every dispatched call. Implemented by
// store.SQLiteStore; nil disables call history.
type CallLog interface {
	AppendCall(ctx context.Context, rec *store.CallRecord) error
}

// Config holds the broker's collaborators.
type Config struct {
	Sessions *session.Store
	Limiter  *ratelimit.Limiter
	Registry *tools.Registry
	Calls    CallLog // optional
	Logger   *slog.Logger
}

// Broker routes canonical calls from any transport through the shared
// authorization pipeline.
type Broker struct {
	sessions *session.Store
	limiter  *ratelimit.Limiter
	registry *tools.Registry
	calls    CallLog
	logger   *slog.Logger
	started  time.Time
}

// New creates a broker from the given configuration.
func New(cfg Config) (*Broker, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		sessions: cfg.Sessions,
		limiter:  cfg.Limiter,
		registry: cfg.Registry,
		calls:    cfg.Calls,
		logger:   logger,
		started:  time.Now(),
	}, nil
}

// CreateSession authenticates the credential and opens a session on the
// given transport.
func (b *Broker) CreateSession(ctx context.Context, credential string, proof *auth.WalletProof, transport session.TransportKind) (*session.Session, error) {
	return b.sessions.Create(ctx, credential, proof, transport)
}

// CreateLocalSession opens an unauthenticated local session. Only the pipe
// transport uses this, and only when authentication is configured off.
func (b *Broker) CreateLocalSession(permissions []string) (*session.Session, error) {
	return b.sessions.CreateLocal(permissions, session.TransportPipe)
}

// GetSession returns a snapshot of a live session, touching its activity
// timestamp. Returns session.ErrNotFound for absent or expired ids.
func (b *Broker) GetSession(id string) (*session.Session, error) {
	return b.sessions.Get(id)
}

// DestroySession removes a session and drops its rate-limit counter.
// Reports whether a session was actually removed.
func (b *Broker) DestroySession(id string) bool {
	destroyed := b.sessions.Delete(id)
	b.limiter.Forget(id)
	return destroyed
}

// CallTool runs the full pipeline for a tool call: session lookup (which
// touches the session), rate limiter, tool resolution, use budget, then
// dispatch. The use budget is consumed only once the call is actually going
// to dispatch; a lookup miss or denied permission never burns a use. The
// handler executes on a session snapshot with no store lock held.
func (b *Broker) CallTool(ctx context.Context, sessionID, name string, args json.RawMessage) (any, error) {
	sess, err := b.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !b.limiter.Allow(sessionID) {
		return nil, ratelimit.ErrRateLimited
	}

	requestID := uuid.New().String()
	start := time.Now()

	result, err := b.dispatchTool(ctx, sess, sessionID, name, args)

	b.record(ctx, sess, name, requestID, start, err)

	if err != nil {
		b.logger.Warn("tool call failed",
			"tool_name", name,
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		return nil, err
	}

	b.logger.Debug("tool call complete",
		"tool_name", name,
		"request_id", requestID,
		"session_id", sessionID,
		"duration", time.Since(start),
	)
	return result, nil
}

// ReadResource runs the same pipeline for a resource read.
func (b *Broker) ReadResource(ctx context.Context, sessionID, uri string) (any, error) {
	sess, err := b.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !b.limiter.Allow(sessionID) {
		return nil, ratelimit.ErrRateLimited
	}

	requestID := uuid.New().String()
	start := time.Now()

	result, err := b.readResource(ctx, sess, sessionID, uri)

	b.record(ctx, sess, uri, requestID, start, err)

	if err != nil {
		b.logger.Warn("resource read failed",
			"uri", uri,
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		return nil, err
	}
	return result, nil
}

// dispatchTool resolves the tool, consumes the session's use budget, and
// invokes the handler with the session snapshot attached to the context.
func (b *Broker) dispatchTool(ctx context.Context, sess *session.Session, sessionID, name string, args json.RawMessage) (any, error) {
	tool, err := b.registry.ResolveTool(name, sess)
	if err != nil {
		return nil, err
	}
	if err := b.sessions.ConsumeUse(sessionID); err != nil {
		return nil, err
	}
	return tool.Handler(session.WithSession(ctx, sess), sess, args)
}

// readResource is the resource counterpart of dispatchTool.
func (b *Broker) readResource(ctx context.Context, sess *session.Session, sessionID, uri string) (any, error) {
	res, err := b.registry.ResolveResource(uri, sess)
	if err != nil {
		return nil, err
	}
	if err := b.sessions.ConsumeUse(sessionID); err != nil {
		return nil, err
	}
	return res.Handler(session.WithSession(ctx, sess), sess)
}

// ListTools returns the tools visible to a session.
func (b *Broker) ListTools(sessionID string) ([]tools.ToolInfo, error) {
	sess, err := b.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return b.registry.ListTools(sess), nil
}

// ListResources returns the resources visible to a session.
func (b *Broker) ListResources(sessionID string) ([]tools.ResourceInfo, error) {
	sess, err := b.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return b.registry.ListResources(sess), nil
}

// Health describes the broker's liveness state.
type Health struct {
	Status       string        `json:"status"`
	Uptime       time.Duration `json:"uptime"`
	SessionCount int           `json:"sessionCount"`
}

// Health returns liveness information for the health endpoint.
func (b *Broker) Health() Health {
	return Health{
		Status:       "ok",
		Uptime:       time.Since(b.started).Round(time.Second),
		SessionCount: b.sessions.Count(),
	}
}

// Stats exposes the session store's aggregates.
func (b *Broker) Stats() session.Stats {
	return b.sessions.Stats()
}

// record appends to the call history. A failed append is logged and ignored;
// call history must never fail a dispatched call.
func (b *Broker) record(ctx context.Context, sess *session.Session, operation, requestID string, start time.Time, callErr error) {
	if b.calls == nil {
		return
	}
	rec := &store.CallRecord{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Operation:  operation,
		RequestID:  requestID,
		Transport:  string(sess.Transport),
		DurationMs: time.Since(start).Milliseconds(),
		IsError:    callErr != nil,
	}
	if err := b.calls.AppendCall(ctx, rec); err != nil {
		b.logger.Warn("failed to record call", "operation", operation, "error", err)
	}
}
