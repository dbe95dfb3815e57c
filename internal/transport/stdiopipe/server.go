// ABOUTME: Local pipe adapter serving newline-delimited JSON over stdio
// ABOUTME: Optionally mints an implicit local session when auth is disabled

package stdiopipe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pod-protocol/pod-mcp-server/internal/broker"
	"github.com/pod-protocol/pod-mcp-server/internal/session"
	"github.com/pod-protocol/pod-mcp-server/internal/transport/wire"
)

// maxLineSize bounds one envelope line (1MB, matching the HTTP body limit).
const maxLineSize = 1 << 20

// Config holds configuration for the pipe adapter.
type Config struct {
	Broker *broker.Broker
	Logger *slog.Logger

	// RequireAuth forces the full authentication pipeline even on the local
	// pipe. When false, calls without a session id run on an implicit local
	// session carrying LocalPermissions.
	RequireAuth      bool
	LocalPermissions []string

	// In and Out default to the process stdio when nil.
	In  io.Reader
	Out io.Writer
}

// Server serves the streaming envelope over a single local pipe. The pipe is
// single-caller: one sequential loop reads a line, handles it, and writes
// the reply before reading the next.
type Server struct {
	broker      *broker.Broker
	logger      *slog.Logger
	requireAuth bool
	localPerms  []string
	in          io.Reader
	out         io.Writer

	mu      sync.Mutex // guards out
	localID string     // implicit session id, minted lazily
}

// NewServer creates the pipe adapter.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Broker == nil {
		return nil, errors.New("broker is required")
	}
	if cfg.In == nil || cfg.Out == nil {
		return nil, errors.New("in and out streams are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		broker:      cfg.Broker,
		logger:      logger,
		requireAuth: cfg.RequireAuth,
		localPerms:  cfg.LocalPermissions,
		in:          cfg.In,
		out:         cfg.Out,
	}, nil
}

// errLineTooLong reports an input line exceeding maxLineSize.
var errLineTooLong = errors.New("line exceeds maximum size")

// Run reads envelopes until EOF or context cancellation. A malformed or
// oversized line yields a transport error reply; the loop keeps going so one
// bad message does not kill a local client.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := s.readLine(reader)
		switch {
		case errors.Is(err, errLineTooLong):
			s.write(wire.ErrorReply(wire.TypeError, "", broker.KindTransportError, "message too large"))
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil
			}
			// Handle a final unterminated line; the next read returns EOF.
		case err != nil:
			return fmt.Errorf("reading pipe: %w", err)
		}

		if len(line) == 0 {
			continue
		}

		var env wire.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			s.write(wire.ErrorReply(wire.TypeError, "", broker.KindTransportError, "invalid JSON"))
			continue
		}
		s.handle(ctx, env)
	}
}

// readLine accumulates one newline-terminated line. A line over maxLineSize
// is discarded through to its newline and reported as errLineTooLong, so a
// single oversized message never ends the read loop.
func (s *Server) readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLineSize {
			// Only a buffer-full read leaves the rest of the line unconsumed.
			if errors.Is(err, bufio.ErrBufferFull) {
				if derr := discardLine(r); derr != nil {
					return nil, derr
				}
			}
			return nil, errLineTooLong
		}
		if err == nil || errors.Is(err, io.EOF) {
			return bytes.TrimRight(line, "\n"), err
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}

// discardLine consumes input through the next newline or EOF.
func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil || errors.Is(err, io.EOF) {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, env wire.Envelope) {
	switch env.Type {
	case wire.TypeAuth:
		s.handleAuth(ctx, env)
	case wire.TypeToolCall, wire.TypeMCPRequest:
		sessionID, err := s.resolveSession(env.SessionID)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		result, err := s.broker.CallTool(ctx, sessionID, env.Name, env.Arguments)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		s.write(wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: result})
	case wire.TypeToolList:
		sessionID, err := s.resolveSession(env.SessionID)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		toolInfos, err := s.broker.ListTools(sessionID)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		s.write(wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: map[string]any{"tools": toolInfos}})
	case wire.TypeResourceList:
		sessionID, err := s.resolveSession(env.SessionID)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		resourceInfos, err := s.broker.ListResources(sessionID)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		s.write(wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: map[string]any{"resources": resourceInfos}})
	case wire.TypeResourceRead:
		sessionID, err := s.resolveSession(env.SessionID)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		result, err := s.broker.ReadResource(ctx, sessionID, env.URI)
		if err != nil {
			s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
			return
		}
		s.write(wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: result})
	case wire.TypeSessionClose:
		destroyed := s.broker.DestroySession(env.SessionID)
		if env.SessionID == s.localID {
			s.localID = ""
		}
		s.write(wire.Reply{Type: wire.TypeSessionClosed, ID: env.ID, Destroyed: &destroyed})
	default:
		s.write(wire.ErrorReply(wire.TypeError, env.ID, broker.KindTransportError, "unknown message type"))
	}
}

func (s *Server) handleAuth(ctx context.Context, env wire.Envelope) {
	sess, err := s.broker.CreateSession(ctx, env.Credential, env.Wallet, session.TransportPipe)
	if err != nil {
		s.write(wire.ErrorReply(wire.TypeAuthError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
		return
	}
	expires := sess.ExpiresAt
	s.write(wire.Reply{
		Type:        wire.TypeAuthSuccess,
		ID:          env.ID,
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Permissions: sess.Permissions,
		ExpiresAt:   &expires,
	})
}

// resolveSession returns the session id a call should run on. With auth
// required the caller must have authenticated; otherwise a missing id lazily
// mints the implicit local session.
func (s *Server) resolveSession(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if s.requireAuth {
		return "", session.ErrNotFound
	}
	if s.localID != "" {
		// Re-mint if the implicit session expired out from under us.
		if _, err := s.broker.GetSession(s.localID); err == nil {
			return s.localID, nil
		}
	}
	sess, err := s.broker.CreateLocalSession(s.localPerms)
	if err != nil {
		return "", err
	}
	s.localID = sess.ID
	s.logger.Debug("minted implicit local session", "session_id", sess.ID)
	return s.localID, nil
}

func (s *Server) write(reply wire.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to encode reply", "type", reply.Type, "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := s.out.Write(data); err != nil {
		s.logger.Warn("failed to write reply", "type", reply.Type, "error", err)
	}
}
