// ABOUTME: Persistent duplex adapter multiplexing sessions over one WebSocket
// ABOUTME: Each connection runs a sequential read loop against the shared broker

package wsocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pod-protocol/pod-mcp-server/internal/broker"
	"github.com/pod-protocol/pod-mcp-server/internal/session"
	"github.com/pod-protocol/pod-mcp-server/internal/transport/wire"
)

// Config holds configuration for the WebSocket adapter.
type Config struct {
	Broker *broker.Broker
	Logger *slog.Logger
}

// Server upgrades HTTP requests to WebSocket connections and serves the
// streaming message envelope on each.
type Server struct {
	broker *broker.Broker
	logger *slog.Logger
}

// NewServer creates the WebSocket adapter.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Broker == nil {
		return nil, errors.New("broker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{broker: cfg.Broker, logger: logger}, nil
}

// ServeHTTP upgrades the request and runs the connection loop until the
// client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	conn := &connection{
		ws:     c,
		broker: s.broker,
		logger: s.logger.With("remote", r.RemoteAddr),
		owned:  make(map[string]struct{}),
	}
	conn.run(r.Context())
}

// connection is one long-lived client connection. It tracks which session
// ids it created so that bookkeeping (not the sessions themselves) can be
// dropped when the connection closes. The read loop is sequential: one
// message is fully handled before the next is read, so an in-flight tool
// handler always completes even if the client disconnects mid-call.
type connection struct {
	ws     *websocket.Conn
	broker *broker.Broker
	logger *slog.Logger
	owned  map[string]struct{}
}

func (c *connection) run(ctx context.Context) {
	defer c.ws.CloseNow()
	defer func() {
		// The connection's session bookkeeping dies with it; the sessions
		// stay in the store until they expire or are explicitly destroyed.
		if len(c.owned) > 0 {
			c.logger.Debug("connection closed", "sessions_owned", len(c.owned))
		}
	}()

	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return
			}
			// Malformed frame or unexpected close: report once and drop the
			// connection rather than guessing at framing.
			c.logger.Debug("websocket read failed", "error", err)
			c.ws.Close(websocket.StatusUnsupportedData, "malformed message")
			return
		}
		c.handle(ctx, env)
	}
}

func (c *connection) handle(ctx context.Context, env wire.Envelope) {
	switch env.Type {
	case wire.TypeAuth:
		c.handleAuth(ctx, env)
	case wire.TypeToolCall, wire.TypeMCPRequest:
		c.handleToolCall(ctx, env)
	case wire.TypeToolList:
		c.handleToolList(ctx, env)
	case wire.TypeResourceRead:
		c.handleResourceRead(ctx, env)
	case wire.TypeResourceList:
		c.handleResourceList(ctx, env)
	case wire.TypeSessionClose:
		c.handleSessionClose(ctx, env)
	default:
		c.write(ctx, wire.ErrorReply(wire.TypeError, env.ID, broker.KindTransportError, "unknown message type"))
	}
}

func (c *connection) handleAuth(ctx context.Context, env wire.Envelope) {
	sess, err := c.broker.CreateSession(ctx, env.Credential, env.Wallet, session.TransportSocket)
	if err != nil {
		c.write(ctx, wire.ErrorReply(wire.TypeAuthError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
		return
	}

	c.owned[sess.ID] = struct{}{}
	expires := sess.ExpiresAt
	c.write(ctx, wire.Reply{
		Type:        wire.TypeAuthSuccess,
		ID:          env.ID,
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Permissions: sess.Permissions,
		ExpiresAt:   &expires,
	})
}

func (c *connection) handleToolCall(ctx context.Context, env wire.Envelope) {
	result, err := c.broker.CallTool(ctx, env.SessionID, env.Name, env.Arguments)
	if err != nil {
		c.write(ctx, wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
		return
	}
	c.write(ctx, wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: result})
}

func (c *connection) handleToolList(ctx context.Context, env wire.Envelope) {
	toolInfos, err := c.broker.ListTools(env.SessionID)
	if err != nil {
		c.write(ctx, wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
		return
	}
	c.write(ctx, wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: map[string]any{"tools": toolInfos}})
}

func (c *connection) handleResourceRead(ctx context.Context, env wire.Envelope) {
	result, err := c.broker.ReadResource(ctx, env.SessionID, env.URI)
	if err != nil {
		c.write(ctx, wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
		return
	}
	c.write(ctx, wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: result})
}

func (c *connection) handleResourceList(ctx context.Context, env wire.Envelope) {
	resourceInfos, err := c.broker.ListResources(env.SessionID)
	if err != nil {
		c.write(ctx, wire.ErrorReply(wire.TypeError, env.ID, broker.ErrorKind(err), broker.ErrorMessage(err)))
		return
	}
	c.write(ctx, wire.Reply{Type: wire.TypeMCPResponse, ID: env.ID, Result: map[string]any{"resources": resourceInfos}})
}

func (c *connection) handleSessionClose(ctx context.Context, env wire.Envelope) {
	destroyed := c.broker.DestroySession(env.SessionID)
	delete(c.owned, env.SessionID)
	c.write(ctx, wire.Reply{Type: wire.TypeSessionClosed, ID: env.ID, Destroyed: &destroyed})
}

func (c *connection) write(ctx context.Context, reply wire.Reply) {
	if err := wsjson.Write(ctx, c.ws, reply); err != nil {
		c.logger.Debug("websocket write failed", "type", reply.Type, "error", err)
	}
}
