// ABOUTME: Request/response HTTP adapter for session lifecycle and tool calls
// ABOUTME: Translates pipeline errors into status codes with a kind-tagged envelope

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pod-protocol/pod-mcp-server/internal/auth"
	"github.com/pod-protocol/pod-mcp-server/internal/broker"
	"github.com/pod-protocol/pod-mcp-server/internal/session"
)

// SessionHeader carries the session id on authenticated requests.
const SessionHeader = "X-Session-Id"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Config holds configuration for the HTTP adapter.
type Config struct {
	Broker *broker.Broker
	Logger *slog.Logger
}

// Server exposes the request/response surface: session lifecycle, tool
// calls, resource reads, and the unauthenticated health endpoint.
type Server struct {
	broker *broker.Broker
	logger *slog.Logger
}

// NewServer creates the HTTP adapter.
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

// RegisterRoutes registers all endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/tools", s.handleToolList)
	mux.HandleFunc("/tools/", s.handleToolCall)
	mux.HandleFunc("/resources", s.handleResourceList)
	mux.HandleFunc("/resources/", s.handleResourceRead)
	mux.HandleFunc("/health", s.handleHealth)
}

// createSessionRequest is the JSON body for POST /session.
type createSessionRequest struct {
	Credential string            `json:"credential"`
	Wallet     *auth.WalletProof `json:"wallet,omitempty"`
}

// createSessionResponse is the JSON body returned on 201.
type createSessionResponse struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// sessionInfoResponse is the JSON body for GET /session.
type sessionInfoResponse struct {
	UserID          string    `json:"userId"`
	Permissions     []string  `json:"permissions"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivity    time.Time `json:"lastActivity"`
}

// handleSession dispatches /session by method.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	case http.MethodGet:
		s.handleGetSession(w, r)
	case http.MethodDelete:
		s.handleDeleteSession(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		s.writeError(w, http.StatusMethodNotAllowed, broker.KindTransportError, "method not allowed")
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	sess, err := s.broker.CreateSession(r.Context(), req.Credential, req.Wallet, session.TransportHTTP)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Permissions: sess.Permissions,
		ExpiresAt:   sess.ExpiresAt,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sessionInfoResponse{
		UserID:          sess.UserID,
		Permissions:     sess.Permissions,
		IsAuthenticated: sess.Authenticated,
		CreatedAt:       sess.CreatedAt,
		LastActivity:    sess.LastActivity,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		s.writeError(w, http.StatusUnauthorized, broker.KindSessionNotFound, "missing "+SessionHeader+" header")
		return
	}
	destroyed := s.broker.DestroySession(id)
	s.writeJSON(w, http.StatusOK, map[string]bool{"destroyed": destroyed})
}

// handleToolList handles GET /tools.
func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, broker.KindTransportError, "method not allowed")
		return
	}
	id := r.Header.Get(SessionHeader)
	toolInfos, err := s.broker.ListTools(id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": toolInfos})
}

// handleToolCall handles POST /tools/{name}.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, broker.KindTransportError, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/tools/")
	if name == "" || strings.Contains(name, "/") {
		s.writeError(w, http.StatusNotFound, broker.KindOperationNotFound, "unknown tool")
		return
	}

	id := r.Header.Get(SessionHeader)
	if id == "" {
		s.writeError(w, http.StatusUnauthorized, broker.KindSessionNotFound, "missing "+SessionHeader+" header")
		return
	}

	var args json.RawMessage
	if !s.decodeBody(w, r, &args) {
		return
	}

	result, err := s.broker.CallTool(r.Context(), id, name, args)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// handleResourceList handles GET /resources.
func (s *Server) handleResourceList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, broker.KindTransportError, "method not allowed")
		return
	}
	id := r.Header.Get(SessionHeader)
	resourceInfos, err := s.broker.ListResources(id)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"resources": resourceInfos})
}

// handleResourceRead handles GET /resources/{uri}. The URI segment is
// percent-encoded by clients (e.g. /resources/pod%3A%2F%2Fagents).
func (s *Server) handleResourceRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, broker.KindTransportError, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.EscapedPath(), "/resources/")
	uri, err := url.PathUnescape(raw)
	if err != nil || uri == "" {
		s.writeError(w, http.StatusNotFound, broker.KindResourceNotFound, "unknown resource")
		return
	}

	id := r.Header.Get(SessionHeader)
	if id == "" {
		s.writeError(w, http.StatusUnauthorized, broker.KindSessionNotFound, "missing "+SessionHeader+" header")
		return
	}

	result, err := s.broker.ReadResource(r.Context(), id, uri)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"contents": result})
}

// handleHealth handles GET /health. Unauthenticated, used for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, broker.KindTransportError, "method not allowed")
		return
	}
	health := s.broker.Health()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       health.Status,
		"uptime":       health.Uptime.String(),
		"sessionCount": health.SessionCount,
	})
}

// requireSession resolves the session header, writing the error response on
// failure.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		s.writeError(w, http.StatusUnauthorized, broker.KindSessionNotFound, "missing "+SessionHeader+" header")
		return nil, false
	}
	sess, err := s.broker.GetSession(id)
	if err != nil {
		s.writeMappedError(w, err)
		return nil, false
	}
	return sess, true
}

// decodeBody reads a size-limited JSON body into v. An empty body is allowed
// and leaves v untouched. Writes the error response on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, broker.KindTransportError, "failed to read request body")
		return false
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeError(w, http.StatusBadRequest, broker.KindTransportError, "request body too large")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, broker.KindTransportError, "invalid JSON")
		return false
	}
	return true
}

// statusFor maps an error kind to its HTTP status code.
func statusFor(kind string) int {
	switch kind {
	case broker.KindInvalidCredential, broker.KindWalletProofRequired,
		broker.KindInvalidWalletProof, broker.KindSessionNotFound:
		return http.StatusUnauthorized
	case broker.KindPermissionDenied:
		return http.StatusForbidden
	case broker.KindOperationNotFound, broker.KindResourceNotFound:
		return http.StatusNotFound
	case broker.KindSessionLimitExceeded, broker.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case broker.KindVerificationUnavailable:
		return http.StatusServiceUnavailable
	case broker.KindTransportError:
		return http.StatusBadRequest
	case broker.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeMappedError translates a pipeline error into its HTTP representation.
func (s *Server) writeMappedError(w http.ResponseWriter, err error) {
	kind := broker.ErrorKind(err)
	if kind == broker.KindInternal {
		s.logger.Error("internal error", "error", err)
	}
	s.writeError(w, statusFor(kind), kind, broker.ErrorMessage(err))
}

// writeError writes the structured error envelope.
func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": message,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
