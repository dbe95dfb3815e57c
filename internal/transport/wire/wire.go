// ABOUTME: JSON message envelope shared by the socket and pipe transports
// ABOUTME: Defines request/reply types and the structured error object

package wire

import (
	"encoding/json"
	"time"

	"github.com/pod-protocol/pod-mcp-server/internal/auth"
)

// Message types understood by the streaming transports.
const (
	TypeAuth          = "auth"
	TypeToolCall      = "tools/call"
	TypeToolList      = "tools/list"
	TypeResourceRead  = "resources/read"
	TypeResourceList  = "resources/list"
	TypeSessionClose  = "session/close"
	TypeMCPRequest    = "mcp_request" // legacy alias for tools/call
	TypeAuthSuccess   = "auth_success"
	TypeAuthError     = "auth_error"
	TypeMCPResponse   = "mcp_response"
	TypeSessionClosed = "session_closed"
	TypeError         = "error"
)

// Envelope is one inbound message on a streaming transport.
type Envelope struct {
	Type       string            `json:"type"`
	ID         string            `json:"id,omitempty"` // client correlation id, echoed back
	Credential string            `json:"credential,omitempty"`
	Wallet     *auth.WalletProof `json:"wallet,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	Name       string            `json:"name,omitempty"`
	URI        string            `json:"uri,omitempty"`
	Arguments  json.RawMessage   `json:"arguments,omitempty"`
}

// Error is the structured failure object carried in replies. Kind is stable
// across transports; Message is human-readable and never contains provider
// detail or credentials.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Reply is one outbound message on a streaming transport.
type Reply struct {
	Type        string     `json:"type"`
	ID          string     `json:"id,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	UserID      string     `json:"userId,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Destroyed   *bool      `json:"destroyed,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       *Error     `json:"error,omitempty"`
}

// ErrorReply builds an error reply correlated to a request id.
func ErrorReply(replyType, id, kind, message string) Reply {
	return Reply{
		Type:  replyType,
		ID:    id,
		Error: &Error{Kind: kind, Message: message},
	}
}
