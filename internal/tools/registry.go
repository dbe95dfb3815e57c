// ABOUTME: Thread-safe registry mapping tool names and resource URIs to handlers
// ABOUTME: Enforces required-permission checks and rejects unknown operations

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pod-protocol/pod-mcp-server/internal/session"
)

// Registry errors
var (
	// ErrToolNotFound indicates the requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrResourceNotFound indicates the requested resource URI is not registered.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrPermissionDenied indicates the session lacks the operation's required permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNameCollision indicates a tool name or resource URI is already registered.
	ErrNameCollision = errors.New("name collision")
)

// Handler executes a tool call. The session is a snapshot of the caller's
// state at dispatch time, safe to read without further locking.
type Handler func(ctx context.Context, sess *session.Session, args json.RawMessage) (any, error)

// ResourceHandler serves a resource read.
type ResourceHandler func(ctx context.Context, sess *session.Session) (any, error)

// Tool describes one registered tool.
type Tool struct {
	Name               string
	Description        string
	InputSchema        json.RawMessage
	RequiredPermission string // empty means any session may call it
	Handler            Handler
}

// Resource describes one registered resource.
type Resource struct {
	URI                string
	Name               string
	Description        string
	MimeType           string
	RequiredPermission string
	Handler            ResourceHandler
}

// ToolInfo is the externally visible description of a tool.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ResourceInfo is the externally visible description of a resource.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Registry maintains the static operation table built at startup.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*Tool
	resources map[string]*Resource
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		logger:    logger,
	}
}

// RegisterTool adds a tool to the registry.
// Returns ErrNameCollision if the name is already taken.
func (r *Registry) RegisterTool(t *Tool) error {
	if t.Name == "" || t.Handler == nil {
		return errors.New("tool requires a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: tool %q already registered", ErrNameCollision, t.Name)
	}
	r.tools[t.Name] = t

	r.logger.Debug("tool registered", "tool_name", t.Name, "permission", t.RequiredPermission)
	return nil
}

// RegisterResource adds a resource to the registry.
// Returns ErrNameCollision if the URI is already taken.
func (r *Registry) RegisterResource(res *Resource) error {
	if res.URI == "" || res.Handler == nil {
		return errors.New("resource requires a URI and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[res.URI]; exists {
		return fmt.Errorf("%w: resource %q already registered", ErrNameCollision, res.URI)
	}
	r.resources[res.URI] = res

	r.logger.Debug("resource registered", "uri", res.URI, "permission", res.RequiredPermission)
	return nil
}

// ResolveTool looks up a tool and checks the session's permission without
// invoking the handler. Callers that account for dispatched calls resolve
// first, then invoke, so a lookup miss or a denied permission costs nothing.
func (r *Registry) ResolveTool(name string, sess *session.Session) (*Tool, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrToolNotFound
	}
	if !sess.HasPermission(tool.RequiredPermission) {
		return nil, fmt.Errorf("%w: tool %q requires %q", ErrPermissionDenied, name, tool.RequiredPermission)
	}
	return tool, nil
}

// ResolveResource looks up a resource and checks the session's permission
// without invoking the handler.
func (r *Registry) ResolveResource(uri string, sess *session.Session) (*Resource, error) {
	r.mu.RLock()
	res, ok := r.resources[uri]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrResourceNotFound
	}
	if !sess.HasPermission(res.RequiredPermission) {
		return nil, fmt.Errorf("%w: resource %q requires %q", ErrPermissionDenied, uri, res.RequiredPermission)
	}
	return res, nil
}

// DispatchTool resolves a tool and invokes its handler. The handler runs
// with no registry lock held.
func (r *Registry) DispatchTool(ctx context.Context, name string, args json.RawMessage, sess *session.Session) (any, error) {
	tool, err := r.ResolveTool(name, sess)
	if err != nil {
		return nil, err
	}
	return tool.Handler(ctx, sess, args)
}

// ReadResource resolves a resource and invokes its handler with no registry
// lock held.
func (r *Registry) ReadResource(ctx context.Context, uri string, sess *session.Session) (any, error) {
	res, err := r.ResolveResource(uri, sess)
	if err != nil {
		return nil, err
	}
	return res.Handler(ctx, sess)
}

// ListTools returns descriptions of the tools the session may call, sorted
// by name for stable output.
func (r *Registry) ListTools(sess *session.Session) []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		if !sess.HasPermission(t.RequiredPermission) {
			continue
		}
		out = append(out, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListResources returns descriptions of the resources the session may read,
// sorted by URI.
func (r *Registry) ListResources(sess *session.Session) []ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ResourceInfo, 0, len(r.resources))
	for _, res := range r.resources {
		if !sess.HasPermission(res.RequiredPermission) {
			continue
		}
		out = append(out, ResourceInfo{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MimeType:    res.MimeType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// ToolCount returns the number of registered tools.
func (r *Registry) ToolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
