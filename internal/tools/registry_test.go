package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pod-protocol/pod-mcp-server/internal/session"
)

func testSession(perms ...string) *session.Session {
	return &session.Session{
		ID:          "sess-1",
		UserID:      "alice",
		Permissions: perms,
	}
}

func echoTool(name, perm string) *Tool {
	return &Tool{
		Name:               name,
		Description:        "echoes its arguments",
		RequiredPermission: perm,
		Handler: func(_ context.Context, _ *session.Session, args json.RawMessage) (any, error) {
			return args, nil
		},
	}
}

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterTool(echoTool("echo", "")); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := r.DispatchTool(context.Background(), "echo", json.RawMessage(`{"x":1}`), testSession())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if string(out.(json.RawMessage)) != `{"x":1}` {
		t.Errorf("unexpected result: %v", out)
	}
}

func TestRegisterCollision(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterTool(echoTool("echo", "")); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.RegisterTool(echoTool("echo", ""))
	if !errors.Is(err, ErrNameCollision) {
		t.Errorf("err = %v, want ErrNameCollision", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterTool(&Tool{Name: "no-handler"}); err == nil {
		t.Error("tool without handler should be rejected")
	}
	if err := r.RegisterTool(echoTool("", "")); err == nil {
		t.Error("tool without name should be rejected")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.DispatchTool(context.Background(), "missing", nil, testSession())
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("err = %v, want ErrToolNotFound", err)
	}
}

func TestDispatchPermissionDenied(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.RegisterTool(echoTool("guarded", "agent.write")); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.DispatchTool(context.Background(), "guarded", nil, testSession("message.send"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}

	if _, err := r.DispatchTool(context.Background(), "guarded", nil, testSession("agent.write")); err != nil {
		t.Errorf("authorized dispatch failed: %v", err)
	}
}

func TestHandlerErrorPassesThrough(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("handler exploded")
	err := r.RegisterTool(&Tool{
		Name: "boom",
		Handler: func(context.Context, *session.Session, json.RawMessage) (any, error) {
			return nil, boom
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = r.DispatchTool(context.Background(), "boom", nil, testSession())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want handler error", err)
	}
}

func TestListToolsFilteredAndSorted(t *testing.T) {
	r := NewRegistry(nil)
	for _, tool := range []*Tool{
		echoTool("zebra", ""),
		echoTool("alpha", ""),
		echoTool("guarded", "agent.write"),
	} {
		if err := r.RegisterTool(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Name, err)
		}
	}

	infos := r.ListTools(testSession())
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2 (guarded tool hidden)", len(infos))
	}
	if infos[0].Name != "alpha" || infos[1].Name != "zebra" {
		t.Errorf("list not sorted: %v", infos)
	}

	infos = r.ListTools(testSession("agent.write"))
	if len(infos) != 3 {
		t.Fatalf("len = %d, want 3 for authorized session", len(infos))
	}
}

func TestResources(t *testing.T) {
	r := NewRegistry(nil)
	err := r.RegisterResource(&Resource{
		URI:      "pod://agents",
		Name:     "Registered Agents",
		MimeType: "application/json",
		Handler: func(context.Context, *session.Session) (any, error) {
			return []string{"a", "b"}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := r.ReadResource(context.Background(), "pod://agents", testSession())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.([]string)) != 2 {
		t.Errorf("unexpected payload: %v", out)
	}

	_, err = r.ReadResource(context.Background(), "pod://missing", testSession())
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("err = %v, want ErrResourceNotFound", err)
	}

	infos := r.ListResources(testSession())
	if len(infos) != 1 || infos[0].URI != "pod://agents" {
		t.Errorf("unexpected resource list: %v", infos)
	}
}
