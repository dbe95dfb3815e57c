package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pod-protocol/pod-mcp-server/internal/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9090"
  stdio_enabled: true
auth:
  require_auth: true
  jwt_secret: "secret123"
session:
  timeout: 15m
  cleanup_interval: 30s
  max_sessions_per_user: 3
  eviction_policy: reject
  expiry_policy: fixed
  max_uses: 10
rate_limit:
  window: 10s
  max_requests: 20
database:
  path: "/tmp/calls.db"
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9090" {
		t.Errorf("http_addr = %q", cfg.Server.HTTPAddr)
	}
	if !cfg.Server.StdioEnable {
		t.Error("stdio should be enabled")
	}
	if !cfg.Auth.RequireAuth || cfg.Auth.JWTSecret != "secret123" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Session.Timeout != 15*time.Minute {
		t.Errorf("timeout = %v", cfg.Session.Timeout)
	}
	if cfg.Session.CleanupInterval != 30*time.Second {
		t.Errorf("cleanup_interval = %v", cfg.Session.CleanupInterval)
	}
	if cfg.RateLimit.Window != 10*time.Second || cfg.RateLimit.MaxRequests != 20 {
		t.Errorf("rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Database.Path != "/tmp/calls.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	opts := cfg.SessionOptions()
	if opts.Eviction != session.RejectNew || opts.Expiry != session.FixedExpiry {
		t.Errorf("options = %+v", opts)
	}
	if opts.MaxPerUser != 3 || opts.MaxUses != 10 {
		t.Errorf("options = %+v", opts)
	}
}

func TestTransportDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.HTTPEnabled() || !cfg.WSEnabled() {
		t.Error("http and ws should default to enabled")
	}
	if cfg.Server.StdioEnable {
		t.Error("stdio should default to disabled")
	}
}

func TestTransportsDisabled(t *testing.T) {
	path := writeConfig(t, `
server:
  http_enabled: false
  ws_enabled: false
  stdio_enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPEnabled() || cfg.WSEnabled() {
		t.Error("http and ws should be off")
	}
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_POD_SECRET", "expanded-secret")

	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9090"
auth:
  require_auth: true
  jwt_secret: "${TEST_POD_SECRET}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("jwt_secret = %q", cfg.Auth.JWTSecret)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name: "missing http addr",
			yaml: `
auth:
  jwt_secret: s
`,
			wantMsg: "http_addr",
		},
		{
			name: "auth without secret or provider",
			yaml: `
server:
  http_addr: "127.0.0.1:1"
auth:
  require_auth: true
`,
			wantMsg: "jwt_secret",
		},
		{
			name: "bad eviction policy",
			yaml: `
server:
  http_addr: "127.0.0.1:1"
session:
  eviction_policy: lru
`,
			wantMsg: "eviction_policy",
		},
		{
			name: "bad expiry policy",
			yaml: `
server:
  http_addr: "127.0.0.1:1"
session:
  expiry_policy: never
`,
			wantMsg: "expiry_policy",
		},
		{
			name: "bad duration",
			yaml: `
server:
  http_addr: "127.0.0.1:1"
session:
  timeout: "soon"
`,
			wantMsg: "session.timeout",
		},
		{
			name: "negative rate limit",
			yaml: `
server:
  http_addr: "127.0.0.1:1"
rate_limit:
  max_requests: -1
`,
			wantMsg: "max_requests",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantMsg)
			}
		})
	}
}

func TestProviderURLSatisfiesAuth(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:1"
auth:
  require_auth: true
  provider_url: "https://id.example.com/verify"
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
}
