// ABOUTME: Configuration loading and parsing for pod-mcp-server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pod-protocol/pod-mcp-server/internal/session"
)

// Config represents the complete pod-mcp-server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds per-transport enable flags and addresses
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	HTTPEnabled *bool  `yaml:"http_enabled"` // default true
	WSEnabled   *bool  `yaml:"ws_enabled"`   // WebSocket endpoint on /ws, default true
	StdioEnable bool   `yaml:"stdio_enabled"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	RequireAuth   bool   `yaml:"require_auth"`
	RequireWallet bool   `yaml:"require_wallet"`
	JWTSecret     string `yaml:"jwt_secret"`
	ProviderURL   string `yaml:"provider_url"` // remote identity provider; empty = local JWT

	// LocalPermissions are granted to the implicit pipe session when
	// require_auth is false.
	LocalPermissions []string `yaml:"local_permissions"`
}

// SessionConfig holds session store policy
type SessionConfig struct {
	Timeout         time.Duration `yaml:"-"`
	CleanupInterval time.Duration `yaml:"-"`
	MaxPerUser      int           `yaml:"max_sessions_per_user"`
	EvictionPolicy  string        `yaml:"eviction_policy"` // evict_oldest | reject
	ExpiryPolicy    string        `yaml:"expiry_policy"`   // sliding | fixed
	MaxUses         int           `yaml:"max_uses"`        // 0 = unlimited

	// Raw string values for YAML unmarshaling
	TimeoutRaw         string `yaml:"timeout"`
	CleanupIntervalRaw string `yaml:"cleanup_interval"`
}

// RateLimitConfig holds per-session rate limit settings
type RateLimitConfig struct {
	Window      time.Duration `yaml:"-"`
	MaxRequests int           `yaml:"max_requests"`

	WindowRaw string `yaml:"window"`
}

// DatabaseConfig holds call-history database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty disables call history
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.HTTPEnabled() || c.WSEnabled() {
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required when http or ws transport is enabled")
		}
	}

	if c.Auth.RequireAuth && c.Auth.JWTSecret == "" && c.Auth.ProviderURL == "" {
		return fmt.Errorf("auth.jwt_secret or auth.provider_url is required when require_auth is enabled")
	}

	switch session.EvictionPolicy(c.Session.EvictionPolicy) {
	case "", session.EvictOldest, session.RejectNew:
	default:
		return fmt.Errorf("session.eviction_policy must be %q or %q", session.EvictOldest, session.RejectNew)
	}

	switch session.ExpiryPolicy(c.Session.ExpiryPolicy) {
	case "", session.SlidingExpiry, session.FixedExpiry:
	default:
		return fmt.Errorf("session.expiry_policy must be %q or %q", session.SlidingExpiry, session.FixedExpiry)
	}

	if c.Session.MaxPerUser < 0 {
		return fmt.Errorf("session.max_sessions_per_user must not be negative")
	}
	if c.RateLimit.MaxRequests < 0 {
		return fmt.Errorf("rate_limit.max_requests must not be negative")
	}

	return nil
}

// HTTPEnabled reports whether the request/response transport is on (default true).
func (c *Config) HTTPEnabled() bool {
	return c.Server.HTTPEnabled == nil || *c.Server.HTTPEnabled
}

// WSEnabled reports whether the WebSocket transport is on (default true).
func (c *Config) WSEnabled() bool {
	return c.Server.WSEnabled == nil || *c.Server.WSEnabled
}

// SessionOptions converts the session section into store options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Timeout:    c.Session.Timeout,
		MaxPerUser: c.Session.MaxPerUser,
		Eviction:   session.EvictionPolicy(c.Session.EvictionPolicy),
		Expiry:     session.ExpiryPolicy(c.Session.ExpiryPolicy),
		MaxUses:    c.Session.MaxUses,
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.TimeoutRaw != "" {
		cfg.Session.Timeout, err = time.ParseDuration(cfg.Session.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing session.timeout %q: %w", cfg.Session.TimeoutRaw, err)
		}
	}

	if cfg.Session.CleanupIntervalRaw != "" {
		cfg.Session.CleanupInterval, err = time.ParseDuration(cfg.Session.CleanupIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing session.cleanup_interval %q: %w", cfg.Session.CleanupIntervalRaw, err)
		}
	}

	if cfg.RateLimit.WindowRaw != "" {
		cfg.RateLimit.Window, err = time.ParseDuration(cfg.RateLimit.WindowRaw)
		if err != nil {
			return fmt.Errorf("parsing rate_limit.window %q: %w", cfg.RateLimit.WindowRaw, err)
		}
	}

	return nil
}
