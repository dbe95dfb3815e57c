// ABOUTME: Entry point for the pod-mcp-server session broker
// ABOUTME: Wires the session store, rate limiter, registry, and all transports

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/pod-protocol/pod-mcp-server/internal/auth"
	"github.com/pod-protocol/pod-mcp-server/internal/broker"
	"github.com/pod-protocol/pod-mcp-server/internal/config"
	"github.com/pod-protocol/pod-mcp-server/internal/podtools"
	"github.com/pod-protocol/pod-mcp-server/internal/ratelimit"
	"github.com/pod-protocol/pod-mcp-server/internal/session"
	"github.com/pod-protocol/pod-mcp-server/internal/store"
	"github.com/pod-protocol/pod-mcp-server/internal/tools"
	"github.com/pod-protocol/pod-mcp-server/internal/transport/httpapi"
	"github.com/pod-protocol/pod-mcp-server/internal/transport/stdiopipe"
	"github.com/pod-protocol/pod-mcp-server/internal/transport/wsocket"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const banner = `
                 _
  _ __   ___   __| |      _ __ ___   ___ _ __      ___  ___ _ ____   _____ _ __
 | '_ \ / _ \ / _' |_____| '_ ' _ \ / __| '_ \ ___/ __|/ _ \ '__\ \ / / _ \ '__|
 | |_) | (_) | (_| |_____| | | | | | (__| |_) |___\__ \  __/ |   \ V /  __/ |
 | .__/ \___/ \__,_|     |_| |_| |_|\___| .__/    |___/\___|_|    \_/ \___|_|
 |_|                                    |_|
`

// getConfigPath returns the path to the server config file.
// Priority: POD_MCP_CONFIG env var > XDG_CONFIG_HOME/pod-mcp/server.yaml > ~/.config/pod-mcp/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("POD_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "pod-mcp", "server.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: pod-mcp-server <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the session broker")
		fmt.Println("  init                   Create a starter config file")
		fmt.Println("  token --user USER      Mint a JWT credential for a user")
		fmt.Println("  health                 Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	if cfg.HTTPEnabled() || cfg.WSEnabled() {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Server.StdioEnable {
		green.Print("    ▶ ")
		fmt.Printf("Stdio:     enabled\n")
	}
	fmt.Println()

	logger.Info("starting pod-mcp-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"require_auth", cfg.Auth.RequireAuth,
	)

	// Credential verifier: remote provider when configured, local JWT otherwise
	var verifier auth.Verifier
	if cfg.Auth.ProviderURL != "" {
		verifier = auth.NewRemoteVerifier(cfg.Auth.ProviderURL, nil, cfg.Auth.RequireWallet)
	} else {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.RequireWallet)
	}

	sessions := session.NewStore(verifier, cfg.SessionOptions(), logger.With("component", "sessions"))
	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	registry := tools.NewRegistry(logger.With("component", "registry"))
	if err := podtools.Register(registry, podtools.NewMemoryLedger()); err != nil {
		return fmt.Errorf("registering pod tools: %w", err)
	}

	var callLog broker.CallLog
	var callStore *store.SQLiteStore
	if cfg.Database.Path != "" {
		callStore, err = store.NewSQLiteStore(cfg.Database.Path, logger)
		if err != nil {
			return fmt.Errorf("opening call history store: %w", err)
		}
		defer callStore.Close()
		callLog = callStore
	}

	b, err := broker.New(broker.Config{
		Sessions: sessions,
		Limiter:  limiter,
		Registry: registry,
		Calls:    callLog,
		Logger:   logger.With("component", "broker"),
	})
	if err != nil {
		return fmt.Errorf("creating broker: %w", err)
	}

	// Expired sessions and stale rate counters go out on the same tick
	scheduler := session.NewScheduler(cfg.Session.CleanupInterval, func() int {
		removed := sessions.Sweep()
		limiter.Prune(sessions.Has)
		return removed
	}, logger.With("component", "cleanup"))
	scheduler.Start()
	defer scheduler.Stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if cfg.HTTPEnabled() || cfg.WSEnabled() {
		mux := http.NewServeMux()

		if cfg.HTTPEnabled() {
			api, err := httpapi.NewServer(httpapi.Config{Broker: b, Logger: logger.With("transport", "http")})
			if err != nil {
				return fmt.Errorf("creating http adapter: %w", err)
			}
			api.RegisterRoutes(mux)
		}

		if cfg.WSEnabled() {
			ws, err := wsocket.NewServer(wsocket.Config{Broker: b, Logger: logger.With("transport", "socket")})
			if err != nil {
				return fmt.Errorf("creating websocket adapter: %w", err)
			}
			mux.Handle("/ws", ws)
		}

		srv := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", "error", err)
			}
		}()
	}

	if cfg.Server.StdioEnable {
		pipe, err := stdiopipe.NewServer(stdiopipe.Config{
			Broker:           b,
			Logger:           logger.With("transport", "pipe"),
			RequireAuth:      cfg.Auth.RequireAuth,
			LocalPermissions: cfg.Auth.LocalPermissions,
			In:               os.Stdin,
			Out:              os.Stdout,
		})
		if err != nil {
			return fmt.Errorf("creating pipe adapter: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			// A dead pipe only loses the local channel; the network
			// transports keep serving.
			if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("pipe transport stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	wg.Wait()
	return nil
}

const starterConfig = `server:
  http_addr: "127.0.0.1:8787"
  stdio_enabled: false

auth:
  require_auth: true
  require_wallet: false
  jwt_secret: "${POD_MCP_JWT_SECRET}"

session:
  timeout: 30m
  cleanup_interval: 60s
  max_sessions_per_user: 5
  eviction_policy: evict_oldest
  expiry_policy: sliding

rate_limit:
  window: 60s
  max_requests: 60

database:
  path: ""

logging:
  level: info
  format: text
`

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote starter config to %s\n", configPath)
	return nil
}

func runToken() error {
	var user string
	var perms []string
	expiresIn := 24 * time.Hour

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--user":
			i++
			if i < len(args) {
				user = args[i]
			}
		case "--permissions":
			i++
			if i < len(args) {
				perms = strings.Split(args[i], ",")
			}
		case "--expires":
			i++
			if i < len(args) {
				d, err := time.ParseDuration(args[i])
				if err != nil {
					return fmt.Errorf("parsing --expires: %w", err)
				}
				expiresIn = d
			}
		}
	}
	if user == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), false)
	token, err := verifier.Generate(user, perms, expiresIn)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = newColorHandler(os.Stderr, level)
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
// Logs go to stderr so the stdio transport keeps stdout to itself.
// All handlers derived via WithAttrs/WithGroup share one mutex so their
// writes never interleave.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newColorHandler(out io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// qualify prefixes an attr key with the open group path, e.g. "http.status".
func (h *colorHandler) qualify(key string) string {
	if len(h.groups) == 0 {
		return key
	}
	return strings.Join(h.groups, ".") + "." + key
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + h.qualify(a.Key) + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(h.out, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: h.qualify(a.Key), Value: a.Value})
	}
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(newGroups, name),
	}
}
