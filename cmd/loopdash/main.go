// Loopdash serves the auto-loop dashboard: HTTP for browsers, MCP over
// streamable HTTP or stdio for agents.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/dashboard"
	"github.com/jaakkos/loopdash/internal/history"
	"github.com/jaakkos/loopdash/internal/policy"
	"github.com/jaakkos/loopdash/internal/status"
	"github.com/jaakkos/loopdash/internal/tools/loop"
)

// Version is set by -ldflags at build time.
var Version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
		case "render":
			runRenderCommand(os.Args[2:])
			return
		case "mcp":
			runMCPCommand()
			return
		case "status":
			runStatusCommand()
			return
		case "generate-token":
			runGenerateTokenCommand()
			return
		case "--version", "-v", "version":
			fmt.Println("loopdash " + Version)
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
			fmt.Fprintln(os.Stderr, "usage: loopdash [serve|render [file]|mcp|status|generate-token|version]")
			os.Exit(2)
		}
	}
	runServe()
}

// serverBundle holds what both the HTTP and stdio modes share.
type serverBundle struct {
	pol     *policy.Policy
	reader  *status.Reader
	logger  *log.Logger
	store   *history.Store
	mcp     *server.MCPServer
	cleanup func()
}

func newServerBundle(ctx context.Context) *serverBundle {
	tmpLogger := log.New(os.Stderr, "[loopdash] ", log.LstdFlags|log.Lshortfile)
	cfg := loadConfig(tmpLogger)
	pol := policy.New(cfg)

	logger := setupLogger(pol.LogFile())
	logger.Printf("Log file: %s", pol.LogFile())
	logger.Printf("Repo root: %s", pol.RepoRoot())

	reader := status.NewReader(pol)
	b := &serverBundle{pol: pol, reader: reader, logger: logger, cleanup: func() {}}

	// History index (optional, FTS5 over cycle logs)
	if hCfg := pol.HistoryConfig(); hCfg != nil && hCfg.Enabled {
		store, err := history.NewStore(pol.HistoryDBPath())
		if err != nil {
			logger.Printf("Warning: history store init failed: %v (feature disabled)", err)
		} else {
			b.store = store
			syncInterval := 5 * time.Minute
			if hCfg.SyncIntervalSeconds > 0 {
				syncInterval = time.Duration(hCfg.SyncIntervalSeconds) * time.Second
			}
			indexer := history.NewIndexer(store, reader, history.IndexerConfig{
				WatchEnabled: hCfg.Watch,
				SyncInterval: syncInterval,
			}, logger)
			go indexer.Start(ctx)
			logger.Printf("History index enabled (watch=%v, sync=%s, db=%s)", hCfg.Watch, syncInterval, pol.HistoryDBPath())
			b.cleanup = func() {
				if err := store.Close(); err != nil {
					logger.Printf("Warning: close history store: %v", err)
				}
			}
		}
	}

	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Printf("Calling tool: %s", message.Params.Name)
		}
	})
	hooks.AddBeforeInitialize(func(ctx context.Context, id any, message *mcp.InitializeRequest) {
		if message != nil {
			ci := message.Params.ClientInfo
			logger.Printf("Client: %s %s, Protocol: %s", ci.Name, ci.Version, message.Params.ProtocolVersion)
		}
	})

	b.mcp = server.NewMCPServer(
		"loopdash",
		Version,
		server.WithHooks(hooks),
		server.WithResourceCapabilities(false, true), // subscribe=false, listChanged=true
	)

	var regOpts []loop.RegisterOption
	if b.store != nil {
		regOpts = append(regOpts, loop.WithHistory(b.store))
	}
	loop.Register(b.mcp, reader, logger, regOpts...)
	return b
}

func runServe() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newServerBundle(ctx)
	b.logger.Println("Starting loopdash server...")

	httpShutdown := startHTTPServer(ctx, b)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGHUP)
	sig := <-sigCh
	b.logger.Printf("Received %s, shutting down", sig)

	cancel()
	httpShutdown()
	b.cleanup()
	b.logger.Println("Server stopped")
}

// runMCPCommand serves the MCP tools over stdio until the client disconnects.
func runMCPCommand() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := newServerBundle(ctx)
	b.logger.Println("Stdio ready")
	stdioSrv := server.NewStdioServer(b.mcp)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		b.logger.Printf("Stdio server stopped: %v", err)
	}
	cancel()
	b.cleanup()
}

// startHTTPServer starts the dashboard and the streamable MCP endpoint in the
// background and returns a shutdown function. Uses net.Listen so http_port 0
// picks a free port.
func startHTTPServer(ctx context.Context, b *serverBundle) func() {
	ln, err := net.Listen("tcp", b.pol.Addr())
	if err != nil {
		b.logger.Fatalf("HTTP listen: %v", err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://localhost:%d", actualPort)

	b.logger.Printf("HTTP server on %s", ln.Addr())
	b.logger.Printf("  Dashboard:      %s/", baseURL)
	b.logger.Printf("  MCP endpoint:   %s/mcp", baseURL)
	if b.pol.AuthEnabled() {
		b.logger.Println("  Authentication: enabled")
	} else {
		b.logger.Println("  Authentication: disabled (run `loopdash generate-token` to enable)")
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(b.mcp))

	var dashOpts []dashboard.HandlerOption
	if b.store != nil {
		dashOpts = append(dashOpts, dashboard.WithHistory(b.store))
	}
	dash := dashboard.NewHandler(b.reader, b.logger, dashOpts...)
	dash.RegisterRoutes(mux)
	if err := dash.WatchConsensus(ctx); err != nil {
		b.logger.Printf("Warning: consensus watcher: %v (rendering on every request)", err)
	}

	httpServer := &http.Server{Handler: mux}

	go func() {
		if err := httpServer.Serve(ln); err != http.ErrServerClosed {
			b.logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			b.logger.Printf("HTTP shutdown error: %v", err)
		}
	}
}

// setupLogger creates a logger that writes to a log file and optionally stderr.
// When stderr is a terminal, logs go to both stderr and the file. When stderr
// is redirected, logs go only to the file.
func setupLogger(logFilePath string) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else {
				fmt.Fprintf(os.Stderr, "[loopdash] Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "[loopdash] Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	// Always keep at least one output.
	if stderrIsTerminal || !hasLogFile {
		writers = append(writers, os.Stderr)
	}

	return log.New(io.MultiWriter(writers...), "[loopdash] ", log.LstdFlags|log.Lshortfile)
}

// loadConfig loads configuration from LOOPDASH_CONFIG or defaults.
func loadConfig(logger *log.Logger) *policy.Config {
	cfg := policy.DefaultConfig()
	if configPath := os.Getenv("LOOPDASH_CONFIG"); configPath != "" {
		var err error
		cfg, err = policy.LoadConfig(configPath)
		if err != nil {
			logger.Printf("Warning: failed to load config %s: %v, using defaults", configPath, err)
			cfg = policy.DefaultConfig()
		}
	}
	if cfg.RepoRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get working directory: %v\n", err)
			os.Exit(1)
		}
		cfg.RepoRoot = cwd
	}
	return cfg
}
