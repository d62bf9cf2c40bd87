// Command parcel-run starts the Parcel Run game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, the levels and sessions directories, the progress
// store, logging, version output, and optional ngrok tunneling for easy
// external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/parcel-run/api"
	"github.com/wricardo/parcel-run/game/config"
	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/progress"
	"github.com/wricardo/parcel-run/game/service"
	"github.com/wricardo/parcel-run/game/session"
	"github.com/wricardo/parcel-run/internal/ctxlog"
	"github.com/wricardo/parcel-run/transport/mcp"
	"github.com/wricardo/parcel-run/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Parcel Run Server"
)

const (
	sessionTTL      = 24 * time.Hour
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port             = flag.Int("port", 8080, "HTTP server port")
	host             = flag.String("host", "localhost", "HTTP server host")
	levelsDir        = flag.String("levels-dir", getLevelsDirDefault(), "Directory containing level_<n>.json/.yaml files")
	sessionsDir      = flag.String("sessions-dir", "sessions", "Directory for persisted session snapshots")
	progressKind     = flag.String("progress", "file", "Progress store: file, sqlite or memory")
	progressPath     = flag.String("progress-path", "", "Progress store location (default progress.json or progress.db)")
	rulesPath        = flag.String("rules", "", "YAML file overriding tile symbols and costs")
	compressSessions = flag.Bool("compress-sessions", false, "Write session snapshots zstd-compressed")
	logLevel         = flag.String("log-level", "info", "Log level: debug, info, warn or error")
	logFormat        = flag.String("log-format", "text", "Log format: text or json")
	version          = flag.Bool("version", false, "Show version information")
	ngrokEnabled     = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth        = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain      = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// getLevelsDirDefault returns the default levels directory.
// It first honors the LEVELS_DIR environment variable, then falls back to "levels".
func getLevelsDirDefault() string {
	if dir := os.Getenv("LEVELS_DIR"); dir != "" {
		return dir
	}
	return "levels"
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -progress sqlite         # Keep unlocked levels in progress.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp                # Run MCP stdio server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mcp -port 9090           # Run MCP stdio server with internal HTTP on port 9090\n", os.Args[0])
	}
}

// newLogger builds the process logger. Logs go to w so stdout stays free for MCP stdio.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	logger := newLogger(*logLevel, *logFormat, os.Stderr)
	slog.SetDefault(logger)
	if envErr == nil {
		logger.Info("loaded environment variables from .env file")
	} else if !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("error loading .env file", "error", envErr)
	}

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	logger.Info("starting", "app", AppName, "version", Version, "mode", mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	app, err := initializeServices(ctx)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, app)

	case "server", "http":
		runHTTPServer(ctx, app)

	default:
		logger.Error("unknown mode, use 'server' (default) or 'stdio-mcp'", "mode", mode)
		os.Exit(2)
	}
}

// services holds everything the server modes share
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
	progress    progress.Store
	rules       *engine.Rules
	logger      *slog.Logger
}

// Close flushes sessions and releases the progress store
func (s *services) Close() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		s.logger.Warn("failed to save sessions on shutdown", "error", err)
	}
	if err := s.progress.Close(); err != nil {
		s.logger.Warn("failed to close progress store", "error", err)
	}
}

// resolveProgressPath picks the store location when -progress-path is unset
func resolveProgressPath(kind, path string) string {
	if path != "" {
		return path
	}
	if kind == string(progress.KindSQLite) {
		return "progress.db"
	}
	return "progress.json"
}

// initializeServices wires the level catalog, progress store, session manager
// and game service. It also starts the background session routines, which stop with ctx.
func initializeServices(ctx context.Context) (*services, error) {
	logger := ctxlog.FromContext(ctx)

	rules := engine.DefaultRules()
	if *rulesPath != "" {
		loaded, err := config.LoadRules(*rulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		rules = loaded
	}

	catalog, err := config.NewManager(*levelsDir, rules, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create level catalog: %w", err)
	}
	if catalog.LevelCount() == 0 {
		logger.Warn("no levels found", "dir", *levelsDir)
	}

	store, err := progress.Open(*progressKind, resolveProgressPath(*progressKind, *progressPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}

	newEngine := func() (*engine.GameEngine, error) {
		return engine.NewEngine(catalog, store,
			engine.WithRules(rules),
			engine.WithLogger(logger.With("component", "engine")))
	}

	persistence, err := session.NewFilePersistence(*sessionsDir, newEngine, session.WithCompression(*compressSessions))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(newEngine, persistence,
		session.WithLogger(logger.With("component", "sessions")))

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", "error", err)
	}

	gameService := service.NewGameService(sessionManager, catalog, store)

	go sessionCleanupRoutine(ctx, sessionManager, cleanupInterval)
	go filesystemSyncRoutine(ctx, sessionManager, persistence, catalog, syncInterval)

	return &services{
		game:        gameService,
		sessions:    sessionManager,
		persistence: persistence,
		progress:    store,
		rules:       rules,
		logger:      logger,
	}, nil
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, app *services) {
	logger := app.logger

	hub := websocket.NewHub(websocket.WithLogger(logger.With("component", "websocket")))
	go hub.Run(ctx)

	apiServer := api.NewServer(app.game, hub, api.WithLogger(logger))

	addr := fmt.Sprintf("%s:%d", *host, *port)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr), mcp.WithRules(app.rules))

	// Main router combines the API and the MCP endpoint
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			"addr", addr,
			"api", fmt.Sprintf("http://%s/api", addr),
			"websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	if ngrokRequested() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, logger, mainRouter)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
}

// mcpHandler serves single JSON-RPC MCP messages over HTTP POST
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// ngrokRequested reports whether the tunnel is enabled by flag or NGROK_ENABLED
func ngrokRequested() bool {
	if *ngrokEnabled {
		return true
	}
	env := os.Getenv("NGROK_ENABLED")
	return env == "true" || env == "1"
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is cancelled
func runNgrokTunnel(ctx context.Context, logger *slog.Logger, handler http.Handler) {
	// Auth token from flag or environment (both naming conventions)
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use -ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	logger.Info("starting ngrok tunnel", "domain", domain)
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Warn("failed to start ngrok tunnel", "error", err)
		return
	}

	// Serve closes the tunnel listener when it returns
	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"websocket", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		logger.Warn("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			manager.CleanupExpiredSessions(sessionTTL)
		}
	}
}

// filesystemSyncRoutine periodically syncs in-memory state with the filesystem.
// It removes sessions from memory when their snapshot files are deleted and
// drops cached levels so edited level files apply to the next load.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, catalog *config.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			catalog.RefreshCache()
			if pruned := pruneOrphanedSessions(manager, persistence); pruned > 0 {
				ctxlog.FromContext(ctx).Info("filesystem sync pruned orphaned sessions", "count", pruned)
			}
		}
	}
}

// pruneOrphanedSessions drops in-memory sessions whose snapshot no longer exists
func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	if persistence == nil {
		return 0
	}
	pruned := 0
	for _, sess := range manager.List() {
		if !persistence.Exists(sess.ID) {
			if err := manager.DeleteFromMemory(sess.ID); err == nil {
				pruned++
			}
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at the configured port; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, app *services) {
	logger := app.logger
	externalURL := fmt.Sprintf("http://localhost:%d", *port)
	baseURL := externalURL

	logger.Info("checking for external API server", "url", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil {
		resp.Body.Close()
	}
	if err == nil && resp.StatusCode < 500 {
		logger.Info("external API server found, using it for MCP", "url", externalURL)
	} else {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			logger.Error("failed to get available port", "error", err)
			os.Exit(1)
		}
		internalAddr := listener.Addr().String()

		hub := websocket.NewHub(websocket.WithLogger(logger))
		go hub.Run(ctx)

		httpServer := &http.Server{
			Handler: api.NewServer(app.game, hub, api.WithLogger(logger)),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
		logger.Info("started internal HTTP server for MCP stdio", "addr", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL, mcp.WithRules(app.rules))
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		logger.Error("MCP stdio server error", "error", err)
	}
}
