// Command circuit-challenge starts the Circuit Challenge race server.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, the race
//     WebSocket and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API
//     if none is available
//
// Flags (or their environment variables) control host/port, the config and
// race directories, logging and optional ngrok tunneling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/circuit-challenge/api"
	"github.com/wricardo/circuit-challenge/game/config"
	"github.com/wricardo/circuit-challenge/game/service"
	"github.com/wricardo/circuit-challenge/game/session"
	"github.com/wricardo/circuit-challenge/logging"
	"github.com/wricardo/circuit-challenge/transport/mcp"
	"github.com/wricardo/circuit-challenge/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Circuit Challenge Server"
)

// settings is the resolved command line and environment
type settings struct {
	Host          string
	Port          int
	ConfigDir     string
	RacesDir      string
	LogLevel      string
	Debug         bool
	StreamEvery   int
	RaceTTL       time.Duration
	SyncInterval  time.Duration
	NgrokEnabled  bool
	NgrokAuth     string
	NgrokDomain   string
	ExternalProbe string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		Host:          cmd.String("host"),
		Port:          int(cmd.Int("port")),
		ConfigDir:     cmd.String("config-dir"),
		RacesDir:      cmd.String("races-dir"),
		LogLevel:      cmd.String("log-level"),
		Debug:         cmd.Bool("debug"),
		StreamEvery:   int(cmd.Int("stream-every")),
		RaceTTL:       cmd.Duration("race-ttl"),
		SyncInterval:  cmd.Duration("sync-interval"),
		NgrokEnabled:  cmd.Bool("ngrok"),
		NgrokAuth:     cmd.String("ngrok-auth"),
		NgrokDomain:   cmd.String("ngrok-domain"),
		ExternalProbe: cmd.String("external-api"),
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "circuit-challenge",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing race configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "races-dir", Value: "races", Usage: "Directory race snapshots are saved to", Sources: cli.EnvVars("RACES_DIR")},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging in console format", Sources: cli.EnvVars("DEBUG")},
			&cli.IntFlag{Name: "stream-every", Value: 2, Usage: "Publish every n-th frame to viewers", Sources: cli.EnvVars("STREAM_EVERY")},
			&cli.DurationFlag{Name: "race-ttl", Value: 24 * time.Hour, Usage: "Close races idle for longer than this", Sources: cli.EnvVars("RACE_TTL")},
			&cli.DurationFlag{Name: "sync-interval", Value: 5 * time.Second, Usage: "How often to drop races whose files were deleted", Sources: cli.EnvVars("SYNC_INTERVAL")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
			&cli.StringFlag{Name: "external-api", Value: "http://localhost:8080", Usage: "API the stdio MCP server tries before starting its own", Sources: cli.EnvVars("EXTERNAL_API")},
		},
		DefaultCommand: "server",
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s := settingsFrom(cmd)
					log := newLogger(s, os.Stderr)
					return runHTTPServer(ctx, s, log)
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s := settingsFrom(cmd)
					// stdout carries the MCP protocol
					log := newLogger(s, os.Stderr)
					return runStdioMCP(ctx, s, log)
				},
			},
		},
	}
}

func newLogger(s settings, out io.Writer) zerolog.Logger {
	level := s.LogLevel
	if s.Debug {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Console: s.Debug, Out: out})
}

// main loads .env and runs the selected mode
func main() {
	// Load .env file if it exists; flags read the environment afterwards
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// services is everything a running server owns
type services struct {
	Game     service.GameService
	Sessions *session.Manager
	Hub      *websocket.Hub
}

// initializeServices wires the config and race managers, the hub and the
// game service. Persisted races are loaded immediately.
func initializeServices(s settings, log zerolog.Logger) (*services, error) {
	configManager, err := config.NewManager(s.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(s.RacesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create race persistence: %w", err)
	}

	hub := websocket.NewHub(logging.Component(log, "websocket"))
	sessionManager := session.NewManagerWithPersistence(persistence, configManager, session.Options{
		StreamEvery: s.StreamEvery,
		Publisher:   hub,
		Logger:      logging.Component(log, "session"),
	})
	if err := sessionManager.LoadPersisted(); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted races")
	}

	game := service.NewGameService(sessionManager, configManager, logging.Component(log, "service"))
	return &services{Game: game, Sessions: sessionManager, Hub: hub}, nil
}

// maintain closes idle races and drops races whose files were deleted until
// ctx ends
func maintain(ctx context.Context, s settings, manager *session.Manager, log zerolog.Logger) {
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()
	syncEvery := s.SyncInterval
	if syncEvery <= 0 {
		syncEvery = 5 * time.Second
	}
	prune := time.NewTicker(syncEvery)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if removed := manager.CleanupExpired(s.RaceTTL); removed > 0 {
				log.Info().Int("count", removed).Msg("closed idle races")
			}
		case <-prune.C:
			for _, id := range manager.PruneOrphans() {
				log.Info().Str("race", id).Msg("pruned race from memory (file deleted)")
			}
		}
	}
}

// newMux mounts the API and the /mcp endpoint
func newMux(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
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

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	return mux
}

// runHTTPServer serves the API, the race WebSocket and the /mcp endpoint until
// SIGINT or SIGTERM. With ngrok enabled the same handler is also served
// through a public tunnel.
func runHTTPServer(parent context.Context, s settings, log zerolog.Logger) error {
	log.Info().Str("version", Version).Str("mode", "server").Msg("starting " + AppName)

	svc, err := initializeServices(s, log)
	if err != nil {
		return err
	}
	go svc.Hub.Run()

	addr := s.addr()
	apiServer := api.NewServer(svc.Game, svc.Hub, logging.Component(log, "api"))
	mux := newMux(apiServer, mcp.NewClient("http://"+addr))

	// WriteTimeout stays unset: the WebSocket handler owns its deadlines
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		maintain(ctx, s, svc.Sessions, log)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("api", fmt.Sprintf("http://%s/api", addr)).
			Str("websocket", fmt.Sprintf("ws://%s/ws?race=<race_id>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if s.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, s, mux, log)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			svc.Hub.Stop()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := svc.Sessions.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to save races on shutdown")
	}
	svc.Hub.Stop()

	wg.Wait()
	log.Info().Msg("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx ends
func runNgrok(ctx context.Context, s settings, handler http.Handler, log zerolog.Logger) {
	if s.NgrokAuth == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	tunnel := ngrokConfig.HTTPEndpoint()
	if s.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.NgrokDomain))
		log.Info().Str("domain", s.NgrokDomain).Msg("using custom ngrok domain")
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.NgrokAuth))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	url := tun.URL()
	log.Info().
		Str("url", url).
		Str("api", url+"/api").
		Str("mcp", url+"/mcp").
		Msg("ngrok tunnel established")

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

// apiAvailable reports whether a race API answers at baseURL
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the API on a random loopback port and returns
// its base URL
func startInternalAPI(s settings, log zerolog.Logger) (string, func(), error) {
	svc, err := initializeServices(s, log)
	if err != nil {
		return "", nil, err
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	go svc.Hub.Run()
	httpServer := &http.Server{Handler: api.NewServer(svc.Game, svc.Hub, logging.Component(log, "api"))}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("internal HTTP server error")
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
		svc.Sessions.Close(ctx)
		svc.Hub.Stop()
	}
	return "http://" + listener.Addr().String(), shutdown, nil
}

// runStdioMCP runs an MCP stdio server. It reuses an external API when one
// answers; otherwise it starts an internal one on a loopback port.
func runStdioMCP(ctx context.Context, s settings, log zerolog.Logger) error {
	baseURL := s.ExternalProbe
	if baseURL != "" && apiAvailable(baseURL) {
		log.Info().Str("url", baseURL).Msg("external API server found, using it for MCP")
	} else {
		log.Info().Msg("no external API server found, starting internal HTTP server")
		url, shutdown, err := startInternalAPI(s, log)
		if err != nil {
			return err
		}
		defer shutdown()
		baseURL = url
	}

	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
