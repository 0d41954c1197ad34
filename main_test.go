package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/circuit-challenge/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Circuit Challenge Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func captureSettings(t *testing.T, args ...string) settings {
	t.Helper()
	app := newApp()
	var got settings
	for _, c := range app.Commands {
		c.Action = func(ctx context.Context, cmd *cli.Command) error {
			got = settingsFrom(cmd)
			return nil
		}
	}
	if err := app.Run(context.Background(), append([]string{"circuit-challenge"}, args...)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return got
}

func TestFlagDefaults(t *testing.T) {
	s := captureSettings(t, "server")

	if s.Port != 8080 || s.Host != "localhost" {
		t.Errorf("Unexpected default address %s", s.addr())
	}
	if s.ConfigDir != "configs" || s.RacesDir != "races" {
		t.Errorf("Unexpected default directories %q, %q", s.ConfigDir, s.RacesDir)
	}
	if s.StreamEvery != 2 || s.RaceTTL != 24*time.Hour {
		t.Errorf("Unexpected stream or ttl defaults %+v", s)
	}
	if s.NgrokEnabled {
		t.Error("Expected ngrok to be off by default")
	}
}

func TestFlagsAndEnvironment(t *testing.T) {
	t.Setenv("CONFIG_DIR", "/srv/configs")
	t.Setenv("NGROK_AUTH_TOKEN", "secret")

	s := captureSettings(t, "--port", "9090", "--debug", "stdio-mcp")

	if s.Port != 9090 || !s.Debug {
		t.Errorf("Expected flags to apply, got %+v", s)
	}
	if s.ConfigDir != "/srv/configs" {
		t.Errorf("Expected CONFIG_DIR to apply, got %q", s.ConfigDir)
	}
	if s.NgrokAuth != "secret" {
		t.Errorf("Expected the underscore token variable to apply, got %q", s.NgrokAuth)
	}
}

func TestDefaultCommandIsServer(t *testing.T) {
	app := newApp()
	if app.DefaultCommand != "server" {
		t.Errorf("Expected server to be the default mode, got %q", app.DefaultCommand)
	}
	names := map[string]bool{}
	for _, c := range app.Commands {
		names[c.Name] = true
		for _, a := range c.Aliases {
			names[a] = true
		}
	}
	for _, want := range []string{"server", "http", "stdio-mcp", "mcp-stdio", "mcp"} {
		if !names[want] {
			t.Errorf("Expected mode %q", want)
		}
	}
}

func testSettings(t *testing.T) settings {
	return settings{
		ConfigDir:   t.TempDir(),
		RacesDir:    filepath.Join(t.TempDir(), "races"),
		StreamEvery: 2,
		RaceTTL:     time.Hour,
	}
}

func TestInitializeServices(t *testing.T) {
	svc, err := initializeServices(testSettings(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.Sessions.Close(context.Background())

	info, err := svc.Game.CreateRace(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateRace failed: %v", err)
	}
	if info.ID == "" {
		t.Error("Expected a generated race id")
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	s := testSettings(t)
	s.ConfigDir = "/non/existent/path"
	if _, err := initializeServices(s, zerolog.Nop()); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestMCPEndpoint(t *testing.T) {
	mux := newMux(http.NotFoundHandler(), mcp.NewClient("http://127.0.0.1:1"))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "create_race") {
		t.Errorf("Expected the tool list to include create_race, got %s", rec.Body.String())
	}
}

func TestAPIAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if !apiAvailable(srv.URL) {
		t.Error("Expected the test server to be detected")
	}
	if apiAvailable("http://127.0.0.1:1") {
		t.Error("Expected an unreachable address to be reported unavailable")
	}
}

func TestStartInternalAPI(t *testing.T) {
	url, shutdown, err := startInternalAPI(testSettings(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("startInternalAPI failed: %v", err)
	}
	defer shutdown()

	if !apiAvailable(url) {
		t.Errorf("Expected the internal API at %s to answer /health", url)
	}
}
