package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/circuit-challenge/game/config"
	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/game/service"
	"github.com/wricardo/circuit-challenge/game/session"
	"github.com/wricardo/circuit-challenge/render/stream"
	"github.com/wricardo/circuit-challenge/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	CreateRaceFunc  func(ctx context.Context, configName string) (*service.RaceInfo, error)
	GetRaceFunc     func(ctx context.Context, raceID string) (*service.RaceInfo, error)
	ListRacesFunc   func(ctx context.Context) ([]*service.RaceInfo, error)
	DeleteRaceFunc  func(ctx context.Context, raceID string) error
	JoinFunc        func(ctx context.Context, raceID string, req session.JoinRequest) (*session.VehicleStatus, error)
	DriveFunc       func(ctx context.Context, raceID, vehicleID string, in engine.ControlInput) (*session.VehicleStatus, error)
	AnswerFunc      func(ctx context.Context, raceID, vehicleID string, index int) (*overlay.Result, error)
	SkipFunc        func(ctx context.Context, raceID, vehicleID string) (*overlay.Result, error)
	SaveConfigFunc  func(ctx context.Context, configName string, cfg *engine.RaceConfig) error
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
}

func (m *MockGameService) CreateRace(ctx context.Context, configName string) (*service.RaceInfo, error) {
	if m.CreateRaceFunc != nil {
		return m.CreateRaceFunc(ctx, configName)
	}
	return &service.RaceInfo{ID: "ab12", ConfigName: configName, CreatedAt: time.Now()}, nil
}

func (m *MockGameService) GetRace(ctx context.Context, raceID string) (*service.RaceInfo, error) {
	if m.GetRaceFunc != nil {
		return m.GetRaceFunc(ctx, raceID)
	}
	return &service.RaceInfo{ID: raceID, ConfigName: "test-config", CreatedAt: time.Now()}, nil
}

func (m *MockGameService) ListRaces(ctx context.Context) ([]*service.RaceInfo, error) {
	if m.ListRacesFunc != nil {
		return m.ListRacesFunc(ctx)
	}
	return []*service.RaceInfo{}, nil
}

func (m *MockGameService) DeleteRace(ctx context.Context, raceID string) error {
	if m.DeleteRaceFunc != nil {
		return m.DeleteRaceFunc(ctx, raceID)
	}
	return nil
}

func (m *MockGameService) StartRace(ctx context.Context, raceID string) (*service.RaceInfo, error) {
	info, err := m.GetRace(ctx, raceID)
	if err == nil {
		info.Running = true
	}
	return info, err
}

func (m *MockGameService) StopRace(ctx context.Context, raceID string) (*service.RaceInfo, error) {
	return m.GetRace(ctx, raceID)
}

func (m *MockGameService) Join(ctx context.Context, raceID string, req session.JoinRequest) (*session.VehicleStatus, error) {
	if m.JoinFunc != nil {
		return m.JoinFunc(ctx, raceID, req)
	}
	return &session.VehicleStatus{Vehicle: engine.Vehicle{ID: req.ID, DisplayName: req.Name}}, nil
}

func (m *MockGameService) Leave(ctx context.Context, raceID, vehicleID string) error {
	return nil
}

func (m *MockGameService) Drive(ctx context.Context, raceID, vehicleID string, in engine.ControlInput) (*session.VehicleStatus, error) {
	if m.DriveFunc != nil {
		return m.DriveFunc(ctx, raceID, vehicleID, in)
	}
	return &session.VehicleStatus{Vehicle: engine.Vehicle{ID: vehicleID}}, nil
}

func (m *MockGameService) GetVehicle(ctx context.Context, raceID, vehicleID string) (*session.VehicleStatus, error) {
	return &session.VehicleStatus{Vehicle: engine.Vehicle{ID: vehicleID}}, nil
}

func (m *MockGameService) Answer(ctx context.Context, raceID, vehicleID string, index int) (*overlay.Result, error) {
	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, raceID, vehicleID, index)
	}
	return &overlay.Result{VehicleID: vehicleID, AnswerIndex: index, Outcome: overlay.OutcomeCorrect}, nil
}

func (m *MockGameService) Skip(ctx context.Context, raceID, vehicleID string) (*overlay.Result, error) {
	if m.SkipFunc != nil {
		return m.SkipFunc(ctx, raceID, vehicleID)
	}
	return &overlay.Result{VehicleID: vehicleID, Outcome: overlay.OutcomeSkipped}, nil
}

func (m *MockGameService) GetStandings(ctx context.Context, raceID string) ([]engine.Standing, error) {
	return []engine.Standing{{Rank: 1, VehicleID: "car-1"}}, nil
}

func (m *MockGameService) GetCheckpoints(ctx context.Context, raceID string) ([]engine.Checkpoint, error) {
	return []engine.Checkpoint{{ID: "cp1"}}, nil
}

func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{{ConfigID: "default", Name: "default"}}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configName string) (*engine.RaceConfig, error) {
	if configName != "default" {
		return nil, fmt.Errorf("%w: %q", service.ErrConfigNotFound, configName)
	}
	return engine.DefaultRaceConfig(), nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configName string, cfg *engine.RaceConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, cfg)
	}
	return nil
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHandleCreateRace(t *testing.T) {
	var gotConfig string
	mock := &MockGameService{
		CreateRaceFunc: func(ctx context.Context, configName string) (*service.RaceInfo, error) {
			gotConfig = configName
			if configName == "missing" {
				return nil, fmt.Errorf("%w: missing", service.ErrConfigNotFound)
			}
			return &service.RaceInfo{ID: "ab12", ConfigName: configName}, nil
		},
	}
	server := NewServer(mock, nil, zerolog.Nop())

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantConfig string
	}{
		{"default config", nil, http.StatusCreated, ""},
		{"named config", map[string]string{"config_id": "sprint"}, http.StatusCreated, "sprint"},
		{"unknown config", map[string]string{"config_id": "missing"}, http.StatusNotFound, "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, server, "POST", "/api/races", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if gotConfig != tt.wantConfig {
				t.Errorf("Expected config %q, got %q", tt.wantConfig, gotConfig)
			}
		})
	}
}

func TestHandleListRaces(t *testing.T) {
	now := time.Now()
	mock := &MockGameService{
		ListRacesFunc: func(ctx context.Context) ([]*service.RaceInfo, error) {
			return []*service.RaceInfo{
				{ID: "old", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Hour)},
				{ID: "new", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
				{ID: "mid", CreatedAt: now.Add(-90 * time.Minute), LastAccessedAt: now.Add(-30 * time.Minute)},
			}, nil
		},
	}
	server := NewServer(mock, nil, zerolog.Nop())

	tests := []struct {
		query string
		want  []string
		total int
	}{
		{"", []string{"new", "mid", "old"}, 3},
		{"?order=asc", []string{"old", "mid", "new"}, 3},
		{"?sort=created&order=asc", []string{"old", "mid", "new"}, 3},
		{"?limit=1", []string{"new"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := doRequest(t, server, "GET", "/api/races"+tt.query, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rr.Code)
			}
			var resp struct {
				Count int                 `json:"count"`
				Total int                 `json:"total"`
				Races []*service.RaceInfo `json:"races"`
			}
			decode(t, rr, &resp)
			if resp.Total != tt.total || resp.Count != len(tt.want) {
				t.Errorf("Expected count %d of %d, got %d of %d", len(tt.want), tt.total, resp.Count, resp.Total)
			}
			for i, id := range tt.want {
				if i >= len(resp.Races) || resp.Races[i].ID != id {
					t.Errorf("Expected %v order, got %+v", tt.want, resp.Races)
					break
				}
			}
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"race not found", fmt.Errorf("get: %w", session.ErrRaceNotFound), http.StatusNotFound},
		{"vehicle not found", session.ErrVehicleNotFound, http.StatusNotFound},
		{"config not found", config.ErrConfigNotFound, http.StatusNotFound},
		{"invalid answer", overlay.ErrInvalidAnswer, http.StatusBadRequest},
		{"invalid config", fmt.Errorf("%w: name", config.ErrInvalidConfig), http.StatusBadRequest},
		{"no question", overlay.ErrNoQuestion, http.StatusConflict},
		{"race full", engine.ErrRaceFull, http.StatusConflict},
		{"duplicate vehicle", engine.ErrVehicleExists, http.StatusConflict},
		{"closed race", session.ErrRaceClosed, http.StatusGone},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestVehicleHandlers(t *testing.T) {
	var driven engine.ControlInput
	mock := &MockGameService{
		DriveFunc: func(ctx context.Context, raceID, vehicleID string, in engine.ControlInput) (*session.VehicleStatus, error) {
			if vehicleID != "car-1" {
				return nil, session.ErrVehicleNotFound
			}
			driven = in
			return &session.VehicleStatus{Vehicle: engine.Vehicle{ID: vehicleID}}, nil
		},
		SkipFunc: func(ctx context.Context, raceID, vehicleID string) (*overlay.Result, error) {
			return nil, overlay.ErrNoQuestion
		},
	}
	server := NewServer(mock, nil, zerolog.Nop())

	rr := doRequest(t, server, "POST", "/api/races/ab12/vehicles", session.JoinRequest{ID: "car-1", Name: "Ada"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected join status 201, got %d", rr.Code)
	}
	var joined session.VehicleStatus
	decode(t, rr, &joined)
	if joined.Vehicle.ID != "car-1" || joined.Vehicle.DisplayName != "Ada" {
		t.Errorf("Unexpected joined vehicle %+v", joined.Vehicle)
	}

	rr = doRequest(t, server, "POST", "/api/races/ab12/vehicles/car-1/controls", engine.ControlInput{Accelerate: true, Left: true})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected drive status 200, got %d", rr.Code)
	}
	if !driven.Accelerate || !driven.Left {
		t.Errorf("Controls not forwarded: %+v", driven)
	}

	rr = doRequest(t, server, "POST", "/api/races/ab12/vehicles/ghost/controls", engine.ControlInput{})
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown vehicle, got %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/races/ab12/vehicles/car-1/answer", map[string]int{"answer": 2})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected answer status 200, got %d", rr.Code)
	}
	var result overlay.Result
	decode(t, rr, &result)
	if result.AnswerIndex != 2 {
		t.Errorf("Expected answer index 2, got %d", result.AnswerIndex)
	}

	rr = doRequest(t, server, "POST", "/api/races/ab12/vehicles/car-1/answer", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without an answer, got %d", rr.Code)
	}

	rr = doRequest(t, server, "POST", "/api/races/ab12/vehicles/car-1/skip", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 when no question is open, got %d", rr.Code)
	}

	rr = doRequest(t, server, "DELETE", "/api/races/ab12/vehicles/car-1", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected leave status 200, got %d", rr.Code)
	}
}

func TestConfigHandlers(t *testing.T) {
	var saved string
	mock := &MockGameService{
		SaveConfigFunc: func(ctx context.Context, configName string, cfg *engine.RaceConfig) error {
			if cfg.Name == "" {
				return fmt.Errorf("%w: name is required", config.ErrInvalidConfig)
			}
			saved = configName
			return nil
		},
	}
	server := NewServer(mock, nil, zerolog.Nop())

	rr := doRequest(t, server, "GET", "/api/configs", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	rr = doRequest(t, server, "GET", "/api/configs/default.json", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 for default.json, got %d", rr.Code)
	}
	rr = doRequest(t, server, "GET", "/api/configs/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	cfg := engine.DefaultRaceConfig()
	body := map[string]interface{}{
		"config_id":   "custom",
		"name":        cfg.Name,
		"description": cfg.Description,
		"variant":     cfg.Variant,
	}
	rr = doRequest(t, server, "POST", "/api/configs", body)
	if rr.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if saved != "custom" {
		t.Errorf("Expected config saved as custom, got %q", saved)
	}

	rr = doRequest(t, server, "POST", "/api/configs", map[string]string{"config_id": "bad"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an invalid config, got %d", rr.Code)
	}
	rr = doRequest(t, server, "POST", "/api/configs", map[string]string{"name": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without config_id, got %d", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	server := NewServer(&MockGameService{}, nil, zerolog.Nop())

	rr := doRequest(t, server, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", resp)
	}
}

func TestWebSocketRequiresRace(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop())
	mock := &MockGameService{
		GetRaceFunc: func(ctx context.Context, raceID string) (*service.RaceInfo, error) {
			return nil, session.ErrRaceNotFound
		},
	}
	server := NewServer(mock, hub, zerolog.Nop())

	if rr := doRequest(t, server, "GET", "/ws", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a race, got %d", rr.Code)
	}
	if rr := doRequest(t, server, "GET", "/ws?race=zzzz", nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown race, got %d", rr.Code)
	}
}

// newStack wires the real service, race manager and hub behind the API
func newStack(t *testing.T) (*httptest.Server, *websocket.Hub) {
	t.Helper()
	log := zerolog.Nop()
	hub := websocket.NewHub(log)
	go hub.Run()

	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	races := session.NewManager(session.Options{
		FrameInterval: time.Millisecond,
		StreamEvery:   1,
		Publisher:     hub,
		Logger:        log,
	})
	svc := service.NewGameService(races, configs, log)

	ts := httptest.NewServer(NewServer(svc, hub, log))
	t.Cleanup(func() {
		ts.Close()
		races.Close(context.Background())
		hub.Stop()
	})
	return ts, hub
}

func TestRaceOverHTTPAndWebSocket(t *testing.T) {
	ts, hub := newStack(t)

	post := func(path string, body interface{}) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("POST %s failed: %v", path, err)
		}
		return resp
	}

	resp := post("/api/races", map[string]string{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	var race service.RaceInfo
	json.NewDecoder(resp.Body).Decode(&race)
	resp.Body.Close()
	if race.ID == "" || race.TotalLaps != engine.DefaultTotalLaps {
		t.Fatalf("Unexpected race %+v", race)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?race=" + race.ID
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(race.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp = post("/api/races/"+race.ID+"/vehicles", session.JoinRequest{ID: "car-1", Name: "Ada"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected join status 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post("/api/races/"+race.ID+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected start status 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The default oval starts inside its first checkpoint, so a question
	// arrives within the first frames.
	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(seen[stream.KindFrame] && seen[stream.KindQuestion]) {
		var msg stream.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read stream (seen %v): %v", seen, err)
		}
		if msg.RaceID != race.ID {
			t.Errorf("Expected race %s, got %s", race.ID, msg.RaceID)
		}
		seen[msg.Kind] = true
	}

	// Answer over the socket; the result is published back to viewers
	if err := conn.WriteJSON(map[string]interface{}{"action": "answer", "vehicle_id": "car-1", "answer": 1}); err != nil {
		t.Fatalf("Failed to send answer: %v", err)
	}
	for {
		var msg stream.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed waiting for question result: %v", err)
		}
		if msg.Kind == stream.KindQuestionResult {
			break
		}
	}

	standings, err := http.Get(ts.URL + "/api/races/" + race.ID + "/standings")
	if err != nil {
		t.Fatalf("GET standings failed: %v", err)
	}
	defer standings.Body.Close()
	var body struct {
		Standings []engine.Standing `json:"standings"`
	}
	json.NewDecoder(standings.Body).Decode(&body)
	if len(body.Standings) != 1 || body.Standings[0].VehicleID != "car-1" {
		t.Errorf("Unexpected standings %+v", body.Standings)
	}
}
