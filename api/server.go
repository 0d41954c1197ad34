package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/circuit-challenge/game/config"
	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/game/service"
	"github.com/wricardo/circuit-challenge/game/session"
	"github.com/wricardo/circuit-challenge/transport/websocket"
)

// inboundTimeout bounds a websocket action waiting on its race
const inboundTimeout = 2 * time.Second

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	log     zerolog.Logger
}

// NewServer creates a new API server. A nil hub disables /ws.
func NewServer(gameService service.GameService, hub *websocket.Hub, log zerolog.Logger) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log,
	}

	if hub != nil {
		hub.HandleInbound(s.handleInbound)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Races
	api.HandleFunc("/races", s.handleCreateRace).Methods("POST")
	api.HandleFunc("/races", s.handleListRaces).Methods("GET")
	api.HandleFunc("/races/{id}", s.handleGetRace).Methods("GET")
	api.HandleFunc("/races/{id}", s.handleDeleteRace).Methods("DELETE")
	api.HandleFunc("/races/{id}/start", s.handleStartRace).Methods("POST")
	api.HandleFunc("/races/{id}/stop", s.handleStopRace).Methods("POST")
	api.HandleFunc("/races/{id}/standings", s.handleStandings).Methods("GET")
	api.HandleFunc("/races/{id}/checkpoints", s.handleCheckpoints).Methods("GET")

	// Vehicles
	api.HandleFunc("/races/{id}/vehicles", s.handleJoin).Methods("POST")
	api.HandleFunc("/races/{id}/vehicles/{vid}", s.handleGetVehicle).Methods("GET")
	api.HandleFunc("/races/{id}/vehicles/{vid}", s.handleLeave).Methods("DELETE")
	api.HandleFunc("/races/{id}/vehicles/{vid}/controls", s.handleControls).Methods("POST")
	api.HandleFunc("/races/{id}/vehicles/{vid}/answer", s.handleAnswer).Methods("POST")
	api.HandleFunc("/races/{id}/vehicles/{vid}/skip", s.handleSkip).Methods("POST")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The recorder would hide http.Hijacker from the upgrader
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrRaceNotFound),
		errors.Is(err, session.ErrVehicleNotFound),
		errors.Is(err, service.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, overlay.ErrInvalidAnswer),
		errors.Is(err, session.ErrInvalidRaceID),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, overlay.ErrNoQuestion),
		errors.Is(err, engine.ErrRaceFull),
		errors.Is(err, engine.ErrVehicleExists),
		errors.Is(err, session.ErrRaceAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrRaceClosed),
		errors.Is(err, engine.ErrDisposed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// Race Handlers

func (s *Server) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}

	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	race, err := s.service.CreateRace(r.Context(), req.ConfigID)
	if err != nil {
		s.fail(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, race)
}

func (s *Server) handleListRaces(w http.ResponseWriter, r *http.Request) {
	races, err := s.service.ListRaces(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.SliceStable(races, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = races[i].CreatedAt, races[j].CreatedAt
		} else {
			ti, tj = races[i].LastAccessedAt, races[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(races)
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(races) {
		races = races[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(races),
		"total": total,
		"races": races,
		"sort":  sortBy,
		"order": order,
	})
}

func (s *Server) handleGetRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.service.GetRace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, race)
}

func (s *Server) handleDeleteRace(w http.ResponseWriter, r *http.Request) {
	raceID := mux.Vars(r)["id"]
	if err := s.service.DeleteRace(r.Context(), raceID); err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Race %s deleted", raceID),
	})
}

func (s *Server) handleStartRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.service.StartRace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, race)
}

func (s *Server) handleStopRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.service.StopRace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, race)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := s.service.GetStandings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"standings": standings,
	})
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := s.service.GetCheckpoints(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"checkpoints": checkpoints,
	})
}

// Vehicle Handlers

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req session.JoinRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	status, err := s.service.Join(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, status)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	status, err := s.service.GetVehicle(r.Context(), vars["id"], vars["vid"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.service.Leave(r.Context(), vars["id"], vars["vid"]); err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Vehicle %s left race %s", vars["vid"], vars["id"]),
	})
}

func (s *Server) handleControls(w http.ResponseWriter, r *http.Request) {
	var in engine.ControlInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vars := mux.Vars(r)
	status, err := s.service.Drive(r.Context(), vars["id"], vars["vid"], in)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer *int `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == nil {
		respondError(w, http.StatusBadRequest, "answer index is required")
		return
	}

	vars := mux.Vars(r)
	result, err := s.service.Answer(r.Context(), vars["id"], vars["vid"], *req.Answer)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.service.Skip(r.Context(), vars["id"], vars["vid"])
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	cfg, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id"`
		engine.RaceConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ConfigID == "" {
		respondError(w, http.StatusBadRequest, "config_id is required")
		return
	}

	if err := s.service.SaveConfig(r.Context(), req.ConfigID, &req.RaceConfig); err != nil {
		s.fail(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": req.ConfigID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusNotFound, "websocket streaming is disabled")
		return
	}
	raceID := r.URL.Query().Get("race")
	if raceID == "" {
		respondError(w, http.StatusBadRequest, "race parameter required")
		return
	}

	race, err := s.service.GetRace(r.Context(), raceID)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.hub.ServeWS(w, r, race.ID)
}

// handleInbound applies actions sent over a race's websocket
func (s *Server) handleInbound(raceID string, msg websocket.Inbound) error {
	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()

	switch msg.Action {
	case websocket.ActionDrive:
		if msg.Controls == nil {
			return errors.New("controls are required")
		}
		_, err := s.service.Drive(ctx, raceID, msg.VehicleID, *msg.Controls)
		return err
	case websocket.ActionAnswer:
		if msg.Answer == nil {
			return errors.New("answer index is required")
		}
		_, err := s.service.Answer(ctx, raceID, msg.VehicleID, *msg.Answer)
		return err
	case websocket.ActionSkip:
		_, err := s.service.Skip(ctx, raceID, msg.VehicleID)
		return err
	}
	return fmt.Errorf("unknown action %q", msg.Action)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
