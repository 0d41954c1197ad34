package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/game/session"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	log      zerolog.Logger
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, log zerolog.Logger) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		log:      log,
	}
}

// CreateRace creates a stopped race from a named config, or the default one
func (s *gameServiceImpl) CreateRace(ctx context.Context, configName string) (*RaceInfo, error) {
	var config *engine.RaceConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s': %w. Available configs: %v", configName, err, configIDs)
				}
				return nil, fmt.Errorf("config '%s': %w. Use /api/configs to list available configurations", configName, err)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configName = s.getConfigID(config.Name)
	}

	race, err := s.sessions.Create("", configName, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create race: %w", err)
	}
	return s.info(ctx, race)
}

// getConfigID maps a display name back to the config id used to load it
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *gameServiceImpl) race(raceID string) (*session.Race, error) {
	race, err := s.sessions.Get(raceID)
	if err != nil {
		return nil, fmt.Errorf("race %s: %w", raceID, err)
	}
	return race, nil
}

func (s *gameServiceImpl) info(ctx context.Context, race *session.Race) (*RaceInfo, error) {
	state, err := race.State(ctx)
	if err != nil {
		return nil, err
	}
	return &RaceInfo{
		ID:             race.ID,
		ConfigName:     race.ConfigName,
		Name:           race.Config.Name,
		Description:    race.Config.Description,
		CreatedAt:      race.CreatedAt,
		LastAccessedAt: race.LastAccessedAt(),
		Rules:          race.Config.Rules,
		QuestionCount:  len(race.Config.Questions),
		RaceState:      state,
	}, nil
}

// save persists a race after a structural change. Failures are logged only.
func (s *gameServiceImpl) save(ctx context.Context, raceID string) {
	if err := s.sessions.Save(ctx, raceID); err != nil {
		s.log.Warn().Err(err).Str("race", raceID).Msg("failed to persist race")
	}
}

// GetRace retrieves race information including the track
func (s *gameServiceImpl) GetRace(ctx context.Context, raceID string) (*RaceInfo, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, race)
}

// ListRaces returns all active races without their track geometry
func (s *gameServiceImpl) ListRaces(ctx context.Context) ([]*RaceInfo, error) {
	races := s.sessions.List()
	result := make([]*RaceInfo, 0, len(races))
	for _, race := range races {
		info, err := s.info(ctx, race)
		if err != nil {
			if errors.Is(err, session.ErrRaceClosed) {
				continue
			}
			return nil, err
		}
		info.Track = nil
		result = append(result, info)
	}
	return result, nil
}

// DeleteRace closes and removes a race
func (s *gameServiceImpl) DeleteRace(ctx context.Context, raceID string) error {
	if err := s.sessions.Delete(raceID); err != nil {
		return fmt.Errorf("race %s: %w", raceID, err)
	}
	return nil
}

// StartRace runs a race's frame loop
func (s *gameServiceImpl) StartRace(ctx context.Context, raceID string) (*RaceInfo, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	if err := race.Start(ctx); err != nil {
		return nil, err
	}
	return s.info(ctx, race)
}

// StopRace pauses a race and persists it
func (s *gameServiceImpl) StopRace(ctx context.Context, raceID string) (*RaceInfo, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	if err := race.Stop(ctx); err != nil {
		return nil, err
	}
	s.save(ctx, raceID)
	return s.info(ctx, race)
}

// Join adds a vehicle to a race
func (s *gameServiceImpl) Join(ctx context.Context, raceID string, req session.JoinRequest) (*session.VehicleStatus, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	v, err := race.Join(ctx, req)
	if err != nil {
		return nil, err
	}
	s.save(ctx, raceID)
	return s.vehicle(ctx, race, v.ID)
}

// Leave removes a vehicle from a race
func (s *gameServiceImpl) Leave(ctx context.Context, raceID, vehicleID string) error {
	race, err := s.race(raceID)
	if err != nil {
		return err
	}
	if err := race.Leave(ctx, vehicleID); err != nil {
		return err
	}
	s.save(ctx, raceID)
	return nil
}

// Drive records a vehicle's control input
func (s *gameServiceImpl) Drive(ctx context.Context, raceID, vehicleID string, in engine.ControlInput) (*session.VehicleStatus, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	if _, err := race.Drive(ctx, vehicleID, in); err != nil {
		return nil, err
	}
	return s.vehicle(ctx, race, vehicleID)
}

// GetVehicle returns a vehicle with its question state
func (s *gameServiceImpl) GetVehicle(ctx context.Context, raceID, vehicleID string) (*session.VehicleStatus, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	return s.vehicle(ctx, race, vehicleID)
}

func (s *gameServiceImpl) vehicle(ctx context.Context, race *session.Race, vehicleID string) (*session.VehicleStatus, error) {
	st, err := race.Vehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Answer resolves a vehicle's open question
func (s *gameServiceImpl) Answer(ctx context.Context, raceID, vehicleID string, index int) (*overlay.Result, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	res, err := race.Answer(ctx, vehicleID, index)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Skip closes a vehicle's open question
func (s *gameServiceImpl) Skip(ctx context.Context, raceID, vehicleID string) (*overlay.Result, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	res, err := race.Skip(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetStandings returns the race leaderboard
func (s *gameServiceImpl) GetStandings(ctx context.Context, raceID string) ([]engine.Standing, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	state, err := race.State(ctx)
	if err != nil {
		return nil, err
	}
	return state.Standings, nil
}

// GetCheckpoints returns the race's checkpoints in order
func (s *gameServiceImpl) GetCheckpoints(ctx context.Context, raceID string) ([]engine.Checkpoint, error) {
	race, err := s.race(raceID)
	if err != nil {
		return nil, err
	}
	state, err := race.State(ctx)
	if err != nil {
		return nil, err
	}
	return state.Checkpoints, nil
}

// ListConfigs returns available race configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific race configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.RaceConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a race configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.RaceConfig) error {
	return s.configs.SaveConfig(configName, config)
}
