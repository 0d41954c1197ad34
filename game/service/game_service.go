package service

import (
	"context"
	"errors"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/game/session"
)

// ErrConfigNotFound is returned by config managers for unknown config names
var ErrConfigNotFound = errors.New("configuration not found")

// GameService defines all race operations used by the transports
type GameService interface {
	// Race Management
	CreateRace(ctx context.Context, configName string) (*RaceInfo, error)
	GetRace(ctx context.Context, raceID string) (*RaceInfo, error)
	ListRaces(ctx context.Context) ([]*RaceInfo, error)
	DeleteRace(ctx context.Context, raceID string) error
	StartRace(ctx context.Context, raceID string) (*RaceInfo, error)
	StopRace(ctx context.Context, raceID string) (*RaceInfo, error)

	// Vehicles
	Join(ctx context.Context, raceID string, req session.JoinRequest) (*session.VehicleStatus, error)
	Leave(ctx context.Context, raceID, vehicleID string) error
	Drive(ctx context.Context, raceID, vehicleID string, in engine.ControlInput) (*session.VehicleStatus, error)
	GetVehicle(ctx context.Context, raceID, vehicleID string) (*session.VehicleStatus, error)

	// Questions
	Answer(ctx context.Context, raceID, vehicleID string, index int) (*overlay.Result, error)
	Skip(ctx context.Context, raceID, vehicleID string) (*overlay.Result, error)

	// Race State
	GetStandings(ctx context.Context, raceID string) ([]engine.Standing, error)
	GetCheckpoints(ctx context.Context, raceID string) ([]engine.Checkpoint, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.RaceConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.RaceConfig) error
}

// SessionManager defines race storage operations
type SessionManager interface {
	Create(id, configName string, config *engine.RaceConfig) (*session.Race, error)
	Get(id string) (*session.Race, error)
	List() []*session.Race
	Delete(id string) error
	Save(ctx context.Context, id string) error
}

// ConfigManager handles race configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.RaceConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.RaceConfig
	SaveConfig(name string, config *engine.RaceConfig) error
}
