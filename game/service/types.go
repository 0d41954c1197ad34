package service

import (
	"time"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/session"
)

// RaceInfo provides information about a race
type RaceInfo struct {
	ID             string           `json:"id"`
	ConfigName     string           `json:"config_name"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Rules          engine.RaceRules `json:"rules"`
	QuestionCount  int              `json:"question_count"`

	session.RaceState
}

// ConfigInfo provides information about a race configuration
type ConfigInfo struct {
	Filename    string         `json:"filename"`
	ConfigID    string         `json:"config_id"` // The identifier to use for race creation
	Name        string         `json:"name"`      // Display name
	Description string         `json:"description"`
	Variant     engine.Variant `json:"variant"`
	Laps        int            `json:"laps"`
	Questions   int            `json:"questions"`
}

// NewConfigInfo summarises a race config stored under configID
func NewConfigInfo(configID string, cfg *engine.RaceConfig) *ConfigInfo {
	return &ConfigInfo{
		Filename:    configID + ".json",
		ConfigID:    configID,
		Name:        cfg.Name,
		Description: cfg.Description,
		Variant:     cfg.Variant,
		Laps:        cfg.Rules.Laps,
		Questions:   len(cfg.Questions),
	}
}
