package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Question frequency rules
const (
	FrequencyEveryCheckpoint   = "every_checkpoint"
	FrequencyEveryLap          = "every_lap"
	FrequencyOncePerCheckpoint = "once_per_checkpoint"

	DefaultTimePerQuestion = 30
	QuestionOptionCount    = 4
)

// Question is one multiple-choice question shown at a checkpoint
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Topic         string   `json:"topic,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	TimeLimit     int      `json:"time_limit,omitempty"` // seconds
}

// RewardConfig is applied on a correct answer
type RewardConfig struct {
	SpeedBoostMS int `json:"speed_boost_ms"`
	Points       int `json:"points"`
}

// PenaltyConfig is applied on a wrong answer or a timeout
type PenaltyConfig struct {
	TimePenaltyMS   int     `json:"time_penalty_ms"`
	SpeedReduction  float64 `json:"speed_reduction,omitempty"`
	PointsDeduction int     `json:"points_deduction"`
}

// RaceRules are the per-race session rules
type RaceRules struct {
	Laps              int           `json:"laps"`
	QuestionFrequency string        `json:"question_frequency"`
	TimePerQuestion   int           `json:"time_per_question"` // seconds
	CorrectReward     RewardConfig  `json:"correct_reward"`
	IncorrectPenalty  PenaltyConfig `json:"incorrect_penalty"`
	MaxParticipants   int           `json:"max_participants"`
}

// RaceConfig represents a race configuration from JSON
type RaceConfig struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Variant     Variant      `json:"variant"`
	World       Size         `json:"world"`
	Density     OvalDensity  `json:"density,omitempty"`
	Layout      *TrackLayout `json:"layout,omitempty"`
	Rules       RaceRules    `json:"rules"`
	Questions   []Question   `json:"questions"`
	Bots        int          `json:"bots,omitempty"`
}

// ValidateRaceConfig validates a race configuration for correctness
func ValidateRaceConfig(config *RaceConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	switch config.Variant {
	case Variant2D, Variant3D:
	default:
		return fmt.Errorf("config validation: variant must be %q or %q, got %q", Variant2D, Variant3D, config.Variant)
	}
	if config.World.Width < 0 || config.World.Height < 0 {
		return fmt.Errorf("config validation: world size must not be negative")
	}
	switch config.Density {
	case "", OvalCoarse, OvalFine:
	default:
		return fmt.Errorf("config validation: density must be %q or %q, got %q", OvalCoarse, OvalFine, config.Density)
	}

	rules := config.Rules
	if rules.Laps < MinTotalLaps || rules.Laps > MaxTotalLaps {
		return fmt.Errorf("config validation: rules.laps must be between %d and %d, got %d", MinTotalLaps, MaxTotalLaps, rules.Laps)
	}
	switch rules.QuestionFrequency {
	case "", FrequencyEveryCheckpoint, FrequencyEveryLap, FrequencyOncePerCheckpoint:
	default:
		return fmt.Errorf("config validation: unknown question_frequency %q", rules.QuestionFrequency)
	}
	if rules.TimePerQuestion < 0 {
		return fmt.Errorf("config validation: rules.time_per_question must not be negative")
	}
	if rules.IncorrectPenalty.SpeedReduction < 0 || rules.IncorrectPenalty.SpeedReduction > 1 {
		return fmt.Errorf("config validation: incorrect_penalty.speed_reduction must be between 0 and 1, got %v",
			rules.IncorrectPenalty.SpeedReduction)
	}
	if rules.CorrectReward.SpeedBoostMS < 0 || rules.IncorrectPenalty.TimePenaltyMS < 0 {
		return fmt.Errorf("config validation: reward and penalty durations must not be negative")
	}
	if rules.MaxParticipants < 0 || rules.MaxParticipants > MaxVehicles {
		return fmt.Errorf("config validation: rules.max_participants must be between 0 and %d, got %d", MaxVehicles, rules.MaxParticipants)
	}
	if config.Bots < 0 || config.Bots > MaxVehicles {
		return fmt.Errorf("config validation: bots must be between 0 and %d, got %d", MaxVehicles, config.Bots)
	}

	seen := make(map[string]bool, len(config.Questions))
	for i, q := range config.Questions {
		if q.ID == "" {
			return fmt.Errorf("config validation: question %d has no id", i+1)
		}
		if seen[q.ID] {
			return fmt.Errorf("config validation: duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("config validation: question %q has no text", q.ID)
		}
		if len(q.Options) != QuestionOptionCount {
			return fmt.Errorf("config validation: question %q must have %d options, got %d", q.ID, QuestionOptionCount, len(q.Options))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return fmt.Errorf("config validation: question %q correct_answer must be between 0 and %d, got %d",
				q.ID, len(q.Options)-1, q.CorrectAnswer)
		}
		if q.TimeLimit < 0 {
			return fmt.Errorf("config validation: question %q time_limit must not be negative", q.ID)
		}
	}

	if config.Layout != nil {
		ids := make(map[string]bool, len(config.Layout.Checkpoints))
		for _, cp := range config.Layout.Checkpoints {
			if cp.ID == "" {
				continue
			}
			if ids[cp.ID] {
				return fmt.Errorf("config validation: duplicate checkpoint id %q", cp.ID)
			}
			ids[cp.ID] = true
			if cp.TriggerRadius < 0 {
				return fmt.Errorf("config validation: checkpoint %q trigger_radius must not be negative", cp.ID)
			}
		}
	}

	return nil
}

// LoadRaceConfig loads a race configuration from a JSON file
func LoadRaceConfig(filename string) (*RaceConfig, error) {
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return ParseRaceConfig(data)
}

// ParseRaceConfig decodes and validates a race configuration
func ParseRaceConfig(data []byte) (*RaceConfig, error) {
	var config RaceConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	if err := ValidateRaceConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultRaceConfig is the built-in race: the fine oval, three laps and a
// small arithmetic question bank
func DefaultRaceConfig() *RaceConfig {
	return &RaceConfig{
		Name:        "default",
		Description: "Oval circuit with four checkpoints and quick arithmetic questions",
		Variant:     Variant2D,
		World:       Size{Width: DefaultWorldWidth, Height: DefaultWorldHeight},
		Density:     OvalFine,
		Rules: RaceRules{
			Laps:              DefaultTotalLaps,
			QuestionFrequency: FrequencyOncePerCheckpoint,
			TimePerQuestion:   DefaultTimePerQuestion,
			CorrectReward:     RewardConfig{SpeedBoostMS: 2000, Points: 100},
			IncorrectPenalty:  PenaltyConfig{TimePenaltyMS: 1500, SpeedReduction: 0.5, PointsDeduction: 25},
		},
		Questions: []Question{
			{ID: "q1", Text: "What is 7 x 8?", Options: []string{"54", "56", "63", "48"}, CorrectAnswer: 1, Topic: "arithmetic"},
			{ID: "q2", Text: "What is 144 / 12?", Options: []string{"11", "14", "12", "10"}, CorrectAnswer: 2, Topic: "arithmetic"},
			{ID: "q3", Text: "What is 15 + 27?", Options: []string{"42", "41", "43", "32"}, CorrectAnswer: 0, Topic: "arithmetic"},
			{ID: "q4", Text: "What is 9 squared?", Options: []string{"18", "72", "99", "81"}, CorrectAnswer: 3, Topic: "arithmetic"},
		},
	}
}

// EngineConfig converts a race config into an engine config. The caller
// supplies the scheduler and input plumbing.
func (c *RaceConfig) EngineConfig() Config {
	return Config{
		Variant:   c.Variant,
		World:     c.World,
		TotalLaps: c.Rules.Laps,
		Density:   c.Density,
	}
}
