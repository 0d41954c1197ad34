package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/circuit-challenge/game/engine"
)

const questions = `[
	{"id": "q1", "question_text": "2 + 2?", "options": ["3", "4", "5", "6"], "correct_answer": 1}
]`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "test_config_*.json")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpfile.WriteString(body); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpfile.Close()
	return tmpfile.Name()
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"name": "Test Config",
		"description": "Test configuration",
		"variant": "2d",
		"density": "fine",
		"rules": {"laps": 3, "question_frequency": "every_checkpoint", "time_per_question": 20},
		"questions": `+questions+`
	}`)

	result := validateConfig(path)
	if !result.Valid {
		t.Errorf("Expected valid config, but got errors: %v", result.Errors)
	}
	if result.File != filepath.Base(path) {
		t.Errorf("Expected file name %s, got %s", filepath.Base(path), result.File)
	}
	for _, want := range []string{"Name: Test Config", "Variant: 2d", "Laps: 3", "Questions: 1", "all 4 reachable"} {
		if !hasError(result, want) {
			t.Errorf("Expected info line %q, got %v", want, result.Errors)
		}
	}
}

func TestValidateConfig_ChaseVariant(t *testing.T) {
	path := writeConfig(t, `{
		"name": "Chase",
		"description": "Chase camera circuit",
		"variant": "3d",
		"rules": {"laps": 2},
		"questions": `+questions+`,
		"bots": 3
	}`)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Expected valid config, but got errors: %v", result.Errors)
	}
	if !hasError(result, "all 3 reachable") {
		t.Errorf("Expected the chase circuit's three checkpoints, got %v", result.Errors)
	}
}

func TestValidateConfig_InvalidJSON(t *testing.T) {
	result := validateConfig(writeConfig(t, `{"name": "test", invalid json}`))
	if result.Valid {
		t.Error("Expected invalid config due to bad JSON")
	}
	if !hasError(result, "Invalid config") {
		t.Errorf("Expected 'Invalid config' error, got %v", result.Errors)
	}
}

func TestValidateConfig_MissingFile(t *testing.T) {
	result := validateConfig("/non/existent/file.json")
	if result.Valid {
		t.Error("Expected invalid result for missing file")
	}
	if !hasError(result, "Failed to read file") {
		t.Error("Expected 'Failed to read file' error")
	}
}

func TestValidateConfig_RuleViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"missing name",
			`{"description": "d", "variant": "2d", "rules": {"laps": 1}}`,
			"name is required",
		},
		{
			"too many laps",
			`{"name": "n", "description": "d", "variant": "2d", "rules": {"laps": 21}}`,
			"rules.laps must be between",
		},
		{
			"unknown variant",
			`{"name": "n", "description": "d", "variant": "4d", "rules": {"laps": 1}}`,
			"variant must be",
		},
		{
			"three options",
			`{"name": "n", "description": "d", "variant": "2d", "rules": {"laps": 1},
			  "questions": [{"id": "q", "question_text": "?", "options": ["a", "b", "c"], "correct_answer": 0}]}`,
			"must have 4 options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateConfig(writeConfig(t, tt.body))
			if result.Valid {
				t.Fatal("Expected invalid config")
			}
			if !hasError(result, tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateConfig_NoQuestionsWarns(t *testing.T) {
	path := writeConfig(t, `{"name": "n", "description": "d", "variant": "2d", "rules": {"laps": 1}}`)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Expected an empty question bank to be allowed, got %v", result.Errors)
	}
	if !hasError(result, "No questions") {
		t.Errorf("Expected a warning about the empty question bank, got %v", result.Errors)
	}
}

func TestValidateConfig_UnreachableCheckpoint(t *testing.T) {
	path := writeConfig(t, `{
		"name": "n", "description": "d", "variant": "2d", "rules": {"laps": 1},
		"layout": {
			"grid_size": {"width": 20, "height": 15},
			"pieces": [],
			"checkpoints": [
				{"id": "east", "position": {"x": 650, "y": 300}, "trigger_radius": 40},
				{"id": "north", "x": 400, "y": 10, "trigger_radius": 40}
			]
		}
	}`)

	result := validateConfig(path)
	if result.Valid {
		t.Fatal("Expected an off-track checkpoint to be rejected")
	}
	if !hasError(result, "1/2 checkpoints off the track") {
		t.Errorf("Expected a reachability summary, got %v", result.Errors)
	}
	if !hasError(result, "checkpoint north") || hasError(result, "checkpoint east") {
		t.Errorf("Expected only the north checkpoint to be reported, got %v", result.Errors)
	}
}

func TestValidateCheckpoints(t *testing.T) {
	track := &engine.TrackGeometry{
		Path:  []engine.Vec3{{X: 0}, {X: 100}, {X: 100, Y: 100}},
		Width: 20,
		Checkpoints: []engine.Checkpoint{
			{ID: "on", Position: engine.Vec3{X: 100, Y: 5}, TriggerRadius: 10},
			{ID: "edge", Position: engine.Vec3{X: 0, Y: 20}, TriggerRadius: 10},
		},
	}

	result := validateCheckpoints(track)
	if !result.Valid {
		t.Errorf("Expected checkpoints within trigger range plus half the width to pass, got %v", result.Errors)
	}

	track.Checkpoints = nil
	result = validateCheckpoints(track)
	if result.Valid || !hasError(result, "no checkpoints") {
		t.Errorf("Expected a track without checkpoints to fail, got %v", result.Errors)
	}
}

func TestTrackLength(t *testing.T) {
	square := []engine.Vec3{{X: 0}, {X: 10}, {X: 10, Y: 10}, {Y: 10}}
	if got := trackLength(square); got != 40 {
		t.Errorf("Expected a closed square of side 10 to measure 40, got %v", got)
	}
}

func TestShippedConfigs(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "configs", "*.json"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(files) == 0 {
		t.Skip("no configs directory")
	}
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			if result := validateConfig(file); !result.Valid {
				t.Errorf("Expected shipped config to be valid, got %v", result.Errors)
			}
		})
	}
}

func hasError(r ValidationResult, substr string) bool {
	for _, e := range r.Errors {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
