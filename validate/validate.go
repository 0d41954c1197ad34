// Command validate checks the race configuration JSON files in a configs
// directory (../configs by default). It checks:
//   - JSON structure and the rules enforced by engine.ValidateRaceConfig
//   - That the track compiles: authored layouts or the variant's oval
//   - That every checkpoint lies close enough to the track to be reached
//   - That the question bank is present (a warning when it is empty)
package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration JSON file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseRaceConfig(data)
	if err != nil {
		result.fail("Invalid config: %v", err)
		return result
	}

	track, err := compile(config)
	if err != nil {
		result.fail("Track does not compile: %v", err)
		return result
	}

	reach := validateCheckpoints(track)
	if !reach.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, reach.Errors...)

	if result.Valid {
		result.info("Name: %s", config.Name)
		result.info("Variant: %s", config.Variant)
		result.info("Track: %d path points, %.0f units long", len(track.Path), trackLength(track.Path))
		result.info("Laps: %d", config.Rules.Laps)
		if len(config.Questions) == 0 {
			result.Errors = append(result.Errors, "! No questions: checkpoints will not ask anything")
		} else {
			result.info("Questions: %d", len(config.Questions))
		}
	}
	return result
}

// compile builds the track the engine would race on
func compile(config *engine.RaceConfig) (*engine.TrackGeometry, error) {
	ecfg := config.EngineConfig()
	ecfg.Scheduler = engine.NewManualScheduler()
	eng, err := engine.NewEngine(engine.NullSurface, ecfg, config.Layout, engine.Callbacks{})
	if err != nil {
		return nil, err
	}
	defer eng.Dispose()
	return eng.GetTrack(), nil
}

// validateCheckpoints ensures a vehicle following the track passes within
// trigger range of every checkpoint
func validateCheckpoints(track *engine.TrackGeometry) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}

	if len(track.Checkpoints) == 0 {
		result.fail("Track has no checkpoints: laps can never complete")
		return result
	}

	unreachable := 0
	for _, cp := range track.Checkpoints {
		_, dist := engine.NearestPathPoint(track.Path, cp.Position)
		if dist > cp.TriggerRadius+track.Width/2 {
			unreachable++
			result.Errors = append(result.Errors,
				fmt.Sprintf("Unreachable: checkpoint %s is %.0f units from the track (trigger radius %.0f)", cp.ID, dist, cp.TriggerRadius))
		}
	}
	if unreachable > 0 {
		result.Valid = false
		result.Errors = append([]string{
			fmt.Sprintf("Reachability failure: %d/%d checkpoints off the track", unreachable, len(track.Checkpoints)),
		}, result.Errors...)
		return result
	}
	result.info("Checkpoints: all %d reachable from the track", len(track.Checkpoints))
	return result
}

func trackLength(path []engine.Vec3) float64 {
	total := 0.0
	for i := range path {
		a, b := path[i], path[(i+1)%len(path)]
		total += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return total
}

// main scans the configs directory for *.json files and validates each one,
// printing a concise report and exiting with non-zero status if any are
// invalid
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No config files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
