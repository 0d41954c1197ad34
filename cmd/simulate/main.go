// Command simulate runs a headless race between autopilot bots and prints
// the final standings. Bots answer checkpoint questions after a short think
// time, correctly with the configured accuracy, so a run exercises the
// whole question loop without a window or a server.
//
//	simulate --config configs/chase.json --bots 4 --accuracy 0.75
package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/circuit-challenge/game/autopilot"
	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/logging"
)

// options controls one simulated race
type options struct {
	Bots        int
	Variant     string
	Laps        int
	MaxFrames   int
	Accuracy    float64
	ThinkFrames uint64
	Seed        uint64
}

// outcome is what a simulated race produced
type outcome struct {
	Frames    uint64
	Finished  bool
	Standings []engine.Standing
	Tallies   map[string]overlay.Tally
	TopSpeed  map[string]float64
}

type pendingAnswer struct {
	at     uint64
	prompt overlay.Prompt
}

func simulate(cfg *engine.RaceConfig, opts options, log zerolog.Logger) (*outcome, error) {
	if opts.Bots <= 0 {
		opts.Bots = 1
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed+1))
	questions := make(map[string]engine.Question, len(cfg.Questions))
	for _, q := range cfg.Questions {
		questions[q.ID] = q
	}

	pending := make(map[string]pendingAnswer)
	ov := overlay.New(cfg.Rules, cfg.Questions, nil, overlay.Options{
		OnPresent: func(p overlay.Prompt) {
			pending[p.VehicleID] = pendingAnswer{at: p.PresentedAt + opts.ThinkFrames, prompt: p}
		},
		OnResolve: func(r overlay.Result) {
			log.Debug().
				Str("vehicle", r.VehicleID).
				Str("question", r.QuestionID).
				Str("outcome", string(r.Outcome)).
				Int("points", r.Points).
				Msg("question resolved")
		},
	})

	answerDue := func(tick uint64) {
		for _, id := range slices.Sorted(maps.Keys(pending)) {
			p := pending[id]
			if tick < p.at {
				continue
			}
			delete(pending, id)
			q := questions[p.prompt.QuestionID]
			choice := q.CorrectAnswer
			if rng.Float64() >= opts.Accuracy {
				choice = (q.CorrectAnswer + 1) % len(q.Options)
			}
			// The prompt may have timed out already
			ov.Answer(id, choice)
		}
	}

	fleet := autopilot.NewFleet()
	sched := engine.NewManualScheduler()
	ecfg := cfg.EngineConfig()
	ecfg.Scheduler = sched
	ecfg.Input = fleet
	ecfg.Gate = ov
	if opts.Variant != "" {
		ecfg.Variant = engine.Variant(opts.Variant)
	}
	if opts.Laps > 0 {
		ecfg.TotalLaps = opts.Laps
	}

	eng, err := engine.NewEngine(engine.NullSurface, ecfg, cfg.Layout, engine.Callbacks{
		OnCheckpointReached: func(id, cp string) { ov.CheckpointReached(id, cp) },
		OnLapCompleted: func(id string, lap int) {
			ov.LapCompleted(id, lap)
			log.Info().Str("vehicle", id).Int("lap", lap).Msg("lap completed")
		},
		OnFrame: func(tick uint64) {
			ov.Tick(tick)
			answerDue(tick)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	defer eng.Dispose()
	ov.Bind(eng)
	fleet.Bind(eng)

	for i := 1; i <= opts.Bots; i++ {
		id := fmt.Sprintf("bot-%d", i)
		if _, err := eng.AddVehicle(id, fmt.Sprintf("Bot %d", i), ""); err != nil {
			return nil, fmt.Errorf("add %s: %w", id, err)
		}
		fleet.Assign(id, autopilot.DefaultDriver())
	}

	out := &outcome{Tallies: make(map[string]overlay.Tally), TopSpeed: make(map[string]float64)}
	if err := eng.Start(); err != nil {
		return nil, err
	}
	for frame := 0; frame < opts.MaxFrames; frame++ {
		sched.Step()
		done := true
		for _, v := range eng.GetVehicles() {
			if v.Velocity > out.TopSpeed[v.ID] {
				out.TopSpeed[v.ID] = v.Velocity
			}
			done = done && v.Finished
		}
		if done {
			out.Finished = true
			break
		}
	}

	out.Frames = eng.GetTick()
	out.Standings = eng.GetStandings()
	for _, v := range eng.GetVehicles() {
		out.Tallies[v.ID] = ov.Tally(v.ID)
	}
	return out, nil
}

func printOutcome(w io.Writer, o *outcome) {
	status := "time limit reached"
	if o.Finished {
		status = "all vehicles finished"
	}
	fmt.Fprintf(w, "Race over after %d frames (%.1fs), %s\n\n", o.Frames, float64(o.Frames)/engine.FramesPerSecond, status)
	fmt.Fprintf(w, "%-4s %-10s %-4s %-12s %-8s %-9s %s\n", "POS", "VEHICLE", "LAP", "CHECKPOINTS", "SCORE", "ACCURACY", "TOP SPEED")
	for _, s := range o.Standings {
		t := o.Tallies[s.VehicleID]
		flag := ""
		if s.Finished {
			flag = " finished"
		}
		fmt.Fprintf(w, "%-4d %-10s %-4d %-12d %-8d %-9s %.2f%s\n",
			s.Rank, s.DisplayName, s.Lap, s.CheckpointsPassed, t.Score,
			fmt.Sprintf("%d%%", t.Accuracy()), o.TopSpeed[s.VehicleID], flag)
	}
}

func loadConfig(path string) (*engine.RaceConfig, error) {
	if path == "" {
		return engine.DefaultRaceConfig(), nil
	}
	cfg, err := engine.LoadRaceConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

func newApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Run a headless race between autopilot bots",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Race config JSON file (built-in oval when empty)"},
			&cli.IntFlag{Name: "bots", Value: 4, Usage: "Number of bots"},
			&cli.StringFlag{Name: "variant", Usage: "Override the config's variant (2d or 3d)"},
			&cli.IntFlag{Name: "laps", Usage: "Override the config's lap count"},
			&cli.IntFlag{Name: "frames", Value: engine.FramesPerSecond * 600, Usage: "Frame limit"},
			&cli.FloatFlag{Name: "accuracy", Value: 0.75, Usage: "Chance a bot answers correctly"},
			&cli.IntFlag{Name: "think", Value: engine.FramesPerSecond * 2, Usage: "Frames a bot takes to answer"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Random seed for answers"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "trace, debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logging.New(logging.Options{Level: cmd.String("log-level"), Console: true})
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			o, err := simulate(cfg, options{
				Bots:        int(cmd.Int("bots")),
				Variant:     cmd.String("variant"),
				Laps:        int(cmd.Int("laps")),
				MaxFrames:   int(cmd.Int("frames")),
				Accuracy:    cmd.Float("accuracy"),
				ThinkFrames: uint64(cmd.Int("think")),
				Seed:        uint64(cmd.Int("seed")),
			}, log)
			if err != nil {
				return err
			}
			printOutcome(stdout, o)
			return nil
		},
	}
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
