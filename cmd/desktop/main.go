// Command desktop runs a local race in a window: one keyboard player against
// autopilot bots, drawn top-down or from the chase camera.
//
// Arrows or WASD drive, space brakes. When a checkpoint question opens,
// 1-4 answers it and Tab skips it. Escape quits.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/circuit-challenge/game/autopilot"
	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/render/canvas2d"
)

const playerID = "player"

// options configures a local race
type options struct {
	Variant string
	Bots    int
	Name    string
	Color   string
	Laps    int
}

// keys reports the question keys pressed this frame
type keys func() (answer int, answered, skipped, quit bool)

func keyboardKeys() (int, bool, bool, bool) {
	answer, answered := canvas2d.AnswerPressed()
	return answer, answered, canvas2d.SkipPressed(), inpututil.IsKeyJustPressed(ebiten.KeyEscape)
}

// race is a local engine with its overlay, bots and window
type race struct {
	eng     *engine.GameEngine
	overlay *overlay.Overlay
	game    *canvas2d.Game
	vp      engine.Viewport
	last    *overlay.Result
}

func newRace(cfg *engine.RaceConfig, opts options, player engine.InputSampler, pressed keys) (*race, error) {
	sched := engine.NewFrameScheduler()
	fleet := autopilot.NewFleet()

	r := &race{}
	r.overlay = overlay.New(cfg.Rules, cfg.Questions, nil, overlay.Options{
		OnPresent: func(p overlay.Prompt) {
			if p.VehicleID != playerID {
				// Bots answer straight away, always correctly
				r.overlay.Answer(p.VehicleID, r.correct(p.QuestionID, cfg))
			}
		},
		OnResolve: func(res overlay.Result) {
			if res.VehicleID == playerID {
				r.last = &res
			}
		},
	})

	ecfg := cfg.EngineConfig()
	ecfg.Scheduler = sched
	ecfg.Input = engine.Samplers{player, fleet}
	ecfg.Gate = r.overlay
	if opts.Variant != "" {
		ecfg.Variant = engine.Variant(opts.Variant)
	}
	if opts.Laps > 0 {
		ecfg.TotalLaps = opts.Laps
	}
	r.vp = engine.Viewport{Width: engine.DefaultWorldWidth, Height: engine.DefaultWorldHeight}
	if cfg.World.Width > 0 && cfg.World.Height > 0 {
		r.vp = engine.Viewport{Width: int(cfg.World.Width), Height: int(cfg.World.Height)}
	}
	ecfg.Viewport = r.vp

	var view canvas2d.Layer
	var surface engine.Surface
	if ecfg.Variant == engine.Variant3D {
		p := canvas2d.NewScenePresenter()
		view, surface = p, p.Surface()
	} else {
		rr := canvas2d.New()
		view, surface = rr, rr.Surface()
	}

	eng, err := engine.NewEngine(surface, ecfg, cfg.Layout, engine.Callbacks{
		OnCheckpointReached: func(id, cp string) { r.overlay.CheckpointReached(id, cp) },
		OnLapCompleted:      r.overlay.LapCompleted,
		OnFrame:             r.overlay.Tick,
	})
	if err != nil {
		return nil, err
	}
	r.eng = eng
	r.overlay.Bind(eng)
	fleet.Bind(eng)

	// The first vehicle is the one the chase camera follows
	if _, err := eng.AddVehicle(playerID, opts.Name, opts.Color); err != nil {
		return nil, err
	}
	for i := 1; i <= opts.Bots; i++ {
		id := fmt.Sprintf("bot-%d", i)
		if _, err := eng.AddVehicle(id, fmt.Sprintf("Bot %d", i), ""); err != nil {
			return nil, err
		}
		fleet.Assign(id, autopilot.DefaultDriver())
	}

	r.game = canvas2d.NewGame(sched, r.vp, view, canvas2d.LayerFunc(r.drawHUD))
	r.game.OnUpdate = func() error {
		answer, answered, skipped, quit := pressed()
		if quit {
			return ebiten.Termination
		}
		if _, open := r.overlay.Active(playerID); open {
			switch {
			case answered:
				r.overlay.Answer(playerID, answer)
			case skipped:
				r.overlay.Skip(playerID)
			}
		}
		return nil
	}
	return r, eng.Start()
}

func (r *race) correct(questionID string, cfg *engine.RaceConfig) int {
	for _, q := range cfg.Questions {
		if q.ID == questionID {
			return q.CorrectAnswer
		}
	}
	return 0
}

// hud is the text block in the top-left corner
func (r *race) hud() []string {
	lines := []string{}
	for _, s := range r.eng.GetStandings() {
		line := fmt.Sprintf("%d. %s  lap %d  cp %d", s.Rank, s.DisplayName, s.Lap, s.CheckpointsPassed)
		if s.Finished {
			line += "  finished"
		}
		lines = append(lines, line)
	}
	t := r.overlay.Tally(playerID)
	lines = append(lines, fmt.Sprintf("Score %d  accuracy %d%%  streak %d", t.Score, t.Accuracy(), t.Streak))
	if r.last != nil {
		lines = append(lines, resultLine(*r.last))
	}
	return lines
}

func resultLine(res overlay.Result) string {
	switch res.Outcome {
	case overlay.OutcomeCorrect:
		return fmt.Sprintf("Correct! %+d", res.Points)
	case overlay.OutcomeWrong:
		return fmt.Sprintf("Wrong, it was option %d. %+d", res.CorrectAnswer+1, res.Points)
	case overlay.OutcomeTimeout:
		return fmt.Sprintf("Time ran out. %+d", res.Points)
	default:
		return "Question skipped"
	}
}

func (r *race) drawHUD(screen *ebiten.Image) {
	for i, line := range r.hud() {
		ebitenutil.DebugPrintAt(screen, line, 10, 10+i*16)
	}
	if p, ok := r.overlay.Active(playerID); ok {
		remaining := float64(p.Remaining(r.eng.GetTick())) / engine.FramesPerSecond
		canvas2d.Paint(screen, canvas2d.PlanPrompt(p, remaining, r.vp))
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "desktop",
		Usage: "Race the bots in a window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Race config JSON file (built-in oval when empty)"},
			&cli.StringFlag{Name: "variant", Usage: "Override the config's variant (2d or 3d)"},
			&cli.IntFlag{Name: "bots", Value: 3, Usage: "Number of bots"},
			&cli.IntFlag{Name: "laps", Usage: "Override the config's lap count"},
			&cli.StringFlag{Name: "name", Value: "You", Usage: "Your display name"},
			&cli.StringFlag{Name: "color", Value: "#3b82f6", Usage: "Your vehicle colour"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := engine.DefaultRaceConfig()
			if path := cmd.String("config"); path != "" {
				loaded, err := engine.LoadRaceConfig(path)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				cfg = loaded
			}
			r, err := newRace(cfg, options{
				Variant: cmd.String("variant"),
				Bots:    int(cmd.Int("bots")),
				Laps:    int(cmd.Int("laps")),
				Name:    cmd.String("name"),
				Color:   cmd.String("color"),
			}, canvas2d.NewKeyboard(playerID), keyboardKeys)
			if err != nil {
				return err
			}
			defer r.eng.Dispose()
			title := "Circuit Challenge"
			if cfg.Name != "" {
				title += " - " + cfg.Name
			}
			return r.game.Run(title)
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
