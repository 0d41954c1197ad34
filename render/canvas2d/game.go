package canvas2d

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// Layer is anything painted on top of the race view
type Layer interface {
	Draw(screen *ebiten.Image)
}

// LayerFunc adapts a function to Layer
type LayerFunc func(screen *ebiten.Image)

// Draw calls f(screen)
func (f LayerFunc) Draw(screen *ebiten.Image) { f(screen) }

// Game drives an engine from ebiten's update loop and implements
// ebiten.Game. Each Update runs the hook, then exactly one engine frame.
type Game struct {
	Scheduler *engine.FrameScheduler
	Width     int
	Height    int
	Layers    []Layer
	// OnUpdate runs before the engine frame. Returning an error ends the
	// game; ebiten.Termination ends it cleanly.
	OnUpdate func() error
}

// NewGame creates a game over a frame scheduler
func NewGame(sched *engine.FrameScheduler, vp engine.Viewport, layers ...Layer) *Game {
	return &Game{Scheduler: sched, Width: vp.Width, Height: vp.Height, Layers: layers}
}

// Update implements ebiten.Game
func (g *Game) Update() error {
	if g.OnUpdate != nil {
		if err := g.OnUpdate(); err != nil {
			return err
		}
	}
	if g.Scheduler != nil {
		g.Scheduler.RunFrame()
	}
	return nil
}

// Draw implements ebiten.Game
func (g *Game) Draw(screen *ebiten.Image) {
	for _, l := range g.Layers {
		if l != nil {
			l.Draw(screen)
		}
	}
}

// Layout implements ebiten.Game
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.Width, g.Height
}

// Run opens a window and blocks until the game ends
func (g *Game) Run(title string) error {
	ebiten.SetWindowSize(g.Width, g.Height)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(g)
}
