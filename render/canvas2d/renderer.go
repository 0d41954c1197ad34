package canvas2d

import (
	"errors"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/render/scene3d"
)

var ErrClosed = errors.New("canvas closed")

// canvas keeps the most recent display list for the next Draw
type canvas struct {
	mu     sync.Mutex
	list   DisplayList
	tick   uint64
	closed bool
}

func (c *canvas) store(list DisplayList, tick uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.list = list
	c.tick = tick
	return nil
}

// Latest returns the last planned frame and its tick
func (c *canvas) Latest() (DisplayList, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list, c.tick
}

// Draw paints the last planned frame
func (c *canvas) Draw(screen *ebiten.Image) {
	list, _ := c.Latest()
	Paint(screen, list)
}

// Renderer is the top-down engine renderer. The engine plans frames into
// it on its scheduler goroutine and ebiten paints them from Draw.
type Renderer struct {
	canvas
	vp engine.Viewport
}

// New creates a 2D renderer
func New() *Renderer {
	return &Renderer{}
}

// Surface returns a mount surface that attaches r
func (r *Renderer) Surface() engine.Surface {
	return engine.SurfaceFunc(func(vp engine.Viewport) (engine.Renderer, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return nil, ErrClosed
		}
		r.vp = vp
		return r, nil
	})
}

// DrawFrame implements engine.Renderer
func (r *Renderer) DrawFrame(world engine.WorldState) error {
	r.mu.Lock()
	vp := r.vp
	r.mu.Unlock()
	return r.store(Plan(world, vp), world.Tick)
}

// Resize implements engine.Renderer
func (r *Renderer) Resize(vp engine.Viewport) {
	r.mu.Lock()
	r.vp = vp
	r.mu.Unlock()
}

// Close implements engine.Renderer
func (r *Renderer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.list = nil
	r.mu.Unlock()
	return nil
}

// ScenePresenter paints projected 3D frames and implements
// scene3d.Presenter
type ScenePresenter struct {
	canvas
}

// NewScenePresenter creates an empty presenter
func NewScenePresenter() *ScenePresenter {
	return &ScenePresenter{}
}

// Present implements scene3d.Presenter
func (p *ScenePresenter) Present(f scene3d.Frame) error {
	return p.store(PlanScene(f), f.Tick)
}

// Surface returns a mount surface for the chase-camera renderer
func (p *ScenePresenter) Surface() engine.Surface {
	return scene3d.NewSurface(p)
}
