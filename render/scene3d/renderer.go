package scene3d

import (
	"errors"
	"image/color"
	"math"
	"sort"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/render"
)

var ErrClosed = errors.New("scene renderer closed")

// Segment is a projected piece of road edge
type Segment struct {
	A, B Projected
}

// Sprite is a projected marker or vehicle. Radius is in pixels; Rotation
// is the on-screen heading for vehicles and the spin for markers.
type Sprite struct {
	ID        string
	Kind      NodeKind
	At        Projected
	Radius    float64
	Rotation  float64
	Color     color.RGBA
	Label     string
	Telemetry string
}

// Frame is one projected view of the scene, sprites ordered far to near
type Frame struct {
	Tick     uint64
	Viewport engine.Viewport
	Road     []Segment
	Sprites  []Sprite
}

// Presenter puts a projected frame on screen
type Presenter interface {
	Present(f Frame) error
}

// PresenterFunc adapts a function to Presenter
type PresenterFunc func(f Frame) error

// Present calls f(frame)
func (f PresenterFunc) Present(frame Frame) error { return f(frame) }

// Renderer keeps the scene graph and chase camera of one engine
type Renderer struct {
	presenter Presenter
	vp        engine.Viewport
	camera    *Camera
	scene     *Scene
	track     *engine.TrackGeometry
	closed    bool
}

// NewSurface returns a surface attaching scene renderers that present to p
func NewSurface(p Presenter) engine.Surface {
	return engine.SurfaceFunc(func(vp engine.Viewport) (engine.Renderer, error) {
		if p == nil {
			return nil, engine.ErrNoSurface
		}
		return New(p, vp), nil
	})
}

// New creates a scene renderer
func New(p Presenter, vp engine.Viewport) *Renderer {
	return &Renderer{presenter: p, vp: vp, camera: NewCamera(vp)}
}

// Camera returns the chase camera
func (r *Renderer) Camera() *Camera {
	return r.camera
}

// Scene returns the current scene graph, nil before the first frame
func (r *Renderer) Scene() *Scene {
	return r.scene
}

// DrawFrame implements engine.Renderer
func (r *Renderer) DrawFrame(world engine.WorldState) error {
	if r.closed {
		return ErrClosed
	}
	if r.scene == nil || world.Track != r.track {
		r.scene = NewScene(world.Track)
		r.track = world.Track
	}
	r.scene.Sync(world.Vehicles)
	if lead, ok := world.Lead(); ok {
		r.camera.Follow(lead)
		r.scene.Animate()
	}
	return r.presenter.Present(r.project(world))
}

func (r *Renderer) project(world engine.WorldState) Frame {
	f := Frame{Tick: world.Tick, Viewport: r.vp}
	f.Road = r.road()

	for _, m := range r.scene.Markers {
		at, ok := r.camera.Project(m.Position, r.vp)
		if !ok {
			continue
		}
		f.Sprites = append(f.Sprites, Sprite{
			ID:       m.ID,
			Kind:     KindMarker,
			At:       at,
			Radius:   m.Radius * at.Scale,
			Rotation: m.Rotation,
			Color:    m.Color,
		})
	}

	for _, v := range world.Vehicles {
		n, ok := r.scene.vehicles[v.ID]
		if !ok {
			continue
		}
		at, ok := r.camera.Project(n.Position, r.vp)
		if !ok {
			continue
		}
		rot := 0.0
		if ahead, ok := r.camera.Project(n.Position.Add(engine.HeadingVector(n.Rotation)), r.vp); ok {
			rot = math.Atan2(ahead.Y-at.Y, ahead.X-at.X)
		}
		f.Sprites = append(f.Sprites, Sprite{
			ID:        v.ID,
			Kind:      KindVehicle,
			At:        at,
			Radius:    n.Radius * at.Scale,
			Rotation:  rot,
			Color:     n.Color,
			Label:     n.Label,
			Telemetry: render.Telemetry(v),
		})
	}

	sort.SliceStable(f.Sprites, func(i, j int) bool {
		return f.Sprites[i].At.Depth > f.Sprites[j].At.Depth
	})
	return f
}

// road projects the two edges of the corridor, or the centreline when the
// track has no width
func (r *Renderer) road() []Segment {
	path := r.scene.Track
	if len(path) < 2 {
		return nil
	}
	offsets := []float64{0}
	if r.scene.Width > 0 {
		offsets = []float64{-r.scene.Width / 2, r.scene.Width / 2}
	}

	var out []Segment
	for _, off := range offsets {
		for i := range path {
			a := edgePoint(path, i, off)
			b := edgePoint(path, i+1, off)
			pa, okA := r.camera.Project(a, r.vp)
			pb, okB := r.camera.Project(b, r.vp)
			if okA && okB {
				out = append(out, Segment{A: pa, B: pb})
			}
		}
	}
	return out
}

func edgePoint(path []engine.Vec3, i int, off float64) engine.Vec3 {
	p := path[i%len(path)]
	if off == 0 {
		return p
	}
	h := engine.PathTangent(path, i)
	// Left normal of the tangent on the ground plane
	return p.Add(engine.Vec3{X: -math.Sin(h), Y: math.Cos(h)}.Scale(off))
}

// Resize implements engine.Renderer
func (r *Renderer) Resize(vp engine.Viewport) {
	r.vp = vp
	r.camera.SetViewport(vp)
}

// Close implements engine.Renderer
func (r *Renderer) Close() error {
	r.closed = true
	r.scene = nil
	return nil
}
