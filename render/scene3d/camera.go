package scene3d

import (
	"math"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// Chase camera tuning
const (
	ChaseDistance = 30.0
	ChaseHeight   = 15.0
	ChaseLerp     = 0.1
	LookAtHeight  = 5.0

	DefaultFOV  = 75.0
	DefaultNear = 0.1
	DefaultFar  = 10000.0
)

var up = engine.Vec3{Z: 1}

// Camera is a perspective camera. The ground is the X/Y plane and +Z is up.
type Camera struct {
	Position engine.Vec3
	Target   engine.Vec3
	FOV      float64 // vertical, degrees
	Aspect   float64
	Near     float64
	Far      float64
}

// NewCamera returns a camera above and behind the origin
func NewCamera(vp engine.Viewport) *Camera {
	c := &Camera{
		Position: engine.Vec3{Y: 60, Z: 30},
		FOV:      DefaultFOV,
		Near:     DefaultNear,
		Far:      DefaultFar,
	}
	c.SetViewport(vp)
	return c
}

// SetViewport updates the aspect ratio
func (c *Camera) SetViewport(vp engine.Viewport) {
	if vp.Width > 0 && vp.Height > 0 {
		c.Aspect = float64(vp.Width) / float64(vp.Height)
	} else {
		c.Aspect = 1
	}
}

// ChasePoint is where the camera settles behind a vehicle
func ChasePoint(v engine.Vehicle) engine.Vec3 {
	behind := v.Position.Sub(engine.HeadingVector(v.Heading).Scale(ChaseDistance))
	behind.Z = v.Position.Z + ChaseHeight
	return behind
}

// Follow eases the camera toward its chase point behind v and aims it at
// the vehicle
func (c *Camera) Follow(v engine.Vehicle) {
	c.Position = c.Position.Lerp(ChasePoint(v), ChaseLerp)
	c.Target = v.Position.Add(engine.Vec3{Z: LookAtHeight})
}

func dot(a, b engine.Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func cross(a, b engine.Vec3) engine.Vec3 {
	return engine.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func normalize(v engine.Vec3) engine.Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// basis returns the camera's right, up and forward axes
func (c *Camera) basis() (right, u, forward engine.Vec3) {
	forward = normalize(c.Target.Sub(c.Position))
	right = normalize(cross(forward, up))
	if right.Len() == 0 {
		// Looking straight down; any horizontal right axis will do
		right = engine.Vec3{X: 1}
	}
	u = cross(right, forward)
	return right, u, forward
}

// Projected is a world point in screen space. Depth is the distance along
// the view axis; Scale is pixels per world unit at that depth.
type Projected struct {
	X, Y  float64
	Depth float64
	Scale float64
}

// Project maps a world point onto a viewport. ok is false for points
// behind the near plane or past the far plane.
func (c *Camera) Project(p engine.Vec3, vp engine.Viewport) (Projected, bool) {
	right, u, forward := c.basis()
	rel := p.Sub(c.Position)
	z := dot(rel, forward)
	if z < c.Near || z > c.Far {
		return Projected{}, false
	}

	f := 1 / math.Tan(c.FOV*math.Pi/360)
	ndcX := dot(rel, right) * f / (z * c.Aspect)
	ndcY := dot(rel, u) * f / z

	w, h := float64(vp.Width), float64(vp.Height)
	return Projected{
		X:     (ndcX + 1) / 2 * w,
		Y:     (1 - ndcY) / 2 * h,
		Depth: z,
		Scale: f * h / 2 / z,
	}, true
}
