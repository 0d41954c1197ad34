package engine

import (
	"errors"
	"fmt"
	"math"
)

// OvalDensity selects the radii and sampling step of the fallback oval
type OvalDensity string

const (
	// OvalCoarse matches the basic canvas racer: 200x150, step 0.1 rad.
	OvalCoarse OvalDensity = "coarse"
	// OvalFine matches the enhanced canvas racer: 250x180, step 0.05 rad.
	OvalFine OvalDensity = "fine"

	checkpointInset = 50.0
)

// ErrNoWorld is returned when a track cannot be placed in the world
var ErrNoWorld = errors.New("world size must be positive")

// GridSize is the authoring grid of a layout
type GridSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point2 is an authored 2D position
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TrackPiece is one authored piece of road. Pieces are carried through for
// editors but are not compiled into geometry.
type TrackPiece struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Length   float64 `json:"length,omitempty"`
}

// CheckpointPosition is an authored checkpoint. Older layouts store their
// coordinates directly instead of under position.
type CheckpointPosition struct {
	ID            string   `json:"id"`
	Position      *Point2  `json:"position,omitempty"`
	X             *float64 `json:"x,omitempty"`
	Y             *float64 `json:"y,omitempty"`
	TriggerRadius float64  `json:"trigger_radius"`
	QuestionSetID string   `json:"question_set_id,omitempty"`
	IsMandatory   bool     `json:"is_mandatory"`
}

// Obstacle is an authored obstacle
type Obstacle struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TrackLayout is the authored description of a track
type TrackLayout struct {
	GridSize    GridSize             `json:"grid_size"`
	Pieces      []TrackPiece         `json:"pieces"`
	Checkpoints []CheckpointPosition `json:"checkpoints"`
	Obstacles   []Obstacle           `json:"obstacles,omitempty"`
}

// TrackOptions controls how a layout is compiled
type TrackOptions struct {
	World   Size
	Density OvalDensity
	Width   float64
}

// Resolve returns the checkpoint's position. ok is false when neither the
// nested position nor both direct coordinates are present.
func (c CheckpointPosition) Resolve() (Point2, bool) {
	if c.Position != nil {
		return *c.Position, true
	}
	if c.X != nil && c.Y != nil {
		return Point2{X: *c.X, Y: *c.Y}, true
	}
	return Point2{}, false
}

// BuildTrack compiles a layout into track geometry. A nil layout yields the
// default oval with its four default checkpoints.
func BuildTrack(layout *TrackLayout, opts TrackOptions) (*TrackGeometry, error) {
	if opts.World.Width <= 0 || opts.World.Height <= 0 {
		return nil, fmt.Errorf("build track: %w", ErrNoWorld)
	}

	rx, ry, step := ovalParams(opts.Density)
	center := Vec3{X: opts.World.Width / 2, Y: opts.World.Height / 2}
	track := &TrackGeometry{
		Path:  Oval(center, rx, ry, step),
		Width: opts.Width,
	}

	if layout == nil {
		track.Checkpoints = defaultCheckpoints(center, rx, ry)
		return track, nil
	}

	track.Checkpoints = make([]Checkpoint, 0, len(layout.Checkpoints))
	for i, cp := range layout.Checkpoints {
		pos, ok := cp.Resolve()
		if !ok {
			continue
		}
		id := cp.ID
		if id == "" {
			id = fmt.Sprintf("cp%d", i+1)
		}
		radius := cp.TriggerRadius
		if radius <= 0 {
			radius = DefaultTriggerRadius
		}
		track.Checkpoints = append(track.Checkpoints, Checkpoint{
			ID:            id,
			Position:      Vec3{X: pos.X, Y: pos.Y},
			TriggerRadius: radius,
		})
	}
	return track, nil
}

// Oval samples an ellipse starting at angle 0 (right of center) and
// proceeding clockwise in screen space.
func Oval(center Vec3, rx, ry, step float64) []Vec3 {
	if step <= 0 {
		step = 0.05
	}
	n := int(math.Ceil(2*math.Pi/step - 1e-9))
	path := make([]Vec3, 0, n)
	for i := 0; i < n; i++ {
		a := float64(i) * step
		path = append(path, Vec3{
			X: center.X + math.Cos(a)*rx,
			Y: center.Y + math.Sin(a)*ry,
			Z: center.Z,
		})
	}
	return path
}

func ovalParams(d OvalDensity) (rx, ry, step float64) {
	if d == OvalCoarse {
		return 200, 150, 0.1
	}
	return 250, 180, 0.05
}

func defaultCheckpoints(c Vec3, rx, ry float64) []Checkpoint {
	return []Checkpoint{
		{ID: "cp1", Position: Vec3{X: c.X + rx - checkpointInset, Y: c.Y}, TriggerRadius: DefaultTriggerRadius},
		{ID: "cp2", Position: Vec3{X: c.X, Y: c.Y + ry - checkpointInset}, TriggerRadius: DefaultTriggerRadius},
		{ID: "cp3", Position: Vec3{X: c.X - rx + checkpointInset, Y: c.Y}, TriggerRadius: DefaultTriggerRadius},
		{ID: "cp4", Position: Vec3{X: c.X, Y: c.Y - ry + checkpointInset}, TriggerRadius: DefaultTriggerRadius},
	}
}

// ChaseCircuit is the walled circuit used by the chase-camera variant. It is
// centred on the origin, 80 units wide, with three hovering checkpoints.
func ChaseCircuit() *TrackGeometry {
	const (
		rx, ry = 240.0, 160.0
		height = 5.0
		radius = 40.0
	)
	path := Oval(Vec3{}, rx, ry, 2*math.Pi/200)
	at := func(angle float64) Vec3 {
		return Vec3{X: math.Cos(angle) * rx, Y: math.Sin(angle) * ry, Z: height}
	}
	return &TrackGeometry{
		Path:  path,
		Width: 80,
		Checkpoints: []Checkpoint{
			{ID: "checkpoint-0", Position: at(math.Pi / 2), TriggerRadius: radius},
			{ID: "checkpoint-1", Position: at(math.Pi), TriggerRadius: radius},
			{ID: "checkpoint-2", Position: at(3 * math.Pi / 2), TriggerRadius: radius},
		},
	}
}
