package scene3d

import (
	"image/color"
	"math"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/render"
)

// Marker animation
const (
	MarkerSpin       = 0.02
	MarkerBaseHeight = 5.0
	MarkerBob        = 2.0
	ClockStep        = 0.016
)

// NodeKind tells a presenter how to draw a node
type NodeKind string

const (
	KindTrack   NodeKind = "track"
	KindMarker  NodeKind = "marker"
	KindVehicle NodeKind = "vehicle"
)

// Node is one object in the scene graph
type Node struct {
	ID       string
	Kind     NodeKind
	Position engine.Vec3
	// Rotation is the yaw of vehicles and the spin of markers
	Rotation float64
	Radius   float64
	Color    color.RGBA
	Label    string
}

// Scene holds the track, the checkpoint markers and one node per vehicle.
// Vehicle nodes follow registry insertion order.
type Scene struct {
	Track   []engine.Vec3
	Width   float64
	Markers []*Node

	vehicles map[string]*Node
	order    []string
	clock    float64
}

// NewScene builds the static part of a scene from a track
func NewScene(track *engine.TrackGeometry) *Scene {
	s := &Scene{vehicles: make(map[string]*Node)}
	if track == nil {
		return s
	}
	s.Track = track.Path
	s.Width = track.Width
	for _, cp := range track.Checkpoints {
		s.Markers = append(s.Markers, &Node{
			ID:       cp.ID,
			Kind:     KindMarker,
			Position: cp.Position,
			Radius:   cp.TriggerRadius,
			Color:    color.RGBA{0xff, 0xff, 0x00, 0xff},
		})
	}
	return s
}

// Clock is the animation time in seconds
func (s *Scene) Clock() float64 {
	return s.clock
}

// Vehicles returns the vehicle nodes in insertion order
func (s *Scene) Vehicles() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.vehicles[id])
	}
	return out
}

// Sync mirrors the frame's vehicles into the scene, adding and dropping
// nodes as vehicles join and leave
func (s *Scene) Sync(vehicles []engine.Vehicle) {
	seen := make(map[string]bool, len(vehicles))
	order := s.order[:0]
	for i, v := range vehicles {
		seen[v.ID] = true
		n, ok := s.vehicles[v.ID]
		if !ok {
			n = &Node{ID: v.ID, Kind: KindVehicle, Radius: 5}
			s.vehicles[v.ID] = n
		}
		n.Position = v.Position
		n.Rotation = v.Heading
		n.Color = render.VehicleColor(v, i)
		n.Label = v.DisplayName
		order = append(order, v.ID)
	}
	for id := range s.vehicles {
		if !seen[id] {
			delete(s.vehicles, id)
		}
	}
	s.order = order
}

// Animate advances the clock one frame, spinning and bobbing the markers
func (s *Scene) Animate() {
	s.clock += ClockStep
	z := MarkerBaseHeight + math.Sin(s.clock*2)*MarkerBob
	for _, m := range s.Markers {
		m.Rotation += MarkerSpin
		m.Position.Z = z
	}
}
