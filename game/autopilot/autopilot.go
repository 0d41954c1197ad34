package autopilot

import (
	"math"
	"sync"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// Driver steers a vehicle toward its next checkpoint, or along the
// centerline on tracks with a corridor
type Driver struct {
	// Lookahead is how many path samples ahead of the nearest one to aim at
	Lookahead int
	// Deadband is the heading error, in radians, tolerated without steering
	Deadband float64
	// CoastAngle is the heading error above which the throttle is released
	CoastAngle float64
	// BrakeAngle is the heading error above which a fast vehicle brakes
	BrakeAngle float64
}

// DefaultDriver returns a driver tuned for both stock profiles
func DefaultDriver() Driver {
	return Driver{
		Lookahead:  6,
		Deadband:   0.02,
		CoastAngle: 0.9,
		BrakeAngle: 1.6,
	}
}

// Control decides the input for one frame
func (d Driver) Control(v engine.Vehicle, track *engine.TrackGeometry, p engine.Profile) engine.ControlInput {
	target, ok := d.Target(v, track)
	if !ok {
		return engine.ControlInput{}
	}

	desired := math.Atan2(target.Y-v.Position.Y, target.X-v.Position.X)
	errAngle := engine.WrapAngle(desired - v.Heading)
	abs := math.Abs(errAngle)

	in := engine.ControlInput{
		Right: errAngle > d.Deadband,
		Left:  errAngle < -d.Deadband,
	}

	fast := p.MaxSpeed > 0 && v.Velocity > p.MaxSpeed*0.5
	switch {
	case abs > d.BrakeAngle && fast:
		in.Brake = true
	case abs > d.CoastAngle && fast:
	default:
		// Steering authority scales with speed, so keep rolling
		in.Accelerate = true
	}
	return in
}

// Target returns the point the driver is heading for
func (d Driver) Target(v engine.Vehicle, track *engine.TrackGeometry) (engine.Vec3, bool) {
	if track == nil {
		return engine.Vec3{}, false
	}
	if track.Width <= 0 && len(track.Checkpoints) > 0 {
		i := v.NextCheckpointIndex
		if i < 0 || i >= len(track.Checkpoints) {
			i = 0
		}
		return track.Checkpoints[i].Position, true
	}
	if len(track.Path) == 0 {
		return engine.Vec3{}, false
	}
	i, _ := engine.NearestPathPoint(track.Path, v.Position)
	return track.Path[(i+d.Lookahead)%len(track.Path)], true
}

// Source is the engine state a Fleet reads
type Source interface {
	GetVehicle(id string) (engine.Vehicle, bool)
	GetTrack() *engine.TrackGeometry
	GetProfile() engine.Profile
}

// Fleet samples input for the bot-controlled vehicles of one race and
// implements engine.InputSampler
type Fleet struct {
	mu      sync.RWMutex
	source  Source
	drivers map[string]Driver
}

// NewFleet creates an empty fleet
func NewFleet() *Fleet {
	return &Fleet{drivers: make(map[string]Driver)}
}

// Bind sets the engine the fleet reads vehicle state from
func (f *Fleet) Bind(source Source) {
	f.mu.Lock()
	f.source = source
	f.mu.Unlock()
}

// Assign puts a vehicle under a driver's control
func (f *Fleet) Assign(vehicleID string, d Driver) {
	f.mu.Lock()
	f.drivers[vehicleID] = d
	f.mu.Unlock()
}

// Release hands a vehicle back to its human driver
func (f *Fleet) Release(vehicleID string) {
	f.mu.Lock()
	delete(f.drivers, vehicleID)
	f.mu.Unlock()
}

// Controls reports whether a vehicle is bot-driven
func (f *Fleet) Controls(vehicleID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.drivers[vehicleID]
	return ok
}

// Sample implements engine.InputSampler
func (f *Fleet) Sample(vehicleID string) (engine.ControlInput, bool) {
	f.mu.RLock()
	d, ok := f.drivers[vehicleID]
	source := f.source
	f.mu.RUnlock()
	if !ok || source == nil {
		return engine.ControlInput{}, false
	}
	v, ok := source.GetVehicle(vehicleID)
	if !ok {
		return engine.ControlInput{}, false
	}
	return d.Control(v, source.GetTrack(), source.GetProfile()), true
}
