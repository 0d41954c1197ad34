package engine

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDisposed      = errors.New("engine disposed")
	ErrVehicleExists = errors.New("vehicle already exists")
	ErrRaceFull      = errors.New("race is full")
	ErrNoScheduler   = errors.New("scheduler is required")
)

// Engine provides the main interface for race operations
type Engine interface {
	// Registry
	AddVehicle(id, name, color string) (Vehicle, error)
	RemoveVehicle(id string) bool
	UpdateVehicle(id string, in ControlInput) bool
	ApplyImpulse(id string, imp Impulse) bool

	// Queries
	GetVehicle(id string) (Vehicle, bool)
	GetVehicles() []Vehicle
	GetStandings() []Standing
	GetCheckpoints() []Checkpoint
	GetTrack() *TrackGeometry
	GetProfile() Profile
	GetTick() uint64

	// Loop lifecycle
	Start() error
	Stop()
	Running() bool
	Dispose()
	Resize(vp Viewport)

	// Persistence
	Snapshot() Snapshot
	Restore(snap Snapshot) error
}

// Config describes how an engine is assembled
type Config struct {
	Variant   Variant
	World     Size
	Viewport  Viewport
	TotalLaps int
	Density   OvalDensity

	// Track, when set, is used as-is instead of compiling a layout.
	Track *TrackGeometry
	// Profile overrides the variant's default physics profile.
	Profile *Profile

	Scheduler Scheduler
	Input     InputSampler
	Gate      ControlGate
}

// GameEngine implements the Engine interface. All methods must be called
// from the scheduler's goroutine, or before Start.
type GameEngine struct {
	cfg       Config
	track     *TrackGeometry
	profile   Profile
	renderer  Renderer
	callbacks Callbacks

	vehicles map[string]*Vehicle
	order    []string
	inputs   map[string]ControlInput
	tick     uint64

	running  bool
	inFrame  bool
	disposed bool
	handle   FrameID
}

// NewEngine builds the track, attaches a renderer to surface and returns a
// stopped engine. A surface that cannot provide a drawing context fails the
// construction.
func NewEngine(surface Surface, cfg Config, layout *TrackLayout, cb Callbacks) (*GameEngine, error) {
	if cfg.Scheduler == nil {
		return nil, ErrNoScheduler
	}
	if cfg.Variant == "" {
		cfg.Variant = Variant2D
	}
	if cfg.World.Width <= 0 || cfg.World.Height <= 0 {
		cfg.World = Size{Width: DefaultWorldWidth, Height: DefaultWorldHeight}
	}
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = Viewport{Width: int(cfg.World.Width), Height: int(cfg.World.Height)}
	}
	if cfg.TotalLaps <= 0 {
		cfg.TotalLaps = DefaultTotalLaps
	}

	track := cfg.Track
	if track == nil {
		var err error
		track, err = compileTrack(cfg, layout)
		if err != nil {
			return nil, err
		}
	}
	if len(track.Path) < MinPathPoints {
		return nil, fmt.Errorf("track path needs at least %d points, got %d", MinPathPoints, len(track.Path))
	}

	renderer, err := attach(surface, cfg.Viewport)
	if err != nil {
		return nil, err
	}

	profile := ProfileFor(cfg.Variant, cfg.World)
	if cfg.Profile != nil {
		profile = *cfg.Profile
	}

	return &GameEngine{
		cfg:       cfg,
		track:     track,
		profile:   profile,
		renderer:  renderer,
		callbacks: cb,
		vehicles:  make(map[string]*Vehicle),
		inputs:    make(map[string]ControlInput),
	}, nil
}

func compileTrack(cfg Config, layout *TrackLayout) (*TrackGeometry, error) {
	if cfg.Variant == Variant3D && layout == nil {
		return ChaseCircuit(), nil
	}
	opts := TrackOptions{World: cfg.World, Density: cfg.Density}
	if cfg.Variant == Variant3D {
		opts.Width = ChaseCircuit().Width
	}
	return BuildTrack(layout, opts)
}

// AddVehicle registers a vehicle at the start of the track, facing along
// the first path segment
func (e *GameEngine) AddVehicle(id, name, color string) (Vehicle, error) {
	if e.disposed {
		return Vehicle{}, ErrDisposed
	}
	if id == "" {
		return Vehicle{}, fmt.Errorf("vehicle id is required")
	}
	if _, ok := e.vehicles[id]; ok {
		return Vehicle{}, fmt.Errorf("add vehicle %q: %w", id, ErrVehicleExists)
	}
	if len(e.order) >= MaxVehicles {
		return Vehicle{}, fmt.Errorf("add vehicle %q: %w", id, ErrRaceFull)
	}

	v := &Vehicle{
		ID:          id,
		DisplayName: name,
		Color:       color,
		Position:    e.track.Path[0],
		Heading:     PathTangent(e.track.Path, 0),
		TotalLaps:   e.cfg.TotalLaps,
	}
	e.vehicles[id] = v
	e.order = append(e.order, id)
	return *v, nil
}

// RemoveVehicle drops a vehicle. Unknown ids are ignored.
func (e *GameEngine) RemoveVehicle(id string) bool {
	if _, ok := e.vehicles[id]; !ok {
		return false
	}
	delete(e.vehicles, id)
	delete(e.inputs, id)
	for i, vid := range e.order {
		if vid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// UpdateVehicle records the latest control input for a vehicle. It is
// sampled at the next frame; only the latest value matters.
func (e *GameEngine) UpdateVehicle(id string, in ControlInput) bool {
	if _, ok := e.vehicles[id]; !ok {
		return false
	}
	e.inputs[id] = in
	return true
}

// ApplyImpulse scales and then offsets a vehicle's velocity, clamped to the
// profile's range
func (e *GameEngine) ApplyImpulse(id string, imp Impulse) bool {
	v, ok := e.vehicles[id]
	if !ok {
		return false
	}
	if imp.Scale {
		v.Velocity *= imp.VelocityScale
	}
	v.Velocity += imp.VelocityDelta
	v.Velocity = clamp(v.Velocity, e.profile.MinVelocity(), e.profile.MaxSpeed)
	return true
}

// GetVehicle returns a copy of a vehicle's state
func (e *GameEngine) GetVehicle(id string) (Vehicle, bool) {
	v, ok := e.vehicles[id]
	if !ok {
		return Vehicle{}, false
	}
	return *v, true
}

// GetVehicles returns copies of all vehicles in insertion order
func (e *GameEngine) GetVehicles() []Vehicle {
	out := make([]Vehicle, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.vehicles[id])
	}
	return out
}

// GetStandings ranks vehicles by lap, then checkpoints passed. Ties keep
// insertion order.
func (e *GameEngine) GetStandings() []Standing {
	return Standings(e.GetVehicles())
}

// Standings ranks a vehicle list by lap, then checkpoints passed
func Standings(vehicles []Vehicle) []Standing {
	out := make([]Standing, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, Standing{
			VehicleID:         v.ID,
			DisplayName:       v.DisplayName,
			Lap:               v.CurrentLap,
			CheckpointsPassed: v.NextCheckpointIndex,
			Finished:          v.Finished,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Lap != out[j].Lap {
			return out[i].Lap > out[j].Lap
		}
		return out[i].CheckpointsPassed > out[j].CheckpointsPassed
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// GetCheckpoints returns a copy of the track's checkpoints
func (e *GameEngine) GetCheckpoints() []Checkpoint {
	if e.track == nil {
		return nil
	}
	return append([]Checkpoint(nil), e.track.Checkpoints...)
}

// GetTrack returns the shared, read-only track geometry
func (e *GameEngine) GetTrack() *TrackGeometry {
	return e.track
}

// GetProfile returns the physics profile in use
func (e *GameEngine) GetProfile() Profile {
	return e.profile
}

// GetTick returns the number of frames simulated
func (e *GameEngine) GetTick() uint64 {
	return e.tick
}

// GetConfig returns the resolved engine configuration
func (e *GameEngine) GetConfig() Config {
	return e.cfg
}

// Snapshot captures the registry for persistence
func (e *GameEngine) Snapshot() Snapshot {
	inputs := make(map[string]ControlInput, len(e.inputs))
	for id, in := range e.inputs {
		inputs[id] = in
	}
	return Snapshot{Tick: e.tick, Vehicles: e.GetVehicles(), Inputs: inputs}
}

// Restore replaces the registry with a snapshot
func (e *GameEngine) Restore(snap Snapshot) error {
	if e.disposed {
		return ErrDisposed
	}
	vehicles := make(map[string]*Vehicle, len(snap.Vehicles))
	order := make([]string, 0, len(snap.Vehicles))
	for i := range snap.Vehicles {
		v := snap.Vehicles[i]
		if v.ID == "" {
			return fmt.Errorf("restore: vehicle %d has no id", i)
		}
		if _, dup := vehicles[v.ID]; dup {
			return fmt.Errorf("restore vehicle %q: %w", v.ID, ErrVehicleExists)
		}
		vehicles[v.ID] = &v
		order = append(order, v.ID)
	}
	inputs := make(map[string]ControlInput, len(snap.Inputs))
	for id, in := range snap.Inputs {
		if _, ok := vehicles[id]; ok {
			inputs[id] = in
		}
	}
	e.vehicles = vehicles
	e.order = order
	e.inputs = inputs
	e.tick = snap.Tick
	return nil
}

// Advance is the pure arena step: it integrates and tracks every vehicle in
// order and returns the new states with the events they produced
func Advance(track *TrackGeometry, p Profile, vehicles []Vehicle, inputs map[string]ControlInput, tick uint64, dt float64) ([]Vehicle, []Event) {
	out := make([]Vehicle, len(vehicles))
	var events []Event
	for i, v := range vehicles {
		v = Step(v, inputs[v.ID], track, p, dt)
		var evs []Event
		v, evs = Evaluate(v, track, tick)
		out[i] = v
		events = append(events, evs...)
	}
	return out, events
}

// Tick simulates and renders one frame and returns the events it produced
func (e *GameEngine) Tick() []Event {
	if e.disposed {
		return nil
	}
	e.tick++

	current := e.GetVehicles()
	inputs := make(map[string]ControlInput, len(current))
	for _, v := range current {
		in := e.inputs[v.ID]
		if e.cfg.Input != nil {
			if sampled, ok := e.cfg.Input.Sample(v.ID); ok {
				in = sampled
			}
		}
		if e.cfg.Gate != nil {
			in = e.cfg.Gate.Gate(v.ID, in)
		}
		inputs[v.ID] = in
	}

	next, events := Advance(e.track, e.profile, current, inputs, e.tick, 1)
	for _, v := range next {
		if slot, ok := e.vehicles[v.ID]; ok {
			*slot = v
		}
	}

	for _, ev := range events {
		if e.disposed {
			return events
		}
		switch ev.Kind {
		case EventCheckpointReached:
			if e.callbacks.OnCheckpointReached != nil {
				e.callbacks.OnCheckpointReached(ev.VehicleID, ev.CheckpointID)
			}
		case EventLapCompleted:
			if e.callbacks.OnLapCompleted != nil {
				e.callbacks.OnLapCompleted(ev.VehicleID, ev.Lap)
			}
		}
	}
	if e.disposed {
		return events
	}
	if e.callbacks.OnFrame != nil {
		e.callbacks.OnFrame(e.tick)
	}
	if e.disposed {
		return events
	}

	if err := e.renderer.DrawFrame(e.world(events)); err != nil && e.callbacks.OnRenderError != nil {
		e.callbacks.OnRenderError(err)
	}
	return events
}

func (e *GameEngine) world(events []Event) WorldState {
	vehicles := e.GetVehicles()
	return WorldState{
		Tick:      e.tick,
		Variant:   e.cfg.Variant,
		Track:     e.track,
		Vehicles:  vehicles,
		Standings: Standings(vehicles),
		Events:    events,
		MaxSpeed:  e.profile.MaxSpeed,
	}
}
