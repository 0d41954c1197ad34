package engine

// Variant identifies which physics and presentation family a race uses
type Variant string

const (
	Variant2D Variant = "2d"
	Variant3D Variant = "3d"

	// Race defaults
	DefaultTotalLaps     = 3
	DefaultTriggerRadius = 60.0
	DefaultWorldWidth    = 800
	DefaultWorldHeight   = 600
	FramesPerSecond      = 60

	// Validation constants
	MinTotalLaps        = 1
	MaxTotalLaps        = 20
	MaxVehicles         = 16
	MinPathPoints       = 3
	WebSocketBufferSize = 256
)

// Vec3 is a point or direction in world space. Vehicles move on the X/Y
// ground plane; Z is height above it.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Size is a width/height pair in world units
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Checkpoint is a trigger zone on the track
type Checkpoint struct {
	ID            string  `json:"id"`
	Position      Vec3    `json:"position"`
	TriggerRadius float64 `json:"trigger_radius"`
}

// TrackGeometry is the compiled, immutable description of a circuit.
// Path is cyclic: the last point connects back to the first.
type TrackGeometry struct {
	Path        []Vec3       `json:"path"`
	Width       float64      `json:"width"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// ControlInput is the sampled driver intent for one frame
type ControlInput struct {
	Accelerate bool `json:"accelerate"`
	Brake      bool `json:"brake"`
	Left       bool `json:"left"`
	Right      bool `json:"right"`
}

// Vehicle is the per-racer kinematic and progress state
type Vehicle struct {
	ID                  string  `json:"id"`
	DisplayName         string  `json:"display_name"`
	Color               string  `json:"color"`
	Position            Vec3    `json:"position"`
	Heading             float64 `json:"heading"`
	Velocity            float64 `json:"velocity"`
	Acceleration        float64 `json:"acceleration"`
	CurrentLap          int     `json:"current_lap"`
	NextCheckpointIndex int     `json:"next_checkpoint_index"`
	TotalLaps           int     `json:"total_laps"`
	Finished            bool    `json:"finished"`

	// Latched is the checkpoint most recently fired while the vehicle is
	// still inside its trigger zone.
	Latched string `json:"latched,omitempty"`
}

// EventKind names a tracker event
type EventKind string

const (
	EventCheckpointReached EventKind = "checkpoint_reached"
	EventLapCompleted      EventKind = "lap_completed"
)

// Event is emitted by the tracker during a frame
type Event struct {
	Kind         EventKind `json:"kind"`
	VehicleID    string    `json:"vehicle_id"`
	CheckpointID string    `json:"checkpoint_id,omitempty"`
	Lap          int       `json:"lap,omitempty"`
	Tick         uint64    `json:"tick"`
}

// Standing is one row of the race leaderboard
type Standing struct {
	Rank              int    `json:"rank"`
	VehicleID         string `json:"vehicle_id"`
	DisplayName       string `json:"display_name"`
	Lap               int    `json:"lap"`
	CheckpointsPassed int    `json:"checkpoints_passed"`
	Finished          bool   `json:"finished"`
}

// Impulse modifies a vehicle's motion from outside the physics step
// (question rewards and penalties). VelocityScale only applies when Scale
// is set.
type Impulse struct {
	Scale         bool    `json:"scale,omitempty"`
	VelocityScale float64 `json:"velocity_scale,omitempty"`
	VelocityDelta float64 `json:"velocity_delta,omitempty"`
}

// Callbacks receive tracker events synchronously from inside a frame
type Callbacks struct {
	OnCheckpointReached func(vehicleID, checkpointID string)
	OnLapCompleted      func(vehicleID string, lap int)
	OnFrame             func(tick uint64)
	OnRenderError       func(err error)
}

// Snapshot captures everything needed to rebuild a race registry
type Snapshot struct {
	Tick     uint64                  `json:"tick"`
	Vehicles []Vehicle               `json:"vehicles"`
	Inputs   map[string]ControlInput `json:"inputs,omitempty"`
}
