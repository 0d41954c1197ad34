package engine

import "math"

// Profile holds the tuning constants of a physics variant. Rates are per
// nominal frame.
type Profile struct {
	Name          string  `json:"name"`
	MaxSpeed      float64 `json:"max_speed"`
	AccelRate     float64 `json:"accel_rate"`
	BrakeRate     float64 `json:"brake_rate"`
	Friction      float64 `json:"friction"`
	TurnRate      float64 `json:"turn_rate"`
	TurnThreshold float64 `json:"turn_threshold"`
	PositionScale float64 `json:"position_scale"`

	// CoastDecay multiplies the previous acceleration when neither pedal is
	// held. Zero drops it immediately.
	CoastDecay float64 `json:"coast_decay"`

	// ReverseRatio is the fraction of MaxSpeed allowed in reverse. Zero
	// floors velocity at 0.
	ReverseRatio float64 `json:"reverse_ratio"`

	// Adherence enables the soft guardrail toward the track centerline.
	Adherence bool    `json:"adherence"`
	MaxPush   float64 `json:"max_push"`

	// Bounds, when non-zero, contains the vehicle inside the rectangle
	// [Margin, Bounds-Margin].
	Bounds Size    `json:"bounds"`
	Margin float64 `json:"margin"`
}

const (
	offTrackDamping = 0.9
	defaultMaxPush  = 0.3
	boundsMargin    = 50.0
)

// Arcade2D is the top-down canvas profile. Velocity is in pixels per frame
// scaled down by PositionScale.
func Arcade2D(world Size) Profile {
	return Profile{
		Name:          "arcade2d",
		MaxSpeed:      300,
		AccelRate:     5,
		BrakeRate:     8,
		Friction:      0.97,
		TurnRate:      0.05,
		PositionScale: 0.1,
		Bounds:        world,
		Margin:        boundsMargin,
	}
}

// Chase3D is the chase-camera profile driving on a walled-off circuit
func Chase3D() Profile {
	return Profile{
		Name:          "chase3d",
		MaxSpeed:      0.5,
		AccelRate:     0.02,
		BrakeRate:     0.03,
		Friction:      0.95,
		TurnRate:      0.05,
		TurnThreshold: 0.01,
		PositionScale: 1,
		CoastDecay:    0.95,
		ReverseRatio:  0.5,
		Adherence:     true,
		MaxPush:       defaultMaxPush,
	}
}

// ProfileFor returns the default profile of a variant
func ProfileFor(variant Variant, world Size) Profile {
	if variant == Variant3D {
		return Chase3D()
	}
	return Arcade2D(world)
}

// MinVelocity is the lowest velocity the profile permits
func (p Profile) MinVelocity() float64 {
	return -p.MaxSpeed * p.ReverseRatio
}

// Step integrates one vehicle over dt frames. It is pure: the returned
// vehicle is a modified copy.
func Step(v Vehicle, in ControlInput, track *TrackGeometry, p Profile, dt float64) Vehicle {
	switch {
	case in.Accelerate:
		v.Acceleration = p.AccelRate
	case in.Brake:
		v.Acceleration = -p.BrakeRate
	default:
		v.Acceleration *= p.CoastDecay
	}

	v.Velocity += v.Acceleration * dt
	v.Velocity *= math.Pow(p.Friction, dt)
	v.Velocity = clamp(v.Velocity, p.MinVelocity(), p.MaxSpeed)

	v.Heading = Steer(v.Heading, v.Velocity, in, p, dt)

	dir := HeadingVector(v.Heading)
	v.Position.X += dir.X * v.Velocity * p.PositionScale * dt
	v.Position.Y += dir.Y * v.Velocity * p.PositionScale * dt

	if p.Adherence && track != nil && track.Width > 0 {
		v = adhere(v, track, p)
	}
	if p.Bounds.Width > 0 && p.Bounds.Height > 0 {
		v.Position.X = clamp(v.Position.X, p.Margin, p.Bounds.Width-p.Margin)
		v.Position.Y = clamp(v.Position.Y, p.Margin, p.Bounds.Height-p.Margin)
	}

	v.Velocity = clamp(v.Velocity, p.MinVelocity(), p.MaxSpeed)
	return v
}

// Steer applies turn input scaled by the fraction of top speed. Below the
// profile's threshold speed the heading does not change.
func Steer(heading, velocity float64, in ControlInput, p Profile, dt float64) float64 {
	speed := math.Abs(velocity)
	if speed <= p.TurnThreshold || p.MaxSpeed <= 0 {
		return heading
	}
	authority := p.TurnRate * (speed / p.MaxSpeed) * dt
	if in.Left {
		heading -= authority
	}
	if in.Right {
		heading += authority
	}
	return heading
}

func adhere(v Vehicle, track *TrackGeometry, p Profile) Vehicle {
	i, dist := NearestPathPoint(track.Path, v.Position)
	if i < 0 {
		return v
	}
	off := dist - track.Width/2
	if off <= 0 {
		return v
	}

	v.Velocity *= offTrackDamping
	v.Acceleration *= offTrackDamping

	maxPush := p.MaxPush
	if maxPush == 0 {
		maxPush = defaultMaxPush
	}
	strength := math.Min(off/track.Width, 1) * maxPush
	toward := track.Path[i].Sub(v.Position)
	if l := math.Hypot(toward.X, toward.Y); l > 0 {
		v.Position.X += toward.X / l * strength
		v.Position.Y += toward.Y / l * strength
	}
	return v
}
