package engine

import (
	"errors"
	"fmt"
)

// Viewport is the drawable area handed to a render backend
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ErrNoSurface is returned when a mount surface cannot provide a drawing
// context
var ErrNoSurface = errors.New("surface cannot provide a drawing context")

// WorldState is the read-only view of one frame handed to a renderer.
// Vehicles are in insertion order; the first one is the camera target.
type WorldState struct {
	Tick      uint64         `json:"tick"`
	Variant   Variant        `json:"variant"`
	Track     *TrackGeometry `json:"-"`
	Vehicles  []Vehicle      `json:"vehicles"`
	Standings []Standing     `json:"standings"`
	Events    []Event        `json:"events,omitempty"`
	MaxSpeed  float64        `json:"max_speed"`
}

// Lead returns the camera-follow vehicle
func (w WorldState) Lead() (Vehicle, bool) {
	if len(w.Vehicles) == 0 {
		return Vehicle{}, false
	}
	return w.Vehicles[0], true
}

// Renderer draws frames. It is owned by exactly one engine.
type Renderer interface {
	DrawFrame(world WorldState) error
	Resize(vp Viewport)
	Close() error
}

// Surface is the mount point a renderer is attached to
type Surface interface {
	Attach(vp Viewport) (Renderer, error)
}

// SurfaceFunc adapts a function to the Surface interface
type SurfaceFunc func(vp Viewport) (Renderer, error)

// Attach calls f(vp)
func (f SurfaceFunc) Attach(vp Viewport) (Renderer, error) {
	return f(vp)
}

// InputSampler supplies per-frame control input for a vehicle. ok is false
// when the sampler has no opinion and the last UpdateVehicle value applies.
type InputSampler interface {
	Sample(vehicleID string) (ControlInput, bool)
}

// Samplers asks each sampler in turn and uses the first opinion
type Samplers []InputSampler

// Sample implements InputSampler
func (s Samplers) Sample(vehicleID string) (ControlInput, bool) {
	for _, sampler := range s {
		if sampler == nil {
			continue
		}
		if in, ok := sampler.Sample(vehicleID); ok {
			return in, true
		}
	}
	return ControlInput{}, false
}

// ControlGate filters sampled input before physics runs
type ControlGate interface {
	Gate(vehicleID string, in ControlInput) ControlInput
}

// NullRenderer draws nothing. Hosts that only simulate attach it explicitly.
type NullRenderer struct{}

func (NullRenderer) DrawFrame(WorldState) error { return nil }
func (NullRenderer) Resize(Viewport)            {}
func (NullRenderer) Close() error               { return nil }

// NullSurface attaches a NullRenderer
var NullSurface Surface = SurfaceFunc(func(Viewport) (Renderer, error) {
	return NullRenderer{}, nil
})

func attach(surface Surface, vp Viewport) (Renderer, error) {
	if surface == nil {
		return nil, ErrNoSurface
	}
	r, err := surface.Attach(vp)
	if err != nil {
		return nil, fmt.Errorf("attach renderer: %w", err)
	}
	if r == nil {
		return nil, ErrNoSurface
	}
	return r, nil
}
