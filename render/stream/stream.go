// Package stream is the render backend for remote viewers. Instead of
// drawing, it publishes world frames and tracker events as messages that a
// transport (the websocket hub) fans out to browsers.
package stream

import (
	"errors"
	"sync"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// Message kinds
const (
	KindFrame          = "frame"
	KindEvent          = "event"
	KindQuestion       = "question"
	KindQuestionResult = "question_result"
	KindRace           = "race"
)

// DefaultEvery publishes every other frame, 30 per second at 60 fps
const DefaultEvery = 2

var ErrClosed = errors.New("stream renderer closed")

// Frame is the wire form of one world frame
type Frame struct {
	Tick      uint64            `json:"tick"`
	Variant   engine.Variant    `json:"variant"`
	Viewport  engine.Viewport   `json:"viewport"`
	Vehicles  []engine.Vehicle  `json:"vehicles"`
	Standings []engine.Standing `json:"standings"`
	MaxSpeed  float64           `json:"max_speed"`
}

// Message is one item published to viewers of a race
type Message struct {
	RaceID string        `json:"race_id"`
	Kind   string        `json:"kind"`
	Tick   uint64        `json:"tick"`
	Frame  *Frame        `json:"frame,omitempty"`
	Event  *engine.Event `json:"event,omitempty"`
	Data   any           `json:"data,omitempty"`
}

// Publisher receives messages from the engine goroutine. Implementations
// must not block.
type Publisher interface {
	Publish(msg Message)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(msg Message)

// Publish calls f(msg)
func (f PublisherFunc) Publish(msg Message) { f(msg) }

// Renderer publishes frames for one race
type Renderer struct {
	raceID string
	pub    Publisher
	every  uint64
	vp     engine.Viewport
	drawn  uint64
	closed bool
}

// NewSurface returns a surface attaching stream renderers for raceID. Frames
// are published every n-th draw; tracker events are always published.
func NewSurface(raceID string, pub Publisher, every int) engine.Surface {
	return engine.SurfaceFunc(func(vp engine.Viewport) (engine.Renderer, error) {
		if pub == nil {
			return nil, engine.ErrNoSurface
		}
		return New(raceID, pub, every, vp), nil
	})
}

// New creates a stream renderer
func New(raceID string, pub Publisher, every int, vp engine.Viewport) *Renderer {
	if every <= 0 {
		every = DefaultEvery
	}
	return &Renderer{raceID: raceID, pub: pub, every: uint64(every), vp: vp}
}

// DrawFrame implements engine.Renderer
func (r *Renderer) DrawFrame(world engine.WorldState) error {
	if r.closed {
		return ErrClosed
	}
	for i := range world.Events {
		ev := world.Events[i]
		r.pub.Publish(Message{RaceID: r.raceID, Kind: KindEvent, Tick: world.Tick, Event: &ev})
	}

	r.drawn++
	if (r.drawn-1)%r.every != 0 {
		return nil
	}
	r.pub.Publish(Message{
		RaceID: r.raceID,
		Kind:   KindFrame,
		Tick:   world.Tick,
		Frame: &Frame{
			Tick:      world.Tick,
			Variant:   world.Variant,
			Viewport:  r.vp,
			Vehicles:  world.Vehicles,
			Standings: world.Standings,
			MaxSpeed:  world.MaxSpeed,
		},
	})
	return nil
}

// Resize implements engine.Renderer
func (r *Renderer) Resize(vp engine.Viewport) {
	r.vp = vp
}

// Close implements engine.Renderer
func (r *Renderer) Close() error {
	r.closed = true
	return nil
}

// Recorder is a Publisher that keeps every message, for tests and replays
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Publish implements Publisher
func (r *Recorder) Publish(msg Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages, optionally filtered by
// kind
func (r *Recorder) Messages(kind string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0, len(r.messages))
	for _, m := range r.messages {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
