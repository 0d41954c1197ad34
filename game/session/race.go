package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/circuit-challenge/game/autopilot"
	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/render/stream"
)

var (
	ErrRaceClosed      = errors.New("race is closed")
	ErrVehicleNotFound = errors.New("vehicle not found")
)

// closeTimeout bounds how long Close waits for the loop to dispose the engine
const closeTimeout = time.Second

// Options configures the races a manager creates
type Options struct {
	// FrameInterval is the wall-clock time between frames. Zero means 60 fps.
	FrameInterval time.Duration
	// StreamEvery publishes every n-th frame to Publisher.
	StreamEvery int
	// Publisher receives frames, tracker events and question traffic. Nil
	// runs races headless.
	Publisher stream.Publisher
	Logger    zerolog.Logger
}

// JoinRequest describes a vehicle joining a race
type JoinRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Bot   bool   `json:"bot,omitempty"`
}

// VehicleStatus is a vehicle with its driver's question state and race stats
type VehicleStatus struct {
	Vehicle    engine.Vehicle  `json:"vehicle"`
	Bot        bool            `json:"bot"`
	Prompt     *overlay.Prompt `json:"prompt,omitempty"`
	Remaining  float64         `json:"remaining,omitempty"` // seconds left on Prompt
	Tally      overlay.Tally   `json:"tally"`
	Accuracy   int             `json:"accuracy"`
	TopSpeed   float64         `json:"top_speed"`
	FinishedAt uint64          `json:"finished_at,omitempty"`
}

// RaceState is a consistent view of a race taken between two frames
type RaceState struct {
	Tick        uint64                `json:"tick"`
	Running     bool                  `json:"running"`
	Variant     engine.Variant        `json:"variant"`
	TotalLaps   int                   `json:"total_laps"`
	Vehicles    []engine.Vehicle      `json:"vehicles"`
	Standings   []engine.Standing     `json:"standings"`
	Checkpoints []engine.Checkpoint   `json:"checkpoints"`
	Track       *engine.TrackGeometry `json:"track,omitempty"`
}

// Race owns one engine and everything attached to it: the question
// overlay, the bot fleet and the frame scheduler. Engine state is only
// touched on the scheduler goroutine; exported methods post work there and
// wait for the result.
type Race struct {
	ID         string
	ConfigName string
	Config     *engine.RaceConfig
	CreatedAt  time.Time

	mu             sync.Mutex
	lastAccessedAt time.Time

	sched *engine.TickerScheduler
	eng   *engine.GameEngine
	ov    *overlay.Overlay
	fleet *autopilot.Fleet
	pub   stream.Publisher
	log   zerolog.Logger

	// loop-owned
	topSpeed   map[string]float64
	finishedAt map[string]uint64
	fps        int

	done      chan struct{}
	closeOnce sync.Once
}

// NewRace builds a stopped race from a race config and adds its bots
func NewRace(id, configName string, cfg *engine.RaceConfig, opts Options) (*Race, error) {
	if cfg == nil {
		return nil, fmt.Errorf("race %s: config is required", id)
	}
	now := time.Now()
	r := &Race{
		ID:             id,
		ConfigName:     configName,
		Config:         cfg,
		CreatedAt:      now,
		lastAccessedAt: now,
		fleet:          autopilot.NewFleet(),
		pub:            opts.Publisher,
		log:            opts.Logger.With().Str("race", id).Logger(),
		topSpeed:       make(map[string]float64),
		finishedAt:     make(map[string]uint64),
		fps:            engine.FramesPerSecond,
		done:           make(chan struct{}),
	}

	r.ov = overlay.New(cfg.Rules, cfg.Questions, nil, overlay.Options{
		FPS:       r.fps,
		OnPresent: r.onPresent,
		OnResolve: r.onResolve,
	})

	surface := engine.NullSurface
	if r.pub != nil {
		surface = stream.NewSurface(id, r.pub, opts.StreamEvery)
	}

	r.sched = engine.NewTickerScheduler(opts.FrameInterval)
	ecfg := cfg.EngineConfig()
	ecfg.Scheduler = r.sched
	ecfg.Input = r.fleet
	ecfg.Gate = r.ov

	eng, err := engine.NewEngine(surface, ecfg, cfg.Layout, engine.Callbacks{
		OnCheckpointReached: r.onCheckpoint,
		OnLapCompleted:      r.onLap,
		OnFrame:             r.onFrame,
		OnRenderError: func(err error) {
			r.log.Warn().Err(err).Msg("render failed")
		},
	})
	if err != nil {
		r.sched.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	r.eng = eng
	r.ov.Bind(eng)
	r.fleet.Bind(eng)

	// The loop has not started, so the engine can be touched directly.
	for i := 1; i <= cfg.Bots; i++ {
		id := fmt.Sprintf("bot-%d", i)
		if _, err := r.addVehicle(JoinRequest{ID: id, Name: fmt.Sprintf("Bot %d", i), Bot: true}); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

// reply carries a result from the loop goroutine back to the caller
type reply[T any] struct {
	val T
	err error
}

// call runs fn on the loop goroutine and waits for its result. A call whose
// context ends before fn starts is abandoned and fn never runs. Once fn has
// started the caller waits for it, so a reported failure never hides an
// applied change.
func call[T any](ctx context.Context, r *Race, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	const (
		pending = iota
		started
		abandoned
	)
	var state atomic.Int32
	result := make(chan reply[T], 1)
	if !r.sched.Post(func() {
		if !state.CompareAndSwap(pending, started) {
			return
		}
		v, err := fn()
		result <- reply[T]{val: v, err: err}
	}) {
		return zero, ErrRaceClosed
	}

	select {
	case res := <-result:
		return res.val, res.err
	case <-r.done:
		return zero, ErrRaceClosed
	case <-ctx.Done():
		if state.CompareAndSwap(pending, abandoned) {
			return zero, ctx.Err()
		}
	}
	select {
	case res := <-result:
		return res.val, res.err
	case <-r.done:
		return zero, ErrRaceClosed
	}
}

func (r *Race) do(ctx context.Context, fn func() error) error {
	_, err := call(ctx, r, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Touch records an access for expiry
func (r *Race) Touch() {
	r.mu.Lock()
	r.lastAccessedAt = time.Now()
	r.mu.Unlock()
}

// LastAccessedAt returns the time of the last access
func (r *Race) LastAccessedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAccessedAt
}

func (r *Race) setLastAccessedAt(t time.Time) {
	r.mu.Lock()
	r.lastAccessedAt = t
	r.mu.Unlock()
}

// Start runs the frame loop
func (r *Race) Start(ctx context.Context) error {
	return r.do(ctx, func() error {
		if err := r.eng.Start(); err != nil {
			return err
		}
		r.publish(stream.KindRace, map[string]any{"running": true})
		r.log.Info().Msg("race started")
		return nil
	})
}

// Stop pauses the frame loop
func (r *Race) Stop(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.eng.Stop()
		r.publish(stream.KindRace, map[string]any{"running": false})
		r.log.Info().Uint64("tick", r.eng.GetTick()).Msg("race stopped")
		return nil
	})
}

// Join adds a vehicle. An empty id gets a generated one.
func (r *Race) Join(ctx context.Context, req JoinRequest) (engine.Vehicle, error) {
	return call(ctx, r, func() (engine.Vehicle, error) {
		return r.addVehicle(req)
	})
}

func (r *Race) addVehicle(req JoinRequest) (engine.Vehicle, error) {
	if limit := r.Config.Rules.MaxParticipants; limit > 0 && len(r.eng.GetVehicles()) >= limit {
		return engine.Vehicle{}, fmt.Errorf("join race %s: %w", r.ID, engine.ErrRaceFull)
	}
	id := req.ID
	if id == "" {
		id = "car-" + randomHex(3)
	}
	name := req.Name
	if name == "" {
		name = id
	}
	v, err := r.eng.AddVehicle(id, name, req.Color)
	if err != nil {
		return engine.Vehicle{}, err
	}
	if req.Bot {
		r.fleet.Assign(id, autopilot.DefaultDriver())
	}
	r.log.Info().Str("vehicle", id).Bool("bot", req.Bot).Msg("vehicle joined")
	return v, nil
}

// Leave removes a vehicle and its question state
func (r *Race) Leave(ctx context.Context, vehicleID string) error {
	return r.do(ctx, func() error {
		if !r.eng.RemoveVehicle(vehicleID) {
			return fmt.Errorf("leave %s: %w", vehicleID, ErrVehicleNotFound)
		}
		r.fleet.Release(vehicleID)
		r.ov.Remove(vehicleID)
		delete(r.topSpeed, vehicleID)
		delete(r.finishedAt, vehicleID)
		return nil
	})
}

// Drive records the latest control input of a human-driven vehicle
func (r *Race) Drive(ctx context.Context, vehicleID string, in engine.ControlInput) (engine.Vehicle, error) {
	return call(ctx, r, func() (engine.Vehicle, error) {
		if !r.eng.UpdateVehicle(vehicleID, in) {
			return engine.Vehicle{}, fmt.Errorf("drive %s: %w", vehicleID, ErrVehicleNotFound)
		}
		v, _ := r.eng.GetVehicle(vehicleID)
		return v, nil
	})
}

// Answer resolves the vehicle's open question
func (r *Race) Answer(ctx context.Context, vehicleID string, index int) (overlay.Result, error) {
	return call(ctx, r, func() (overlay.Result, error) {
		if _, ok := r.eng.GetVehicle(vehicleID); !ok {
			return overlay.Result{}, fmt.Errorf("answer %s: %w", vehicleID, ErrVehicleNotFound)
		}
		return r.ov.Answer(vehicleID, index)
	})
}

// Skip closes the vehicle's open question without reward or penalty
func (r *Race) Skip(ctx context.Context, vehicleID string) (overlay.Result, error) {
	return call(ctx, r, func() (overlay.Result, error) {
		if _, ok := r.eng.GetVehicle(vehicleID); !ok {
			return overlay.Result{}, fmt.Errorf("skip %s: %w", vehicleID, ErrVehicleNotFound)
		}
		return r.ov.Skip(vehicleID)
	})
}

// Vehicle returns a vehicle with its question state
func (r *Race) Vehicle(ctx context.Context, vehicleID string) (VehicleStatus, error) {
	return call(ctx, r, func() (VehicleStatus, error) {
		v, ok := r.eng.GetVehicle(vehicleID)
		if !ok {
			return VehicleStatus{}, fmt.Errorf("vehicle %s: %w", vehicleID, ErrVehicleNotFound)
		}
		return r.status(v), nil
	})
}

// Vehicles returns the status of every vehicle in insertion order
func (r *Race) Vehicles(ctx context.Context) ([]VehicleStatus, error) {
	return call(ctx, r, func() ([]VehicleStatus, error) {
		var out []VehicleStatus
		for _, v := range r.eng.GetVehicles() {
			out = append(out, r.status(v))
		}
		return out, nil
	})
}

func (r *Race) status(v engine.Vehicle) VehicleStatus {
	tally := r.ov.Tally(v.ID)
	st := VehicleStatus{
		Vehicle:    v,
		Bot:        r.fleet.Controls(v.ID),
		Tally:      tally,
		Accuracy:   tally.Accuracy(),
		TopSpeed:   r.topSpeed[v.ID],
		FinishedAt: r.finishedAt[v.ID],
	}
	if p, ok := r.ov.Active(v.ID); ok {
		st.Prompt = &p
		st.Remaining = float64(p.Remaining(r.eng.GetTick())) / float64(r.fps)
	}
	return st
}

// State returns the race as seen between two frames
func (r *Race) State(ctx context.Context) (RaceState, error) {
	return call(ctx, r, func() (RaceState, error) {
		vehicles := r.eng.GetVehicles()
		return RaceState{
			Tick:        r.eng.GetTick(),
			Running:     r.eng.Running(),
			Variant:     r.eng.GetConfig().Variant,
			TotalLaps:   r.eng.GetConfig().TotalLaps,
			Vehicles:    vehicles,
			Standings:   engine.Standings(vehicles),
			Checkpoints: r.eng.GetCheckpoints(),
			Track:       r.eng.GetTrack(),
		}, nil
	})
}

// Persisted captures the race for storage
func (r *Race) Persisted(ctx context.Context) (*PersistedRaceData, error) {
	data := &PersistedRaceData{
		ID:             r.ID,
		ConfigName:     r.ConfigName,
		CreatedAt:      r.CreatedAt,
		LastAccessedAt: r.LastAccessedAt(),
	}
	snap, err := call(ctx, r, func() (engine.Snapshot, error) {
		return r.eng.Snapshot(), nil
	})
	if err != nil {
		return nil, err
	}
	data.Snapshot = snap
	for _, v := range snap.Vehicles {
		if r.fleet.Controls(v.ID) {
			data.Bots = append(data.Bots, v.ID)
		}
	}
	return data, nil
}

// restore replaces the registry of a race that has not been started
func (r *Race) restore(data *PersistedRaceData) error {
	for _, v := range r.eng.GetVehicles() {
		r.fleet.Release(v.ID)
	}
	if err := r.eng.Restore(data.Snapshot); err != nil {
		return err
	}
	for _, id := range data.Bots {
		if _, ok := r.eng.GetVehicle(id); ok {
			r.fleet.Assign(id, autopilot.DefaultDriver())
		}
	}
	r.CreatedAt = data.CreatedAt
	r.setLastAccessedAt(data.LastAccessedAt)
	return nil
}

// Close disposes the engine and stops the scheduler goroutine. It is safe
// to call more than once.
func (r *Race) Close() {
	r.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := r.do(ctx, func() error {
			r.eng.Dispose()
			return nil
		}); err != nil {
			r.log.Warn().Err(err).Msg("dispose did not complete")
		}
		close(r.done)
		r.sched.Close()
		r.log.Info().Msg("race closed")
	})
}

func (r *Race) onCheckpoint(vehicleID, checkpointID string) {
	r.log.Debug().Str("vehicle", vehicleID).Str("checkpoint", checkpointID).Msg("checkpoint reached")
	r.ov.CheckpointReached(vehicleID, checkpointID)
}

func (r *Race) onLap(vehicleID string, lap int) {
	r.ov.LapCompleted(vehicleID, lap)
	if v, ok := r.eng.GetVehicle(vehicleID); ok && v.Finished {
		r.finishedAt[vehicleID] = r.eng.GetTick()
		r.log.Info().Str("vehicle", vehicleID).Int("lap", lap).Msg("vehicle finished")
		return
	}
	r.log.Debug().Str("vehicle", vehicleID).Int("lap", lap).Msg("lap completed")
}

func (r *Race) onFrame(tick uint64) {
	r.ov.Tick(tick)
	for _, v := range r.eng.GetVehicles() {
		if speed := v.Velocity; speed > r.topSpeed[v.ID] {
			r.topSpeed[v.ID] = speed
		}
	}
}

func (r *Race) onPresent(p overlay.Prompt) {
	r.publish(stream.KindQuestion, p)
}

func (r *Race) onResolve(res overlay.Result) {
	r.log.Debug().Str("vehicle", res.VehicleID).Str("outcome", string(res.Outcome)).Msg("question resolved")
	r.publish(stream.KindQuestionResult, res)
}

func (r *Race) publish(kind string, data any) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(stream.Message{RaceID: r.ID, Kind: kind, Tick: r.eng.GetTick(), Data: data})
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
