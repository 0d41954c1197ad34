package engine

import (
	"errors"
	"testing"
	"time"
)

func TestStartIsIdempotent(t *testing.T) {
	e, sched, _ := newTestEngine(t, Config{}, Callbacks{})

	e.Start()
	e.Start()
	e.Start()
	if got := sched.Pending(); got != 1 {
		t.Fatalf("Expected exactly one pending frame, got %d", got)
	}

	sched.Run(10)
	if e.GetTick() != 10 {
		t.Errorf("Expected one frame per scheduler step, got %d frames", e.GetTick())
	}
	if got := sched.Pending(); got != 1 {
		t.Errorf("Expected a single frame chain, got %d pending", got)
	}
}

func TestStopCancelsPendingFrame(t *testing.T) {
	e, sched, _ := newTestEngine(t, Config{}, Callbacks{})
	e.Start()
	sched.Run(3)

	e.Stop()
	e.Stop()
	if e.Running() {
		t.Error("Expected engine to be stopped")
	}
	if got := sched.Pending(); got != 0 {
		t.Errorf("Expected no pending frames after Stop, got %d", got)
	}

	sched.Run(5)
	if e.GetTick() != 3 {
		t.Errorf("Expected no frames while stopped, got tick %d", e.GetTick())
	}

	e.Start()
	sched.Run(2)
	if e.GetTick() != 5 {
		t.Errorf("Expected the loop to resume, got tick %d", e.GetTick())
	}
}

func TestStopFromCallback(t *testing.T) {
	var e *GameEngine
	e, sched, _ := newTestEngine(t, Config{}, Callbacks{
		OnFrame: func(tick uint64) {
			if tick == 3 {
				e.Stop()
			}
		},
	})
	e.Start()
	sched.Run(10)

	if e.GetTick() != 3 {
		t.Errorf("Expected the loop to stop on frame 3, got %d", e.GetTick())
	}
	if sched.Pending() != 0 {
		t.Errorf("Expected no pending frames, got %d", sched.Pending())
	}
}

func TestRestartFromCallbackKeepsSingleChain(t *testing.T) {
	var e *GameEngine
	e, sched, _ := newTestEngine(t, Config{}, Callbacks{
		OnFrame: func(tick uint64) {
			if tick == 2 {
				e.Stop()
				e.Start()
			}
		},
	})
	e.Start()
	sched.Run(5)

	if sched.Pending() != 1 {
		t.Errorf("Expected one pending frame, got %d", sched.Pending())
	}
	if e.GetTick() != 5 {
		t.Errorf("Expected 5 frames, got %d", e.GetTick())
	}
}

func TestDisposeIsTerminal(t *testing.T) {
	e, sched, r := newTestEngine(t, Config{}, Callbacks{})
	e.AddVehicle("p1", "Ada", "")
	e.Start()
	sched.Run(2)

	e.Dispose()
	e.Dispose()

	if r.closed != 1 {
		t.Errorf("Expected renderer closed once, got %d", r.closed)
	}
	if e.Running() || !e.Disposed() {
		t.Error("Expected a disposed, stopped engine")
	}
	if err := e.Start(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Expected ErrDisposed from Start, got %v", err)
	}
	if _, err := e.AddVehicle("p2", "", ""); !errors.Is(err, ErrDisposed) {
		t.Errorf("Expected ErrDisposed from AddVehicle, got %v", err)
	}
	if len(e.GetVehicles()) != 0 || len(e.GetCheckpoints()) != 0 || e.GetTrack() != nil {
		t.Error("Expected registry and track to be released")
	}
	if events := e.Tick(); events != nil {
		t.Errorf("Expected no simulation after dispose, got %+v", events)
	}
	sched.Run(3)
	if len(r.frames) != 2 {
		t.Errorf("Expected no frames after dispose, got %d", len(r.frames))
	}
}

func TestDisposeFromCallback(t *testing.T) {
	var e *GameEngine
	laps := 0
	profile := Arcade2D(Size{})
	e, sched, r := newTestEngine(t, Config{Track: lineTrack(), Profile: &profile}, Callbacks{
		OnCheckpointReached: func(string, string) { e.Dispose() },
		OnLapCompleted:      func(string, int) { laps++ },
	})
	e.AddVehicle("p1", "", "")
	e.UpdateVehicle("p1", ControlInput{Accelerate: true})
	e.Start()
	sched.Run(100)

	if !e.Disposed() {
		t.Fatal("Expected the engine to be disposed")
	}
	if laps != 0 {
		t.Errorf("Expected no callbacks after dispose, got %d laps", laps)
	}
	if r.frames[len(r.frames)-1].Tick >= e.GetTick() {
		t.Error("Expected the disposing frame not to be drawn")
	}
}

func TestResize(t *testing.T) {
	e, _, r := newTestEngine(t, Config{}, Callbacks{})
	e.Resize(Viewport{Width: 1024, Height: 768})
	e.Resize(Viewport{Width: 0, Height: 768})
	if len(r.resized) != 1 || r.resized[0].Width != 1024 {
		t.Errorf("Expected one valid resize, got %+v", r.resized)
	}
}

func TestTickerSchedulerDrivesEngine(t *testing.T) {
	sched := NewTickerScheduler(time.Millisecond)
	defer sched.Close()

	frames := make(chan uint64, 64)
	var e *GameEngine
	e, err := NewEngine(NullSurface, Config{Scheduler: sched}, nil, Callbacks{
		OnFrame: func(tick uint64) {
			select {
			case frames <- tick:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	started := make(chan error, 1)
	sched.Post(func() { started <- e.Start() })
	if err := <-started; err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for seen := 0; seen < 5; {
		select {
		case <-frames:
			seen++
		case <-deadline:
			t.Fatal("Timed out waiting for frames")
		}
	}

	stopped := make(chan uint64, 1)
	sched.Post(func() {
		e.Stop()
		stopped <- e.GetTick()
	})
	tick := <-stopped
	time.Sleep(20 * time.Millisecond)

	check := make(chan uint64, 1)
	sched.Post(func() { check <- e.GetTick() })
	if got := <-check; got != tick {
		t.Errorf("Expected no frames after Stop, tick moved from %d to %d", tick, got)
	}
}

func TestTickerSchedulerPostAfterClose(t *testing.T) {
	sched := NewTickerScheduler(time.Millisecond)
	sched.Close()
	sched.Close()
	if sched.Post(func() {}) {
		t.Error("Expected Post to fail on a closed scheduler")
	}
}
