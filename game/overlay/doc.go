// Package overlay implements the checkpoint question overlay.
//
// When a vehicle reaches a checkpoint the overlay may open a timed,
// four-option question for its driver. While the question is open the
// vehicle's throttle is gated off; answering, skipping or timing out
// resumes control. Correct answers add a speed boost and points, wrong
// answers and timeouts cut speed and hold the throttle for a while.
//
// The overlay keeps time in engine frames, so a race replays identically
// regardless of wall-clock jitter. Wire it to an engine by installing it as
// the ControlGate and forwarding the engine callbacks:
//
//	ov := overlay.New(cfg.Rules, cfg.Questions, nil, overlay.Options{})
//	eng, err := engine.NewEngine(surface, engine.Config{Gate: ov, Scheduler: sched}, nil, engine.Callbacks{
//		OnCheckpointReached: func(id, cp string) { ov.CheckpointReached(id, cp) },
//		OnLapCompleted:      ov.LapCompleted,
//		OnFrame:             ov.Tick,
//	})
//	ov.Bind(eng)
package overlay
