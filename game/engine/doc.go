// Package engine provides the core race simulation for Circuit Challenge.
//
// The engine package implements:
//   - Track geometry: authored layouts compiled to a cyclic centerline with
//     ordered checkpoints, or a procedurally generated oval
//   - A deterministic physics step for arcade (2D) and chase-camera (3D)
//     driving profiles
//   - Sequential checkpoint and lap tracking
//   - A vehicle registry with insertion-ordered standings
//   - The render-loop lifecycle on top of a pluggable frame scheduler
//   - Race configuration loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for race operations,
// implemented by GameEngine. Step and Evaluate are pure functions over a
// Vehicle; Advance applies them to a whole field. Renderers receive a
// WorldState per frame and never mutate it.
//
// Usage:
//
//	sched := engine.NewManualScheduler()
//	eng, err := engine.NewEngine(engine.NullSurface, engine.Config{
//		Variant:   engine.Variant2D,
//		Scheduler: sched,
//	}, nil, engine.Callbacks{
//		OnLapCompleted: func(id string, lap int) { fmt.Println(id, "lap", lap) },
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eng.AddVehicle("p1", "Ada", "#3b82f6")
//	eng.UpdateVehicle("p1", engine.ControlInput{Accelerate: true})
//	eng.Start()
//	sched.Run(60)
//
// Threading:
//
// A GameEngine is not safe for concurrent use. Host calls must run on the
// scheduler's goroutine (for TickerScheduler, through Post) or before Start.
package engine
