// Package session runs races.
//
// A Race owns one engine together with its question overlay, its bot fleet
// and a TickerScheduler. Engine state belongs to the scheduler goroutine:
// every exported Race method posts a closure to it and waits for the result,
// or for the caller's context to end. Callbacks fired inside a frame run on
// the same goroutine, so the overlay and the race stats need no locking.
//
// Manager keeps races by case-insensitive 4-character ID, reloads persisted
// races on demand and closes races that expire.
//
// Usage:
//
//	manager := session.NewManager(session.Options{Publisher: hub, Logger: log})
//
//	race, err := manager.Create("", "default", engine.DefaultRaceConfig())
//	if err != nil {
//		log.Fatal().Err(err).Send()
//	}
//	car, err := race.Join(ctx, session.JoinRequest{Name: "Ada"})
//	race.Start(ctx)
//	race.Drive(ctx, car.ID, engine.ControlInput{Accelerate: true})
//
// Persistence:
//
// FilePersistence stores one JSON snapshot per race. Restored races start
// stopped; open questions are not persisted.
package session
