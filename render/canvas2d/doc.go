// Package canvas2d paints races with ebiten.
//
// Frames are planned into a DisplayList of fills, lines, circles and text,
// then painted by Paint. Planning is pure so layouts can be checked
// without a window. Renderer plans top-down frames straight from the
// engine; ScenePresenter plans the chase-camera frames of scene3d.
//
// Game ties an engine.FrameScheduler to ebiten's update loop so that one
// engine frame runs per display frame:
//
//	sched := engine.NewFrameScheduler()
//	r := canvas2d.New()
//	eng, _ := engine.NewEngine(r.Surface(), engine.Config{Scheduler: sched, Input: canvas2d.NewKeyboard("me")}, nil, engine.Callbacks{})
//	eng.Start()
//	canvas2d.NewGame(sched, vp, r).Run("Circuit Challenge")
package canvas2d
