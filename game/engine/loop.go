package engine

// Start begins the frame chain. Calling it while running is a no-op.
func (e *GameEngine) Start() error {
	if e.disposed {
		return ErrDisposed
	}
	if e.running {
		return nil
	}
	e.running = true
	// A frame in progress re-arms the chain itself when it returns.
	if !e.inFrame {
		e.handle = e.cfg.Scheduler.RequestFrame(e.frame)
	}
	return nil
}

// Stop cancels the pending frame. Calling it while stopped is a no-op.
func (e *GameEngine) Stop() {
	if !e.running {
		return
	}
	e.running = false
	if e.handle != 0 {
		e.cfg.Scheduler.CancelFrame(e.handle)
		e.handle = 0
	}
}

// Running reports whether the frame chain is active
func (e *GameEngine) Running() bool {
	return e.running
}

// Disposed reports whether Dispose has been called
func (e *GameEngine) Disposed() bool {
	return e.disposed
}

// Dispose stops the loop and releases the registry, the track and the
// renderer. The engine cannot be restarted.
func (e *GameEngine) Dispose() {
	if e.disposed {
		return
	}
	e.Stop()
	e.disposed = true
	e.vehicles = make(map[string]*Vehicle)
	e.order = nil
	e.inputs = make(map[string]ControlInput)
	e.track = nil
	if e.renderer != nil {
		if err := e.renderer.Close(); err != nil && e.callbacks.OnRenderError != nil {
			e.callbacks.OnRenderError(err)
		}
		e.renderer = nil
	}
}

// Resize forwards a new viewport to the renderer
func (e *GameEngine) Resize(vp Viewport) {
	if e.disposed || vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	e.cfg.Viewport = vp
	e.renderer.Resize(vp)
}

func (e *GameEngine) frame() {
	e.handle = 0
	if !e.running || e.disposed {
		return
	}

	e.inFrame = true
	e.Tick()
	e.inFrame = false

	if e.running && !e.disposed {
		e.handle = e.cfg.Scheduler.RequestFrame(e.frame)
	}
}
