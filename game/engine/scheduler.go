package engine

import (
	"sync"
	"time"
)

// FrameID identifies a pending frame request. Zero is never issued.
type FrameID uint64

// Scheduler delivers frame callbacks. Implementations must run callbacks
// one at a time on a single goroutine.
type Scheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// ManualScheduler runs frames only when told to. It holds at most one
// pending request per RequestFrame call and is meant for tests and
// offline simulation.
type ManualScheduler struct {
	next    FrameID
	pending map[FrameID]func()
	order   []FrameID
}

// NewManualScheduler creates an idle manual scheduler
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[FrameID]func())}
}

// RequestFrame queues fn for the next Step
func (s *ManualScheduler) RequestFrame(fn func()) FrameID {
	s.next++
	s.pending[s.next] = fn
	s.order = append(s.order, s.next)
	return s.next
}

// CancelFrame drops a pending request
func (s *ManualScheduler) CancelFrame(id FrameID) {
	delete(s.pending, id)
}

// Pending returns the number of queued frame requests
func (s *ManualScheduler) Pending() int {
	return len(s.pending)
}

// Step runs every request queued before the call. Requests made by those
// callbacks wait for the next Step. It returns the number of callbacks run.
func (s *ManualScheduler) Step() int {
	order := s.order
	s.order = nil
	ran := 0
	for _, id := range order {
		fn, ok := s.pending[id]
		if !ok {
			continue
		}
		delete(s.pending, id)
		fn()
		ran++
	}
	return ran
}

// Run steps n times
func (s *ManualScheduler) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// FrameScheduler is a pull-driven scheduler: a host frame loop (a game
// window's update callback) calls RunFrame once per display frame.
type FrameScheduler struct {
	ManualScheduler
}

// NewFrameScheduler creates a pull-driven scheduler
func NewFrameScheduler() *FrameScheduler {
	return &FrameScheduler{ManualScheduler: *NewManualScheduler()}
}

// RunFrame runs the frame requested during the previous display frame
func (s *FrameScheduler) RunFrame() {
	s.Step()
}

// TickerScheduler drives frames from a time.Ticker on its own goroutine.
// Post queues work that must run on that goroutine, between frames.
type TickerScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]func()
	posted  []func()
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewTickerScheduler starts a scheduler firing every interval
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = time.Second / FramesPerSecond
	}
	s := &TickerScheduler{
		interval: interval,
		pending:  make(map[FrameID]func()),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// RequestFrame schedules fn for the next tick
func (s *TickerScheduler) RequestFrame(fn func()) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending[s.next] = fn
	return s.next
}

// CancelFrame drops a pending request
func (s *TickerScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Post runs fn on the scheduler goroutine as soon as possible. It returns
// false once the scheduler has been closed.
func (s *TickerScheduler) Post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops the ticker goroutine. Pending frames are discarded.
func (s *TickerScheduler) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *TickerScheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.drainPosted()
		case <-ticker.C:
			s.drainPosted()
			s.mu.Lock()
			frames := s.pending
			s.pending = make(map[FrameID]func())
			s.mu.Unlock()
			for _, fn := range frames {
				fn()
			}
		}
	}
}

func (s *TickerScheduler) drainPosted() {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range posted {
		fn()
	}
}
