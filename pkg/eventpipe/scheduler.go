package eventpipe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// scheduler triggers a delivery cycle every interval. A tick only submits
// work to the writer; the next tick is armed after that cycle finishes, so
// ticks never overlap.
type scheduler struct {
	interval time.Duration
	submit   func(fn func(context.Context)) bool
	cycle    func(context.Context)

	running atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

func newScheduler(interval time.Duration, submit func(fn func(context.Context)) bool, cycle func(context.Context)) *scheduler {
	return &scheduler{interval: interval, submit: submit, cycle: cycle}
}

// start arms the timer. It is a no-op while running.
func (s *scheduler) start() {
	if s.running.Swap(true) {
		return
	}
	s.arm()
}

// stop clears the running flag. A cycle already in flight completes, and
// no further tick is armed after it.
func (s *scheduler) stop() {
	s.running.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// isRunning reports whether ticks are being armed.
func (s *scheduler) isRunning() bool {
	return s.running.Load()
}

func (s *scheduler) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	s.timer = time.AfterFunc(s.interval, s.tick)
}

func (s *scheduler) tick() {
	submitted := s.submit(func(ctx context.Context) {
		s.cycle(ctx)
		if s.running.Load() {
			s.arm()
		}
	})
	if !submitted {
		s.running.Store(false)
	}
}
