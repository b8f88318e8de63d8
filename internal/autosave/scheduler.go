package autosave

import (
	"sync"
	"time"
)

// Scheduler coalesces a high-frequency stream of content changes into a
// bounded-rate stream of save dispatches. Every change marks the session
// dirty and resets the debounce timer; when the timer fires with the flag
// set, exactly one dispatch runs. At most one dispatch is in flight at a
// time; a fire during flight is deferred and runs immediately after the
// in-flight one resolves, so the last edit is never dropped.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	dispatch func()
	timer    *time.Timer
	dirty    bool
	inflight bool
	pending  bool
	stopped  bool
}

func NewScheduler(interval time.Duration, dispatch func()) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Scheduler{
		interval: interval,
		dispatch: dispatch,
	}
}

// Touch records a content change: mark dirty, restart the debounce window.
// Unchanged or empty content goes through the same path as any other edit.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval, s.fire)
}

// FireNow bypasses the debounce window and dispatches as soon as the
// in-flight slot is free. Used by the explicit retry affordance.
func (s *Scheduler) FireNow() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	go s.fire()
}

func (s *Scheduler) fire() {
	for {
		s.mu.Lock()
		if s.stopped || !s.dirty {
			s.mu.Unlock()
			return
		}
		if s.inflight {
			// dirty stays set; the resolving dispatch loops back here.
			s.pending = true
			s.mu.Unlock()
			return
		}
		s.dirty = false
		s.inflight = true
		s.mu.Unlock()

		s.dispatch()

		s.mu.Lock()
		s.inflight = false
		again := s.pending
		s.pending = false
		s.mu.Unlock()
		if !again {
			return
		}
	}
}

// StopAndDrain cancels the debounce timer and permanently stops the
// scheduler. It returns true when a dirty edit was still owed a dispatch
// and no dispatch was in flight; the caller then owns the final best-effort
// flush.
func (s *Scheduler) StopAndDrain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	owed := s.dirty && !s.inflight
	s.dirty = false
	s.pending = false
	return owed
}
