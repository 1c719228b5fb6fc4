package tracker

import (
	"sync"
	"time"
)

// Handle identifies a scheduled one-shot timer so it can be cancelled.
// It mirrors the role QuantaraX's PriorityScheduler closures play, but
// for deadline-based (not priority-based) dispatch.
type Handle struct {
	timer *time.Timer
}

// Scheduler schedules and cancels one-shot callbacks. The Tracker stores
// Handles rather than raw closures so teardown is deterministic.
type Scheduler struct {
	mu     sync.Mutex
	closed bool
}

// NewScheduler constructs a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// ScheduleOnce arms fn to run after d elapses. Returns a Handle usable
// with Cancel. If the Scheduler has been closed, fn never fires.
func (s *Scheduler) ScheduleOnce(d time.Duration, fn func()) *Handle {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return &Handle{}
	}
	return &Handle{timer: time.AfterFunc(d, fn)}
}

// Cancel stops a previously scheduled callback. Safe to call on a nil or
// already-fired Handle.
func (s *Scheduler) Cancel(h *Handle) {
	if h == nil || h.timer == nil {
		return
	}
	h.timer.Stop()
}

// Close marks the Scheduler closed; subsequent ScheduleOnce calls are
// no-ops. Already-armed timers are not retroactively stopped — callers
// are expected to Cancel them individually (the Tracker does this).
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
