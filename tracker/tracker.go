// Package tracker implements the request tracker (C6): the sender-side
// registry of outstanding REQ handles, their ACK/timeout/retry timers, and
// exactly-once resolution.
package tracker

import (
	"sync"
	"time"
)

// OnResolve is invoked exactly once when a handle resolves, either via its
// matching ACK/RES or via InvokeAndRemove. value is nil for an ACK
// resolution.
type OnResolve func(value any)

// OnTimeout is invoked when a handle's timeout timer expires before it
// resolves.
type OnTimeout func()

// handle is the sender-side Request Handle.
type handle struct {
	onResolve   OnResolve
	onTimeout   OnTimeout
	ackReceived bool
	retryCount  int
	createdAt   time.Time

	timeoutHandle *Handle
	retryHandle   *Handle
}

// Tracker owns the map of outstanding Request Handles. All
// mutation happens under a single mutex; callbacks are invoked outside
// the lock to avoid reentrancy hazards.
type Tracker struct {
	mu        sync.Mutex
	handles   map[string]*handle
	scheduler *Scheduler
	onPanic   func(id string, r any)
	nowFunc   func() time.Time
}

// NewTracker constructs a Tracker over the given Scheduler. onPanic, if
// non-nil, is invoked when a resolve/timeout callback panics — the
// Go analogue of "callback exceptions are caught and logged".
func NewTracker(scheduler *Scheduler, onPanic func(id string, r any)) *Tracker {
	return &Tracker{
		handles:   make(map[string]*handle),
		scheduler: scheduler,
		onPanic:   onPanic,
		nowFunc:   time.Now,
	}
}

// Register stores a new Request Handle for id and arms a one-shot timeout
// timer that, on expiry, removes the handle and invokes onTimeout.
func (t *Tracker) Register(id string, onResolve OnResolve, onTimeout OnTimeout, timeout time.Duration) {
	t.mu.Lock()
	h := &handle{
		onResolve: onResolve,
		onTimeout: onTimeout,
		createdAt: t.nowFunc(),
	}
	t.handles[id] = h
	t.mu.Unlock()

	h.timeoutHandle = t.scheduler.ScheduleOnce(timeout, func() {
		t.mu.Lock()
		cur, ok := t.handles[id]
		if !ok || cur != h {
			t.mu.Unlock()
			return
		}
		delete(t.handles, id)
		t.scheduler.Cancel(h.retryHandle)
		t.mu.Unlock()
		t.safeCall(id, func() {
			if onTimeout != nil {
				onTimeout()
			}
		})
	})
}

// SetRetryTimer replaces any previous retry timer for id. Returns false if
// id is unknown.
func (t *Tracker) SetRetryTimer(id string, h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.handles[id]
	if !ok {
		return false
	}
	t.scheduler.Cancel(cur.retryHandle)
	cur.retryHandle = h
	return true
}

// IncrementRetry bumps id's retry counter and returns the new value. ok
// is false if id is unknown.
func (t *Tracker) IncrementRetry(id string) (count int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, exists := t.handles[id]
	if !exists {
		return 0, false
	}
	h.retryCount++
	return h.retryCount, true
}

// MarkAcked flips ack_received for id. Returns false if id is
// unknown.
func (t *Tracker) MarkAcked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if !ok {
		return false
	}
	h.ackReceived = true
	return true
}

// State is a diagnostic snapshot of a handle's mutable fields, used by
// the retry scheduler in engine to decide whether to keep retrying.
type State struct {
	AckReceived bool
	RetryCount  int
}

// State returns id's current state. ok is false if id is unknown.
func (t *Tracker) State(id string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if !ok {
		return State{}, false
	}
	return State{AckReceived: h.ackReceived, RetryCount: h.retryCount}, true
}

// InvokeAndRemove clears both timers for id and calls onResolve(value)
// exactly once. Returns false if id was already resolved/unknown.
func (t *Tracker) InvokeAndRemove(id string, value any) bool {
	t.mu.Lock()
	h, ok := t.handles[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.handles, id)
	t.scheduler.Cancel(h.timeoutHandle)
	t.scheduler.Cancel(h.retryHandle)
	t.mu.Unlock()

	t.safeCall(id, func() {
		if h.onResolve != nil {
			h.onResolve(value)
		}
	})
	return true
}

// CleanupOld removes handles whose createdAt exceeds maxAge, invoking no
// callbacks.
func (t *Tracker) CleanupOld(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFunc()
	count := 0
	for id, h := range t.handles {
		if now.Sub(h.createdAt) > maxAge {
			t.scheduler.Cancel(h.timeoutHandle)
			t.scheduler.Cancel(h.retryHandle)
			delete(t.handles, id)
			count++
		}
	}
	return count
}

// Clear removes every handle without invoking callbacks.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, h := range t.handles {
		t.scheduler.Cancel(h.timeoutHandle)
		t.scheduler.Cancel(h.retryHandle)
		delete(t.handles, id)
	}
}

// Len reports the number of outstanding handles (diagnostics).
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

func (t *Tracker) safeCall(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil && t.onPanic != nil {
			t.onPanic(id, r)
		}
	}()
	fn()
}
