package sched

import (
	"sync"
	"time"
)

// Task is a periodic callback scheduled on an EventScheduler. Each run is
// scheduled one period after the previous scheduled instant, so the cadence
// does not drift when the loop runs late.
type Task struct {
	s      EventScheduler
	period time.Duration
	fn     func(*Task)

	mu        sync.Mutex
	next      time.Time
	id        string
	cancelled bool
	runs      uint64
}

// Every schedules fn to run after delay and then every period. fn receives
// the task so it can cancel itself.
func Every(s EventScheduler, delay, period time.Duration, fn func(*Task)) *Task {
	t := &Task{s: s, period: period, fn: fn}
	t.mu.Lock()
	t.next = s.Now().Add(delay)
	t.id = s.Schedule(t.next, t.run)
	t.mu.Unlock()
	return t
}

// After schedules fn to run once after delay. The returned task may be
// cancelled before it fires.
func After(s EventScheduler, delay time.Duration, fn func()) *Task {
	return Every(s, delay, 0, func(t *Task) {
		t.Cancel()
		fn()
	})
}

func (t *Task) run() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.runs++
	t.mu.Unlock()

	t.fn(t)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.period <= 0 {
		return
	}
	t.next = t.next.Add(t.period)
	t.id = t.s.Schedule(t.next, t.run)
}

// Cancel stops the task. It is idempotent and safe to call from within the
// task's own callback; a run that is already queued will not execute.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.s.Cancel(t.id)
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Runs returns how many times the callback has executed.
func (t *Task) Runs() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}
