package sched

import (
	"fmt"
	"sync"
	"time"
)

// FakeEventScheduler is a test implementation of EventScheduler that maintains
// its own internal notion of simulation time and allows tests to advance time
// explicitly.
//
// Tests can call AdvanceTo(t) or Advance(d) to move fake time forward and
// execute due events deterministically.
type FakeEventScheduler struct {
	mu      sync.Mutex
	now     time.Time
	counter uint64

	// Events ordered by 'when' (earliest first).
	events []*fakeScheduledEvent
	index  map[string]*fakeScheduledEvent
}

type fakeScheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// NewFakeEventScheduler creates a new fake event scheduler starting at the given time.
func NewFakeEventScheduler(start time.Time) *FakeEventScheduler {
	return &FakeEventScheduler{
		now:    start,
		events: make([]*fakeScheduledEvent, 0),
		index:  make(map[string]*fakeScheduledEvent),
	}
}

// Now returns the current fake simulation time.
func (s *FakeEventScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule registers a callback to run at the specified simulation time.
func (s *FakeEventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("fake-ev-%d", s.counter)

	ev := &fakeScheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}

	inserted := false
	for i, existing := range s.events {
		if at.Before(existing.when) {
			s.events = append(s.events[:i], append([]*fakeScheduledEvent{ev}, s.events[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		s.events = append(s.events, ev)
	}

	s.index[id] = ev
	return id
}

// Cancel attempts to cancel a previously scheduled event.
func (s *FakeEventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
}

// Pending returns the number of live scheduled events.
func (s *FakeEventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// RunDue executes all events whose scheduled time is <= now.
func (s *FakeEventScheduler) RunDue() {
	for {
		s.mu.Lock()

		if len(s.events) == 0 {
			s.mu.Unlock()
			return
		}

		ev := s.events[0]
		if ev.when.After(s.now) {
			s.mu.Unlock()
			return
		}
		s.events = s.events[1:]

		if ev.cancelled {
			s.mu.Unlock()
			continue
		}
		delete(s.index, ev.id)

		callback := ev.f
		s.mu.Unlock()

		if callback != nil {
			callback()
		}
	}
}

// AdvanceTo sets the fake simulation time to the given time and executes all due events.
// Time is kept monotonic (does not go backwards).
//
// Events are run at their own scheduled instant: fake time steps through each
// due event in order, so a callback that reschedules itself within the window
// runs again before AdvanceTo returns.
func (s *FakeEventScheduler) AdvanceTo(t time.Time) {
	s.mu.Lock()
	if t.Before(s.now) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next, ok := s.nextLiveLocked()
		if !ok || next.After(t) {
			s.now = t
			s.mu.Unlock()
			s.RunDue()
			return
		}
		if next.After(s.now) {
			s.now = next
		}
		s.mu.Unlock()
		s.RunDue()
	}
}

// Advance moves fake time forward by d. See AdvanceTo.
func (s *FakeEventScheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.Now().Add(d))
}

func (s *FakeEventScheduler) nextLiveLocked() (time.Time, bool) {
	for _, ev := range s.events {
		if !ev.cancelled {
			return ev.when, true
		}
	}
	return time.Time{}, false
}
