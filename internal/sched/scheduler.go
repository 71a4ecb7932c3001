package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/siege-simulator/timectrl"
)

// EventScheduler schedules callbacks to run at specific simulation times
// based on a SimClock implementation. Tower and robot AI, the game clock and
// the powerup spawner all run as scheduled callbacks.
//
// The game loop will:
// - Advance the simulation time using the time controller.
// - Call RunDue() on the EventScheduler after each time advance.
type EventScheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque event ID that can be used to cancel the event.
	Schedule(at time.Time, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled event.
	// It is a no-op if the ID is unknown or the event already ran.
	Cancel(id string)

	// Now returns the current simulation time, usually delegated to the underlying SimClock.
	Now() time.Time

	// RunDue executes all events whose scheduled time is <= Now().
	// Events due at the same instant run in the order they were scheduled.
	RunDue()
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// eventScheduler is a concrete implementation of EventScheduler that uses SimClock
// to determine current simulation time and stores events ordered by scheduled time.
type eventScheduler struct {
	clock timectrl.SimClock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // ordered by 'when', then insertion
	index   map[string]*scheduledEvent
}

// NewEventScheduler creates a new event scheduler backed by the given SimClock.
func NewEventScheduler(clock timectrl.SimClock) EventScheduler {
	return &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
}

// Schedule registers a callback to run at the specified simulation time.
func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}
	s.addEventLocked(ev)
	s.index[id] = ev

	return id
}

// addEventLocked inserts an event after every event due at or before it.
// Caller must hold s.mu lock.
func (s *eventScheduler) addEventLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})

	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

// Cancel attempts to cancel a previously scheduled event.
func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

// Now returns the current simulation time from the underlying clock.
func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

// Pending returns the number of live scheduled events.
func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// popNextLocked removes and returns the next due, non-cancelled event.
// Caller must hold s.mu lock.
func (s *eventScheduler) popNextLocked() *scheduledEvent {
	now := s.clock.Now()
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		s.events = s.events[1:]
		return ev
	}
	return nil
}

// RunDue executes all events whose scheduled time is <= Now().
// Callbacks may schedule further events; those run in the same call if due.
func (s *eventScheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.popNextLocked()
		if ev == nil {
			s.mu.Unlock()
			return
		}
		delete(s.index, ev.id)
		s.mu.Unlock()

		// Execute callback outside the lock to allow re-entrancy.
		if ev.f != nil {
			ev.f()
		}
	}
}

// Pending reports the number of live events when s exposes it, or -1.
func Pending(s EventScheduler) int {
	if p, ok := s.(interface{ Pending() int }); ok {
		return p.Pending()
	}
	return -1
}
