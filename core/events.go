package core

// subscribers is an ordered list of callbacks. Callbacks run in registration
// order and may unsubscribe themselves while being notified.
type subscribers[T any] struct {
	next int
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

func (s *subscribers[T]) add(fn func(T)) (unsubscribe func()) {
	s.next++
	id := s.next
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers[T]) emit(v T) {
	if len(s.subs) == 0 {
		return
	}
	snapshot := append([]subscriber[T](nil), s.subs...)
	for _, sub := range snapshot {
		sub.fn(v)
	}
}

func (s *subscribers[T]) len() int { return len(s.subs) }
