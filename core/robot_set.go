package core

// robotSet is an insertion-ordered set of robots keyed by ID.
type robotSet struct {
	byID  map[string]*Robot
	order []string
}

func newRobotSet() *robotSet {
	return &robotSet{byID: make(map[string]*Robot)}
}

func (s *robotSet) add(r *Robot) {
	if _, ok := s.byID[r.id]; ok {
		return
	}
	s.byID[r.id] = r
	s.order = append(s.order, r.id)
}

// remove reports whether the robot was present.
func (s *robotSet) remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *robotSet) get(id string) (*Robot, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// list returns a snapshot in insertion order.
func (s *robotSet) list() []*Robot {
	out := make([]*Robot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *robotSet) len() int { return len(s.order) }
