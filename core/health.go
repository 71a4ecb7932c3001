package core

import "fmt"

// HealthChange describes a single application of damage.
type HealthChange struct {
	Amount   int
	Previous int
	Current  int
	Max      int
}

// Health is the shared combat contract of towers and robots. Health may go
// negative; Display clamps it at zero. The only mutator is Apply, apart from
// Reset which restores a fresh life.
type Health struct {
	max     int
	current int
	dead    bool

	onChange subscribers[HealthChange]
	onDeath  subscribers[HealthChange]
}

// NewHealth returns a full health pool. max must be positive.
func NewHealth(max int) (*Health, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: max health must be positive, got %d", ErrInvalidConfiguration, max)
	}
	return &Health{max: max, current: max}, nil
}

// Apply subtracts amount from health. Negative amounts are rejected and zero
// is a no-op. Change subscribers fire on every mutation; death subscribers
// fire once, on the transition to health <= 0.
func (h *Health) Apply(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: damage must not be negative, got %d", ErrInvalidArgument, amount)
	}
	if amount == 0 {
		return nil
	}

	change := HealthChange{Amount: amount, Previous: h.current, Max: h.max}
	h.current -= amount
	change.Current = h.current

	justDied := !h.dead && h.current <= 0
	if justDied {
		h.dead = true
	}

	h.onChange.emit(change)
	if justDied {
		h.onDeath.emit(change)
	}
	return nil
}

// Reset restores full health without notifying subscribers.
func (h *Health) Reset() {
	h.current = h.max
	h.dead = false
}

// Current returns the raw health value, which may be negative.
func (h *Health) Current() int { return h.current }

// Display returns health clamped at zero.
func (h *Health) Display() int {
	if h.current < 0 {
		return 0
	}
	return h.current
}

// Max returns the maximum health.
func (h *Health) Max() int { return h.max }

// Dead reports whether health has reached zero or below.
func (h *Health) Dead() bool { return h.dead }

// OnChange subscribes to every health mutation.
func (h *Health) OnChange(fn func(HealthChange)) (unsubscribe func()) {
	return h.onChange.add(fn)
}

// OnDeath subscribes to the alive to dead transition.
func (h *Health) OnDeath(fn func(HealthChange)) (unsubscribe func()) {
	return h.onDeath.add(fn)
}
