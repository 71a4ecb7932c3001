package core

import "fmt"

// Economy is a team's powerup counter.
type Economy struct {
	amount   int
	onChange subscribers[int]
}

// Add credits n powerups and notifies subscribers with the new total.
func (e *Economy) Add(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: powerups must not be negative, got %d", ErrInvalidArgument, n)
	}
	if n == 0 {
		return nil
	}
	e.amount += n
	e.onChange.emit(e.amount)
	return nil
}

// Amount returns the current total.
func (e *Economy) Amount() int { return e.amount }

// TakeAll returns the current total and resets it to zero in one step.
func (e *Economy) TakeAll() int {
	taken := e.amount
	e.amount = 0
	if taken != 0 {
		e.onChange.emit(0)
	}
	return taken
}

// OnChange subscribes to total changes.
func (e *Economy) OnChange(fn func(amount int)) (unsubscribe func()) {
	return e.onChange.add(fn)
}
