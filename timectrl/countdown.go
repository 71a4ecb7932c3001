package timectrl

// Countdown is the game clock: it counts whole seconds down to zero. The
// owner calls Tick once per simulated second.
//
// Countdown is not safe for concurrent use; it lives on the game loop.
type Countdown struct {
	remaining int
	running   bool

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdown returns a stopped countdown. onTick receives the remaining
// seconds after each decrement, clamped at zero. onExpire fires once when the
// count reaches zero.
func NewCountdown(onTick func(int), onExpire func()) *Countdown {
	return &Countdown{onTick: onTick, onExpire: onExpire}
}

// Start arms the countdown with n seconds.
func (c *Countdown) Start(n int) {
	c.remaining = n
	c.running = true
}

// Running reports whether the countdown is armed.
func (c *Countdown) Running() bool { return c.running }

// Remaining returns the seconds left, never negative.
func (c *Countdown) Remaining() int {
	if c.remaining < 0 {
		return 0
	}
	return c.remaining
}

// Tick decrements the countdown. When it reaches zero or below the countdown
// stops itself and fires expiry. Ticks on a stopped countdown are ignored.
func (c *Countdown) Tick() {
	if !c.running {
		return
	}
	c.remaining--
	if c.onTick != nil {
		c.onTick(c.Remaining())
	}
	if c.remaining <= 0 {
		c.running = false
		if c.onExpire != nil {
			c.onExpire()
		}
	}
}

// ForceExpire sets the remaining time to one second so the next Tick expires.
// It does nothing on a stopped countdown.
func (c *Countdown) ForceExpire() {
	if c.running {
		c.remaining = 1
	}
}

// Stop disarms the countdown without firing expiry.
func (c *Countdown) Stop() {
	c.running = false
}
