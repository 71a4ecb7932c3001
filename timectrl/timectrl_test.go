package timectrl

import (
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStepNotifiesListeners(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 50*time.Millisecond, Accelerated)

	var seen []time.Time
	tc.AddListener(func(now time.Time) {
		if !now.Equal(tc.Now()) {
			t.Fatalf("listener saw %v but Now() = %v", now, tc.Now())
		}
		seen = append(seen, now)
	})

	for i := 0; i < 3; i++ {
		tc.Step()
	}

	if len(seen) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(seen))
	}
	expected := start.Add(150 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if tc.Steps() != 3 {
		t.Fatalf("Steps() = %d, want 3", tc.Steps())
	}
}

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	var ticks []int
	expired := 0
	c := NewCountdown(func(r int) { ticks = append(ticks, r) }, func() { expired++ })
	c.Start(3)

	for i := 0; i < 6; i++ {
		c.Tick()
	}

	want := []int{2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", ticks, want)
		}
	}
	if expired != 1 {
		t.Fatalf("expected one expiry, got %d", expired)
	}
	if c.Running() {
		t.Fatalf("countdown should stop itself after expiry")
	}
}

func TestCountdownForceExpireTakesOneMoreTick(t *testing.T) {
	expired := 0
	c := NewCountdown(nil, func() { expired++ })
	c.Start(100)
	c.Tick()

	c.ForceExpire()
	if expired != 0 {
		t.Fatalf("ForceExpire must not expire synchronously")
	}
	if c.Remaining() != 1 {
		t.Fatalf("Remaining() = %d, want 1", c.Remaining())
	}
	c.Tick()
	if expired != 1 {
		t.Fatalf("expected expiry on the next tick, got %d", expired)
	}
}

func TestCountdownNonPositiveStartExpiresOnFirstTick(t *testing.T) {
	var last = -1
	expired := 0
	c := NewCountdown(func(r int) { last = r }, func() { expired++ })
	c.Start(0)
	c.Tick()
	if last != 0 {
		t.Fatalf("listeners must never see negative time, got %d", last)
	}
	if expired != 1 {
		t.Fatalf("expected expiry, got %d", expired)
	}
}
