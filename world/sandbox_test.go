package world

import (
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/model"
)

func loc(x, y, z float64) model.Location {
	return model.Location{World: "arena", X: x, Y: y, Z: z}
}

func collect(s *Sandbox) *[]Event {
	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

func TestSandboxPlayers(t *testing.T) {
	s := NewSandbox(DefaultConfig())
	alice, err := s.AddPlayer("alice", loc(0, 0, 0))
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if _, err := s.AddPlayer("alice", loc(1, 0, 0)); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}
	got, ok := s.Player("alice")
	if !ok || got.ID() != alice.ID() {
		t.Fatalf("Player lookup failed")
	}
	if err := s.SetPlayerActive("alice", false); err != nil {
		t.Fatalf("SetPlayerActive: %v", err)
	}
	if alice.Active() {
		t.Fatalf("expected inactive player")
	}
	if err := s.MovePlayer("bob", loc(0, 0, 0)); err == nil {
		t.Fatalf("expected unknown player error")
	}
}

func TestSandboxSpawnRequiresWorld(t *testing.T) {
	s := NewSandbox(DefaultConfig())
	e, err := s.SpawnTowerMarker(model.TeamRed, model.Location{})
	if err == nil {
		t.Fatalf("expected error spawning without a world")
	}
	if e != nil {
		t.Fatalf("expected a nil interface on error, got %#v", e)
	}
}

func TestSandboxProjectileHitsAfterTravel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectileSpeed = 10
	s := NewSandbox(cfg)
	events := collect(s)

	target, _ := s.SpawnRobot(model.TeamRed, loc(15, 0, 0))
	s.LaunchProjectile(model.TeamBlue, loc(0, 0, 0), target, 10)

	s.Step(time.Second)
	if s.InFlight() != 1 {
		t.Fatalf("projectile should still be in flight")
	}
	s.Step(time.Second)
	if s.InFlight() != 0 {
		t.Fatalf("projectile should have landed")
	}

	var hit *Event
	for i := range *events {
		if (*events)[i].Type == EventProjectileHit {
			hit = &(*events)[i]
		}
	}
	if hit == nil || hit.EntityID != target.ID() || hit.Amount != 10 || hit.Team != model.TeamBlue {
		t.Fatalf("unexpected hit event: %+v", hit)
	}
}

func TestSandboxProjectileAtRemovedTargetIsDropped(t *testing.T) {
	s := NewSandbox(DefaultConfig())
	events := collect(s)

	target, _ := s.SpawnRobot(model.TeamRed, loc(1, 0, 0))
	s.LaunchProjectile(model.TeamBlue, loc(0, 0, 0), target, 10)
	target.Remove()
	target.Remove()
	s.Step(time.Second)

	removed := 0
	for _, ev := range *events {
		if ev.Type == EventProjectileHit {
			t.Fatalf("hit reported for a removed target")
		}
		if ev.Type == EventEntityRemoved {
			removed++
		}
	}
	if removed != 1 {
		t.Fatalf("expected one removal event, got %d", removed)
	}
}

func TestSandboxRobotWalksAndImpacts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RobotSpeed = 5
	s := NewSandbox(cfg)
	events := collect(s)

	tower, _ := s.SpawnTowerMarker(model.TeamRed, loc(20, 0, 0))
	robot, _ := s.SpawnRobot(model.TeamBlue, loc(0, 0, 0))
	robot.SetTarget(tower)

	for i := 0; i < 4; i++ {
		s.Step(time.Second)
	}
	if got := robot.Location(); got.X != 20 {
		t.Fatalf("robot at %+v, want x=20", got)
	}

	impacts := 0
	for _, ev := range *events {
		if ev.Type == EventRobotImpact {
			impacts++
			if ev.SourceID != robot.ID() || ev.EntityID != tower.ID() {
				t.Fatalf("unexpected impact %+v", ev)
			}
		}
	}
	if impacts != 0 {
		t.Fatalf("robot should only just have arrived, got %d impacts", impacts)
	}

	s.Step(time.Second)
	s.Step(500 * time.Millisecond)
	s.Step(500 * time.Millisecond)
	impacts = 0
	for _, ev := range *events {
		if ev.Type == EventRobotImpact {
			impacts++
		}
	}
	if impacts != 2 {
		t.Fatalf("expected attacks once per second, got %d", impacts)
	}
}

func TestSandboxPickupCollection(t *testing.T) {
	s := NewSandbox(DefaultConfig())
	events := collect(s)
	p, _ := s.AddPlayer("alice", loc(0, 0, 0))

	pickup, err := s.DropPowerup(loc(10, 0, 0), 1)
	if err != nil {
		t.Fatalf("DropPowerup: %v", err)
	}
	if _, err := s.DropPowerup(loc(10, 0, 0), 0); err == nil {
		t.Fatalf("expected error for empty pickup")
	}

	_ = s.MovePlayer("alice", loc(10, 1, 0))

	var got *Event
	for i := range *events {
		if (*events)[i].Type == EventPickupCollected {
			got = &(*events)[i]
		}
	}
	if got == nil || got.SourceID != p.ID() || got.EntityID != pickup.ID() || got.Amount != 1 {
		t.Fatalf("unexpected collection event: %+v", got)
	}
	if len(s.Entities(KindPickup)) != 0 {
		t.Fatalf("pickup should be gone")
	}
}
