package core

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/model"
)

func TestTowerConfigValidate(t *testing.T) {
	base := defaultTowerConfig(model.Location{World: "w"})
	cases := map[string]func(*TowerConfig){
		"health":     func(c *TowerConfig) { c.MaxHealth = 0 },
		"damage":     func(c *TowerConfig) { c.Damage = -1 },
		"radius":     func(c *TowerConfig) { c.Radius = 0 },
		"multiplier": func(c *TowerConfig) { c.RobotLevelMultiplier = 0 },
		"robotDmg":   func(c *TowerConfig) { c.RobotBaseDamage = 0 },
		"robotHP":    func(c *TowerConfig) { c.RobotBaseHealth = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestTowerDestroyedStopsAlliesAndEmptiesEconomy(t *testing.T) {
	f := newFixture(t)
	if err := f.blue.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	spawn := model.Location{World: "w", X: 100}
	r1, err := f.blue.CreateRobot(spawn, f.red)
	if err != nil {
		t.Fatalf("CreateRobot: %v", err)
	}
	r2, _ := f.blue.CreateRobot(spawn, f.red)
	_ = f.blue.AddPowerups(4)

	destroyed := 0
	var powerupEvents []int
	f.blue.OnDestroyed(func() {
		destroyed++
		if f.blue.Powerups() != 0 || !r1.Dead() || !r2.Dead() {
			t.Errorf("destroyed subscribers must observe the collapse already applied")
		}
	})
	f.blue.OnPowerupsChange(func(n int) { powerupEvents = append(powerupEvents, n) })

	_ = f.blue.Damage(40)
	_ = f.blue.Damage(70)

	if f.blue.Health() != -10 {
		t.Fatalf("Health() = %d, want -10", f.blue.Health())
	}
	if !f.blue.Destroyed() {
		t.Fatalf("expected tower destroyed")
	}
	if destroyed != 1 {
		t.Fatalf("destroyed fired %d times, want 1", destroyed)
	}
	if !r1.Dead() || !r2.Dead() {
		t.Fatalf("ally robots must be dead")
	}
	if f.blue.Powerups() != 0 {
		t.Fatalf("economy = %d, want 0", f.blue.Powerups())
	}
	if len(powerupEvents) != 1 || powerupEvents[0] != 0 {
		t.Fatalf("powerup events = %v, want [0]", powerupEvents)
	}
	if len(f.blue.AllyRobots()) != 0 || len(f.red.EnemyRobots()) != 0 {
		t.Fatalf("dead robots must be deregistered from both towers")
	}

	_ = f.blue.Damage(5)
	if destroyed != 1 {
		t.Fatalf("destroyed must fire once per life, got %d", destroyed)
	}

	// The AI disarms itself and the robots remove their entities on the next step.
	shotsBefore := len(f.world.shots)
	f.sched.Advance(3 * time.Second)
	if f.blue.Armed() {
		t.Fatalf("tower AI should disarm after destruction")
	}
	for _, e := range f.world.robots {
		if e.removed != 1 {
			t.Fatalf("robot entity %s removed %d times, want 1", e.id, e.removed)
		}
	}
	for _, s := range f.world.shots[shotsBefore:] {
		if s.team == model.TeamBlue {
			t.Fatalf("destroyed tower fired a projectile")
		}
	}
}

func TestTowerStartTwiceFails(t *testing.T) {
	f := newFixture(t)
	if err := f.blue.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.blue.Start(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestTowerStopForcesZeroAndRestartResets(t *testing.T) {
	f := newFixture(t)
	_ = f.blue.Start()
	_ = f.blue.Damage(30)

	var last HealthChange
	f.blue.OnDamage(func(c HealthChange) { last = c })
	f.blue.Stop()

	if f.blue.Health() != 0 || !f.blue.Destroyed() || f.blue.Armed() {
		t.Fatalf("Stop: health=%d destroyed=%v armed=%v", f.blue.Health(), f.blue.Destroyed(), f.blue.Armed())
	}
	if last.Amount != 70 {
		t.Fatalf("Stop should apply the remaining health as damage, got %d", last.Amount)
	}

	if err := f.blue.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if f.blue.Health() != f.blue.MaxHealth() || f.blue.Destroyed() {
		t.Fatalf("restart should restore full health")
	}
}

func TestCreateRobotScalesStatsAndConsumesEconomy(t *testing.T) {
	f := newFixture(t)
	_ = f.red.AddPowerups(5)

	r, err := f.red.CreateRobot(model.Location{World: "w", X: 190}, f.blue)
	if err != nil {
		t.Fatalf("CreateRobot: %v", err)
	}

	// multiplier = 5 * 0.1 = 0.5
	if r.DamageOutput() != 45 {
		t.Fatalf("damage = %d, want 45", r.DamageOutput())
	}
	if r.MaxHealth() != 3000 || r.Health() != 3000 {
		t.Fatalf("health = %d/%d, want 3000", r.Health(), r.MaxHealth())
	}
	if f.red.Powerups() != 0 {
		t.Fatalf("economy = %d after createRobot, want 0", f.red.Powerups())
	}
	if _, ok := f.red.Robot(r.ID()); !ok {
		t.Fatalf("robot not registered as ally")
	}
	if enemies := f.blue.EnemyRobots(); len(enemies) != 1 || enemies[0] != r {
		t.Fatalf("robot not registered as enemy of blue")
	}

	deaths := 0
	r.OnDeath(func() { deaths++ })
	_ = r.Damage(3000)
	_ = r.Damage(10)
	r.Stop()

	if deaths != 1 {
		t.Fatalf("robot death fired %d times, want 1", deaths)
	}
	if len(f.red.AllyRobots()) != 0 || len(f.blue.EnemyRobots()) != 0 {
		t.Fatalf("robot must be removed from both maps")
	}
}

func TestCreateRobotWithFlooredStats(t *testing.T) {
	f := newFixture(t)
	_ = f.red.AddPowerups(1)

	// 7 + 7*0.1 = 7.7 -> 7; 15 + 1.5 = 16.5 -> 16
	r, err := f.red.CreateRobotWith(model.Location{World: "w"}, f.blue, 7, 15)
	if err != nil {
		t.Fatalf("CreateRobotWith: %v", err)
	}
	if r.DamageOutput() != 7 || r.MaxHealth() != 16 {
		t.Fatalf("stats = %d/%d, want 7/16", r.DamageOutput(), r.MaxHealth())
	}
}

func TestCreateRobotErrors(t *testing.T) {
	f := newFixture(t)
	_ = f.red.AddPowerups(3)

	if _, err := f.red.CreateRobot(model.Location{}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	spawnErr := errors.New("chunk not loaded")
	f.world.spawnErr = spawnErr
	if _, err := f.red.CreateRobot(model.Location{}, f.blue); !errors.Is(err, spawnErr) {
		t.Fatalf("expected spawn error, got %v", err)
	}
	if f.red.Powerups() != 3 {
		t.Fatalf("failed creation must not consume the economy")
	}
}

func TestTowerTargetsNearestActiveEnemy(t *testing.T) {
	f := newFixture(t)
	_ = f.blue.Start()

	far := &stubPlayer{id: "far", loc: model.Location{World: "w", Y: 3, Z: 15}, active: true}
	idle := &stubPlayer{id: "idle", loc: model.Location{World: "w", Y: 3, Z: 1}, active: false}
	ally := &stubPlayer{id: "ally", loc: model.Location{World: "w", Y: 3, Z: 2}, active: true}
	_ = f.roster.Join(model.TeamRed, far)
	_ = f.roster.Join(model.TeamRed, idle)
	_ = f.roster.Join(model.TeamBlue, ally)

	f.sched.Advance(TowerAIPeriod)
	if len(f.world.shots) != 1 || f.world.shots[0].target.ID() != "far" {
		t.Fatalf("expected a shot at the only active enemy, got %+v", f.world.shots)
	}
	s := f.world.shots[0]
	if s.damage != 10 || s.from.Y != TowerFaceHeight {
		t.Fatalf("unexpected shot %+v", s)
	}

	// A red robot closer than the player takes precedence.
	r, _ := f.red.CreateRobot(model.Location{World: "w", Y: 3, Z: 5}, f.blue)
	f.sched.Advance(TowerAIPeriod)
	if got := f.world.shots[len(f.world.shots)-1].target.ID(); got != r.ID() {
		t.Fatalf("expected robot %s targeted, got %s", r.ID(), got)
	}
}

func TestTowerIgnoresTargetsOutOfRange(t *testing.T) {
	f := newFixture(t)
	_ = f.blue.Start()

	// Exactly on the radius is out of range.
	edge := &stubPlayer{id: "edge", loc: model.Location{World: "w", Y: 3, X: 20}, active: true}
	_ = f.roster.Join(model.TeamRed, edge)

	f.sched.Advance(2 * time.Second)
	if len(f.world.shots) != 0 {
		t.Fatalf("expected no shots, got %d", len(f.world.shots))
	}
}

func TestTowerTieKeepsFirstEncountered(t *testing.T) {
	f := newFixture(t)
	_ = f.blue.Start()

	a := &stubPlayer{id: "a", loc: model.Location{World: "w", Y: 3, X: 5}, active: true}
	b := &stubPlayer{id: "b", loc: model.Location{World: "w", Y: 3, X: -5}, active: true}
	_ = f.roster.Join(model.TeamRed, a)
	_ = f.roster.Join(model.TeamRed, b)

	f.sched.Advance(TowerAIPeriod)
	if len(f.world.shots) != 1 || f.world.shots[0].target.ID() != "a" {
		t.Fatalf("expected first encountered player targeted, got %+v", f.world.shots)
	}
}

func TestTowerRemoveRemovesMarker(t *testing.T) {
	f := newFixture(t)
	_ = f.blue.Start()
	f.blue.Remove()
	if f.world.markers[0].removed != 1 {
		t.Fatalf("marker not removed")
	}
	if f.blue.Armed() {
		t.Fatalf("removed tower must be disarmed")
	}
}
