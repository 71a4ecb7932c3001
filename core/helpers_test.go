package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type stubEntity struct {
	id      string
	loc     model.Location
	removed int
	target  Positioned
	health  []int
}

func (e *stubEntity) ID() string                { return e.id }
func (e *stubEntity) Location() model.Location  { return e.loc }
func (e *stubEntity) Remove()                   { e.removed++ }
func (e *stubEntity) Target() Positioned        { return e.target }
func (e *stubEntity) SetTarget(p Positioned)    { e.target = p }
func (e *stubEntity) ShowHealth(current, _ int) { e.health = append(e.health, current) }

type stubPlayer struct {
	id     string
	loc    model.Location
	active bool
}

func (p *stubPlayer) ID() string               { return p.id }
func (p *stubPlayer) Name() string             { return p.id }
func (p *stubPlayer) Location() model.Location { return p.loc }
func (p *stubPlayer) Active() bool             { return p.active }

type shot struct {
	team   model.Team
	from   model.Location
	target Positioned
	damage int
}

type stubWorld struct {
	next     int
	markers  []*stubEntity
	robots   []*stubEntity
	shots    []shot
	spawnErr error
}

func (w *stubWorld) Distance(a, b model.Location) float64 { return a.DistanceTo(b) }

func (w *stubWorld) SpawnTowerMarker(team model.Team, at model.Location) (Entity, error) {
	w.next++
	e := &stubEntity{id: fmt.Sprintf("marker-%s-%d", team, w.next), loc: at}
	w.markers = append(w.markers, e)
	return e, nil
}

func (w *stubWorld) SpawnRobot(team model.Team, at model.Location) (Mob, error) {
	if w.spawnErr != nil {
		return nil, w.spawnErr
	}
	w.next++
	e := &stubEntity{id: fmt.Sprintf("robot-%s-%d", team, w.next), loc: at}
	w.robots = append(w.robots, e)
	return e, nil
}

func (w *stubWorld) LaunchProjectile(team model.Team, from model.Location, target Positioned, damage int) {
	w.shots = append(w.shots, shot{team: team, from: from, target: target, damage: damage})
}

func (w *stubWorld) DropPowerup(at model.Location, amount int) (Entity, error) {
	w.next++
	return &stubEntity{id: fmt.Sprintf("pickup-%d", w.next), loc: at}, nil
}

type fixture struct {
	world  *stubWorld
	sched  *sched.FakeEventScheduler
	roster *Roster
	blue   *Tower
	red    *Tower
}

func defaultTowerConfig(pos model.Location) TowerConfig {
	return TowerConfig{
		Position:             pos,
		MaxHealth:            100,
		Damage:               10,
		Radius:               20,
		RobotLevelMultiplier: 0.1,
		RobotBaseDamage:      30,
		RobotBaseHealth:      2000,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		world:  &stubWorld{},
		sched:  sched.NewFakeEventScheduler(testEpoch),
		roster: NewRoster(),
	}
	env := Env{World: f.world, Scheduler: f.sched, Players: f.roster}

	var err error
	f.blue, err = NewTower(model.TeamBlue, defaultTowerConfig(model.Location{World: "w", X: 0}), env)
	if err != nil {
		t.Fatalf("NewTower(blue): %v", err)
	}
	f.red, err = NewTower(model.TeamRed, defaultTowerConfig(model.Location{World: "w", X: 200}), env)
	if err != nil {
		t.Fatalf("NewTower(red): %v", err)
	}
	return f
}
