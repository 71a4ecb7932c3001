package game

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
	"github.com/signalsfoundry/siege-simulator/world"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(x, z float64) model.Location {
	return model.Location{World: "arena", X: x, Y: 64, Z: z}
}

func towerConfig(pos model.Location) core.TowerConfig {
	return core.TowerConfig{
		Position:             pos,
		MaxHealth:            100,
		Damage:               10,
		Radius:               20,
		RobotLevelMultiplier: 0.1,
		RobotBaseDamage:      30,
		RobotBaseHealth:      2000,
	}
}

type spawnEvent struct {
	at    time.Duration
	team  model.Team
	robot *core.Robot
	level int
}

type robotDamageEvent struct {
	team   model.Team
	health int
}

type endEvent struct {
	winner model.Team
	reason EndReason
}

// recorder captures events along with the simulated time they arrived.
type recorder struct {
	BaseListener
	sched sched.EventScheduler

	starts      int
	times       []int
	expired     []model.Team
	expiredAt   []time.Duration
	spawns      []spawnEvent
	towerDamage map[model.Team][]int
	powerups    map[model.Team][]int
	drops       []model.Location
	robotDamage []robotDamageEvent
	ends        []endEvent
}

func newRecorder(s sched.EventScheduler) *recorder {
	return &recorder{
		sched:       s,
		towerDamage: make(map[model.Team][]int),
		powerups:    make(map[model.Team][]int),
	}
}

func (r *recorder) elapsed() time.Duration { return r.sched.Now().Sub(testEpoch) }

func (r *recorder) OnGameStart(Snapshot)       { r.starts++ }
func (r *recorder) OnTimeChange(remaining int) { r.times = append(r.times, remaining) }
func (r *recorder) OnTimeExpired(w model.Team) {
	r.expired = append(r.expired, w)
	r.expiredAt = append(r.expiredAt, r.elapsed())
}
func (r *recorder) OnRobotSpawn(team model.Team, robot *core.Robot, level int) {
	r.spawns = append(r.spawns, spawnEvent{at: r.elapsed(), team: team, robot: robot, level: level})
}
func (r *recorder) OnRobotDamage(team model.Team, _ *core.Robot, health int) {
	r.robotDamage = append(r.robotDamage, robotDamageEvent{team: team, health: health})
}
func (r *recorder) OnTowerDamage(team model.Team, health int) {
	r.towerDamage[team] = append(r.towerDamage[team], health)
}
func (r *recorder) OnPowerupsChange(team model.Team, amount int) {
	r.powerups[team] = append(r.powerups[team], amount)
}
func (r *recorder) OnPowerupSpawn(l model.Location) { r.drops = append(r.drops, l) }
func (r *recorder) OnGameEnd(w model.Team, reason EndReason) {
	r.ends = append(r.ends, endEvent{winner: w, reason: reason})
}

type harness struct {
	game    *Game
	sandbox *world.Sandbox
	sched   *sched.FakeEventScheduler
	rec     *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sandbox: world.NewSandbox(world.DefaultConfig()),
		sched:   sched.NewFakeEventScheduler(testEpoch),
	}
	h.rec = newRecorder(h.sched)
	h.game = New(h.sandbox, h.sched, nil,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithListeners(h.rec),
	)
	return h
}

// configure sets towers, spawns and the powerup area.
func (h *harness) configure(t *testing.T) {
	t.Helper()
	must(t, h.game.SetTower(model.TeamBlue, towerConfig(at(0, 0))))
	must(t, h.game.SetTower(model.TeamRed, towerConfig(at(100, 0))))
	must(t, h.game.SetSpawn(model.TeamBlue, at(10, 0)))
	must(t, h.game.SetSpawn(model.TeamRed, at(90, 0)))
	must(t, h.game.SetPowerupSpawn(at(50, 50), 30, 5))
}

func (h *harness) player(t *testing.T, name string, team model.Team, pos model.Location) *world.Player {
	t.Helper()
	p, err := h.sandbox.AddPlayer(name, pos)
	must(t, err)
	must(t, h.game.SetPlayersTeam(team, p))
	return p
}

func (h *harness) advance(d time.Duration) { h.sched.Advance(d) }

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
