package game

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/model"
)

// Listener observes game events. All callbacks run on the game loop and must
// not block. Embed BaseListener to implement only the hooks you need.
type Listener interface {
	OnGameStart(snap Snapshot)
	// OnTimeChange reports the remaining seconds, never negative.
	OnTimeChange(remaining int)
	// OnTimeExpired reports the team with more tower health, or NoTeam.
	OnTimeExpired(winning model.Team)
	// OnRobotSpawn reports a spawn decision. On a tie team is NoTeam, robot
	// is nil and level is -1.
	OnRobotSpawn(team model.Team, robot *core.Robot, level int)
	// OnRobotDamage reports a robot's health after a hit, clamped at zero.
	OnRobotDamage(team model.Team, robot *core.Robot, health int)
	OnTowerDamage(team model.Team, health int)
	OnPowerupsChange(team model.Team, amount int)
	OnPowerupSpawn(at model.Location)
	// OnGameEnd fires once per game after the towers are stopped.
	OnGameEnd(winner model.Team, reason EndReason)
}

// BaseListener implements every Listener hook as a no-op.
type BaseListener struct{}

func (BaseListener) OnGameStart(Snapshot)                       {}
func (BaseListener) OnTimeChange(int)                           {}
func (BaseListener) OnTimeExpired(model.Team)                   {}
func (BaseListener) OnRobotSpawn(model.Team, *core.Robot, int)  {}
func (BaseListener) OnRobotDamage(model.Team, *core.Robot, int) {}
func (BaseListener) OnTowerDamage(model.Team, int)              {}
func (BaseListener) OnPowerupsChange(model.Team, int)           {}
func (BaseListener) OnPowerupSpawn(model.Location)              {}
func (BaseListener) OnGameEnd(model.Team, EndReason)            {}

// FaultHandler is told when a listener panics. hook names the callback.
type FaultHandler func(hook string, recovered any)

// Registry holds listeners in registration order. A panicking listener is
// logged and skipped; the remaining listeners still run.
type Registry struct {
	log     logging.Logger
	next    int
	entries []registryEntry
	faults  []FaultHandler
}

type registryEntry struct {
	id int
	l  Listener
}

// NewRegistry returns an empty registry.
func NewRegistry(log logging.Logger) *Registry {
	if log == nil {
		log = logging.Noop()
	}
	return &Registry{log: log}
}

// Add registers l and returns a function that removes it.
func (r *Registry) Add(l Listener) (remove func()) {
	r.next++
	id := r.next
	r.entries = append(r.entries, registryEntry{id: id, l: l})
	return func() {
		for i, e := range r.entries {
			if e.id == id {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

// OnFault registers a handler for listener panics.
func (r *Registry) OnFault(fn FaultHandler) {
	r.faults = append(r.faults, fn)
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int { return len(r.entries) }

// Clear removes every listener.
func (r *Registry) Clear() { r.entries = nil }

func (r *Registry) dispatch(hook string, fn func(Listener)) {
	snapshot := append([]registryEntry(nil), r.entries...)
	for _, e := range snapshot {
		r.call(hook, e.l, fn)
	}
}

func (r *Registry) call(hook string, l Listener, fn func(Listener)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(context.Background(), "listener panicked",
				logging.String("hook", hook),
				logging.String("listener", fmt.Sprintf("%T", l)),
				logging.Any("panic", rec),
			)
			for _, f := range r.faults {
				f(hook, rec)
			}
		}
	}()
	fn(l)
}

func (r *Registry) gameStart(snap Snapshot) {
	r.dispatch("OnGameStart", func(l Listener) { l.OnGameStart(snap) })
}

func (r *Registry) timeChange(remaining int) {
	r.dispatch("OnTimeChange", func(l Listener) { l.OnTimeChange(remaining) })
}

func (r *Registry) timeExpired(winning model.Team) {
	r.dispatch("OnTimeExpired", func(l Listener) { l.OnTimeExpired(winning) })
}

func (r *Registry) robotSpawn(team model.Team, robot *core.Robot, level int) {
	r.dispatch("OnRobotSpawn", func(l Listener) { l.OnRobotSpawn(team, robot, level) })
}

func (r *Registry) robotDamage(team model.Team, robot *core.Robot, health int) {
	r.dispatch("OnRobotDamage", func(l Listener) { l.OnRobotDamage(team, robot, health) })
}

func (r *Registry) towerDamage(team model.Team, health int) {
	r.dispatch("OnTowerDamage", func(l Listener) { l.OnTowerDamage(team, health) })
}

func (r *Registry) powerupsChange(team model.Team, amount int) {
	r.dispatch("OnPowerupsChange", func(l Listener) { l.OnPowerupsChange(team, amount) })
}

func (r *Registry) powerupSpawn(at model.Location) {
	r.dispatch("OnPowerupSpawn", func(l Listener) { l.OnPowerupSpawn(at) })
}

func (r *Registry) gameEnd(winner model.Team, reason EndReason) {
	r.dispatch("OnGameEnd", func(l Listener) { l.OnGameEnd(winner, reason) })
}
