package core

import (
	"time"

	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
)

const (
	// RobotAIPeriod is how often a robot re-evaluates its target.
	RobotAIPeriod = time.Second
	// RobotEngagementRadius is how close an enemy player must be for a robot
	// to chase it instead of the enemy tower.
	RobotEngagementRadius = 10.0
)

// Robot is a mobile unit created by a tower. Its damage is fixed at creation.
//
// Robot is not safe for concurrent use; it lives on the game loop.
type Robot struct {
	id     string
	entity Mob
	owner  *Tower
	enemy  *Tower
	damage int
	health *Health
	env    Env
	ai     *sched.Task
}

func newRobot(entity Mob, owner, enemy *Tower, damage, health int, env Env) (*Robot, error) {
	h, err := NewHealth(health)
	if err != nil {
		return nil, err
	}
	r := &Robot{
		id:     entity.ID(),
		entity: entity,
		owner:  owner,
		enemy:  enemy,
		damage: damage,
		health: h,
		env:    env,
	}
	if display, ok := entity.(HealthDisplay); ok {
		display.ShowHealth(h.Display(), h.Max())
		h.OnChange(func(c HealthChange) {
			display.ShowHealth(h.Display(), c.Max)
		})
	}
	return r, nil
}

func (r *Robot) start() {
	r.entity.SetTarget(r.enemy.marker)
	r.ai = sched.Every(r.env.Scheduler, RobotAIPeriod, RobotAIPeriod, r.step)
}

// ID returns the robot's unique ID, shared with its world entity.
func (r *Robot) ID() string { return r.id }

// Team returns the owning team.
func (r *Robot) Team() model.Team { return r.owner.team }

// Entity returns the world mob.
func (r *Robot) Entity() Mob { return r.entity }

// Owner returns the tower that created the robot.
func (r *Robot) Owner() *Tower { return r.owner }

// Enemy returns the tower the robot attacks.
func (r *Robot) Enemy() *Tower { return r.enemy }

// DamageOutput returns the damage the robot's attacks deal.
func (r *Robot) DamageOutput() int { return r.damage }

// Health returns the robot's raw health.
func (r *Robot) Health() int { return r.health.Current() }

// MaxHealth returns the robot's health at creation.
func (r *Robot) MaxHealth() int { return r.health.Max() }

// Dead reports whether the robot has died.
func (r *Robot) Dead() bool { return r.health.Dead() }

// Damage applies damage to the robot.
func (r *Robot) Damage(amount int) error {
	return r.health.Apply(amount)
}

// Stop forces the robot's death. The entity is removed by the next AI step.
func (r *Robot) Stop() {
	if remaining := r.health.Current(); remaining > 0 {
		_ = r.health.Apply(remaining)
	}
}

// OnDamage subscribes to health changes. Any number of subscribers may be added.
func (r *Robot) OnDamage(fn func(HealthChange)) (unsubscribe func()) {
	return r.health.OnChange(fn)
}

// OnDeath subscribes to the robot's death.
func (r *Robot) OnDeath(fn func()) (unsubscribe func()) {
	return r.health.OnDeath(func(HealthChange) { fn() })
}

// step is the chase AI: nearby active enemy players take priority over the
// enemy tower.
func (r *Robot) step(task *sched.Task) {
	if r.health.Dead() {
		r.entity.Remove()
		task.Cancel()
		return
	}

	here := r.entity.Location()
	for _, p := range r.env.Players.Players(r.owner.team.Opponent()) {
		if !p.Active() {
			continue
		}
		if r.env.World.Distance(here, p.Location()) < RobotEngagementRadius {
			r.entity.SetTarget(p)
			return
		}
	}

	tower := r.enemy.marker
	if current := r.entity.Target(); current == nil || current.ID() != tower.ID() {
		r.entity.SetTarget(tower)
	}
}
