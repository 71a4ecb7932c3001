package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
)

const (
	// TowerAIPeriod is how often an armed tower looks for a target.
	TowerAIPeriod = 500 * time.Millisecond
	// TowerFaceHeight is the height above the tower position that targeting
	// distances are measured from and projectiles launched from.
	TowerFaceHeight = 3.0
)

// TowerConfig is the immutable configuration of a tower.
type TowerConfig struct {
	Position             model.Location
	MaxHealth            int
	Damage               int
	Radius               float64
	RobotLevelMultiplier float64
	RobotBaseDamage      int
	RobotBaseHealth      int
}

// Validate rejects non-positive attributes.
func (c TowerConfig) Validate() error {
	switch {
	case c.MaxHealth <= 0:
		return fmt.Errorf("%w: tower max health must be positive, got %d", ErrInvalidConfiguration, c.MaxHealth)
	case c.Damage <= 0:
		return fmt.Errorf("%w: tower damage must be positive, got %d", ErrInvalidConfiguration, c.Damage)
	case !(c.Radius > 0):
		return fmt.Errorf("%w: tower radius must be positive, got %v", ErrInvalidConfiguration, c.Radius)
	case !(c.RobotLevelMultiplier > 0):
		return fmt.Errorf("%w: robot level multiplier must be positive, got %v", ErrInvalidConfiguration, c.RobotLevelMultiplier)
	case c.RobotBaseDamage <= 0:
		return fmt.Errorf("%w: robot base damage must be positive, got %d", ErrInvalidConfiguration, c.RobotBaseDamage)
	case c.RobotBaseHealth <= 0:
		return fmt.Errorf("%w: robot base health must be positive, got %d", ErrInvalidConfiguration, c.RobotBaseHealth)
	}
	return nil
}

// Env bundles the collaborators shared by towers and robots.
type Env struct {
	World     World
	Scheduler sched.EventScheduler
	Players   PlayerSource
	Logger    logging.Logger
}

func (e Env) validate() error {
	if e.World == nil || e.Scheduler == nil || e.Players == nil {
		return fmt.Errorf("%w: world, scheduler and players are required", ErrInvalidArgument)
	}
	return nil
}

func (e Env) logger() logging.Logger {
	if e.Logger == nil {
		return logging.Noop()
	}
	return e.Logger
}

// Tower is a team's stationary defender. It owns the team's powerup economy
// and creates the team's robots.
//
// Tower is not safe for concurrent use; it lives on the game loop.
type Tower struct {
	team model.Team
	cfg  TowerConfig
	env  Env
	log  logging.Logger

	health  *Health
	economy Economy
	marker  Entity
	ai      *sched.Task

	// allies are robots this tower created; enemies are robots created to
	// attack it.
	allies  *robotSet
	enemies *robotSet
}

// NewTower validates cfg and places the tower marker in the world. The tower
// is disarmed until Start is called.
func NewTower(team model.Team, cfg TowerConfig, env Env) (*Tower, error) {
	if !team.Valid() {
		return nil, fmt.Errorf("%w: unknown team %v", ErrInvalidArgument, team)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	health, err := NewHealth(cfg.MaxHealth)
	if err != nil {
		return nil, err
	}
	marker, err := env.World.SpawnTowerMarker(team, cfg.Position)
	if err != nil {
		return nil, fmt.Errorf("spawn %s tower marker: %w", team, err)
	}

	t := &Tower{
		team:    team,
		cfg:     cfg,
		env:     env,
		log:     env.logger().With(logging.String("tower", team.String())),
		health:  health,
		marker:  marker,
		allies:  newRobotSet(),
		enemies: newRobotSet(),
	}
	// Registered first so every later subscriber sees the robots already
	// stopped and the economy already emptied.
	t.health.OnDeath(func(HealthChange) { t.collapse() })
	return t, nil
}

// Team returns the owning team.
func (t *Tower) Team() model.Team { return t.team }

// Config returns the tower configuration.
func (t *Tower) Config() TowerConfig { return t.cfg }

// Position returns the tower base position.
func (t *Tower) Position() model.Location { return t.cfg.Position }

// Marker returns the world entity representing the tower.
func (t *Tower) Marker() Entity { return t.marker }

// Health returns the tower's raw health, which may be negative.
func (t *Tower) Health() int { return t.health.Current() }

// MaxHealth returns the configured maximum health.
func (t *Tower) MaxHealth() int { return t.health.Max() }

// Destroyed reports whether health has reached zero.
func (t *Tower) Destroyed() bool { return t.health.Dead() }

// Armed reports whether the targeting AI is running.
func (t *Tower) Armed() bool { return t.ai != nil && !t.ai.Cancelled() }

// Powerups returns the team's current powerup total.
func (t *Tower) Powerups() int { return t.economy.Amount() }

// AllyRobots returns the live robots this tower created, in creation order.
func (t *Tower) AllyRobots() []*Robot { return t.allies.list() }

// EnemyRobots returns the live robots attacking this tower, in creation order.
func (t *Tower) EnemyRobots() []*Robot { return t.enemies.list() }

// Robot looks up an ally robot by ID.
func (t *Tower) Robot(id string) (*Robot, bool) { return t.allies.get(id) }

// Start restores full health and arms the targeting AI.
func (t *Tower) Start() error {
	if t.Armed() {
		return fmt.Errorf("%w: %s tower already started", ErrInvalidState, t.team)
	}
	t.health.Reset()
	t.ai = sched.Every(t.env.Scheduler, TowerAIPeriod, TowerAIPeriod, t.step)
	t.log.Debug(context.Background(), "tower armed", logging.Int("health", t.health.Current()))
	return nil
}

// Stop forces the tower's health to zero and disarms it. Stopping a tower
// that is already destroyed only disarms it.
func (t *Tower) Stop() {
	if remaining := t.health.Current(); remaining > 0 {
		_ = t.health.Apply(remaining)
	}
	t.ai.Cancel()
}

// Damage applies damage to the tower.
func (t *Tower) Damage(amount int) error {
	return t.health.Apply(amount)
}

// AddPowerups credits the team's economy.
func (t *Tower) AddPowerups(n int) error {
	return t.economy.Add(n)
}

// Remove disarms the tower and removes its marker from the world.
func (t *Tower) Remove() {
	t.ai.Cancel()
	if t.marker != nil {
		t.marker.Remove()
	}
}

// OnDamage subscribes to every health change.
func (t *Tower) OnDamage(fn func(HealthChange)) (unsubscribe func()) {
	return t.health.OnChange(fn)
}

// OnDestroyed subscribes to the tower's destruction. It fires once per life.
func (t *Tower) OnDestroyed(fn func()) (unsubscribe func()) {
	return t.health.OnDeath(func(HealthChange) { fn() })
}

// OnPowerupsChange subscribes to economy changes.
func (t *Tower) OnPowerupsChange(fn func(amount int)) (unsubscribe func()) {
	return t.economy.OnChange(fn)
}

// CreateRobot spawns a robot at the given location using the configured
// base stats. See CreateRobotWith.
func (t *Tower) CreateRobot(at model.Location, enemy *Tower) (*Robot, error) {
	return t.CreateRobotWith(at, enemy, t.cfg.RobotBaseDamage, t.cfg.RobotBaseHealth)
}

// CreateRobotWith spawns a robot that attacks enemy. Its damage and health
// are scaled by the team's current powerups times the level multiplier, and
// the whole economy is consumed.
func (t *Tower) CreateRobotWith(at model.Location, enemy *Tower, baseDamage, baseHealth int) (*Robot, error) {
	if enemy == nil || enemy == t {
		return nil, fmt.Errorf("%w: robot needs an enemy tower", ErrInvalidArgument)
	}
	if baseDamage <= 0 || baseHealth <= 0 {
		return nil, fmt.Errorf("%w: robot damage and health must be positive", ErrInvalidArgument)
	}

	multiplier := float64(t.economy.Amount()) * t.cfg.RobotLevelMultiplier
	damage := scaleStat(baseDamage, multiplier)
	health := scaleStat(baseHealth, multiplier)

	entity, err := t.env.World.SpawnRobot(t.team, at)
	if err != nil {
		return nil, fmt.Errorf("spawn %s robot: %w", t.team, err)
	}
	r, err := newRobot(entity, t, enemy, damage, health, t.env)
	if err != nil {
		entity.Remove()
		return nil, err
	}

	t.allies.add(r)
	enemy.enemies.add(r)
	r.health.OnDeath(func(HealthChange) {
		t.allies.remove(r.id)
		enemy.enemies.remove(r.id)
	})

	t.economy.TakeAll()
	r.start()

	t.log.Debug(context.Background(), "robot created",
		logging.String("robot_id", r.id),
		logging.Int("damage", damage),
		logging.Int("health", health),
	)
	return r, nil
}

func scaleStat(base int, multiplier float64) int {
	b := float64(base)
	return int(math.Floor(b + b*multiplier))
}

// collapse runs once when the tower is destroyed.
func (t *Tower) collapse() {
	for _, r := range t.allies.list() {
		r.Stop()
	}
	t.economy.TakeAll()
	t.log.Info(context.Background(), "tower destroyed", logging.Int("health", t.health.Current()))
}

// step is the targeting AI. Players are considered before robots and the
// strictly nearest target within range wins.
func (t *Tower) step(task *sched.Task) {
	if t.health.Dead() {
		task.Cancel()
		return
	}

	origin := t.cfg.Position.Add(0, TowerFaceHeight, 0)
	var target Positioned
	nearest := t.cfg.Radius

	for _, p := range t.env.Players.Players(t.team.Opponent()) {
		if !p.Active() {
			continue
		}
		if d := t.env.World.Distance(origin, p.Location()); d < nearest {
			target, nearest = p, d
		}
	}
	for _, r := range t.enemies.list() {
		if r.Dead() {
			continue
		}
		if d := t.env.World.Distance(origin, r.entity.Location()); d < nearest {
			target, nearest = r.entity, d
		}
	}

	if target != nil {
		t.env.World.LaunchProjectile(t.team, origin, target, t.cfg.Damage)
	}
}
