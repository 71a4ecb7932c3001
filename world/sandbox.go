// Package world provides Sandbox, an in-memory headless implementation of
// core.World. It tracks players, tower markers, robots, projectiles and
// pickups, moves them when stepped, and reports hits, impacts and pickup
// collection to subscribers.
package world

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/model"
)

// EventType indicates what happened in the sandbox.
type EventType int

const (
	// EventProjectileHit: a tower projectile reached its target.
	EventProjectileHit EventType = iota
	// EventRobotImpact: a robot attacked the point it was targeting.
	EventRobotImpact
	// EventPickupCollected: a player walked over a pickup.
	EventPickupCollected
	// EventEntitySpawned: a marker, robot or pickup was placed.
	EventEntitySpawned
	// EventEntityRemoved: an entity was removed.
	EventEntityRemoved
)

func (t EventType) String() string {
	switch t {
	case EventProjectileHit:
		return "projectile_hit"
	case EventRobotImpact:
		return "robot_impact"
	case EventPickupCollected:
		return "pickup_collected"
	case EventEntitySpawned:
		return "entity_spawned"
	case EventEntityRemoved:
		return "entity_removed"
	default:
		return "unknown"
	}
}

// Kind classifies sandbox entities.
type Kind string

const (
	KindTower  Kind = "tower"
	KindRobot  Kind = "robot"
	KindPickup Kind = "pickup"
)

// Event is emitted to subscribers after each change, outside the lock.
type Event struct {
	Type     EventType
	// Kind is empty when a projectile hits a player.
	Kind     Kind
	EntityID string
	// SourceID is the robot for impacts and the collecting player for pickups.
	SourceID string
	Team     model.Team
	Location model.Location
	Amount   int
}

// Config tunes movement. Speeds are in blocks per second.
type Config struct {
	RobotSpeed       float64
	ProjectileSpeed  float64
	RobotReach       float64
	RobotAttackEvery time.Duration
	PickupReach      float64
}

// DefaultConfig returns the movement settings used by the binaries.
func DefaultConfig() Config {
	return Config{
		RobotSpeed:       4,
		ProjectileSpeed:  30,
		RobotReach:       2,
		RobotAttackEvery: time.Second,
		PickupReach:      1.5,
	}
}

// Sandbox is a thread-safe in-memory world.
type Sandbox struct {
	mu  sync.RWMutex
	cfg Config

	players     map[string]*Player
	entities    map[string]*Mob
	projectiles []*projectile

	subs   map[int]func(Event)
	nextID int
}

var _ core.World = (*Sandbox)(nil)

// NewSandbox constructs an empty sandbox.
func NewSandbox(cfg Config) *Sandbox {
	return &Sandbox{
		cfg:      cfg,
		players:  make(map[string]*Player),
		entities: make(map[string]*Mob),
		subs:     make(map[int]func(Event)),
	}
}

// Subscribe registers a callback for sandbox events. It returns an
// unsubscribe function.
func (s *Sandbox) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Sandbox) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// emit delivers events outside the lock to avoid deadlocks.
func (s *Sandbox) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.RLock()
	subs := s.subscribersLocked()
	s.mu.RUnlock()
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
}

// ---- Players ----

// AddPlayer creates a player with a fresh ID. Names must be unique.
func (s *Sandbox) AddPlayer(name string, at model.Location) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.playerByNameLocked(name); exists {
		return nil, fmt.Errorf("player %q already exists", name)
	}
	p := &Player{s: s, id: uuid.NewString(), name: name, loc: at, active: true}
	s.players[p.id] = p
	return p, nil
}

// Player looks up a player by name.
func (s *Sandbox) Player(name string) (*Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerByNameLocked(name)
}

func (s *Sandbox) playerByNameLocked(name string) (*Player, bool) {
	for _, p := range s.players {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

// Players returns all players sorted by name.
func (s *Sandbox) Players() []*Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// MovePlayer teleports a player and collects any pickup in reach.
func (s *Sandbox) MovePlayer(name string, to model.Location) error {
	s.mu.Lock()
	p, ok := s.playerByNameLocked(name)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("player %q not found", name)
	}
	p.loc = to
	events := s.collectLocked(p)
	s.mu.Unlock()

	s.emit(events...)
	return nil
}

// SetPlayerActive toggles whether a player can be targeted.
func (s *Sandbox) SetPlayerActive(name string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playerByNameLocked(name)
	if !ok {
		return fmt.Errorf("player %q not found", name)
	}
	p.active = active
	return nil
}

// ---- core.World ----

// Distance implements core.World.
func (s *Sandbox) Distance(a, b model.Location) float64 {
	return a.DistanceTo(b)
}

// SpawnTowerMarker implements core.World.
func (s *Sandbox) SpawnTowerMarker(team model.Team, at model.Location) (core.Entity, error) {
	m, err := s.spawn(KindTower, team, at, 0)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SpawnRobot implements core.World.
func (s *Sandbox) SpawnRobot(team model.Team, at model.Location) (core.Mob, error) {
	m, err := s.spawn(KindRobot, team, at, 0)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DropPowerup implements core.World.
func (s *Sandbox) DropPowerup(at model.Location, amount int) (core.Entity, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("pickup amount must be positive, got %d", amount)
	}
	m, err := s.spawn(KindPickup, model.NoTeam, at, amount)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Sandbox) spawn(kind Kind, team model.Team, at model.Location, amount int) (*Mob, error) {
	if at.World == "" {
		return nil, fmt.Errorf("cannot spawn %s without a world", kind)
	}
	m := &Mob{s: s, id: uuid.NewString(), kind: kind, team: team, loc: at, amount: amount}

	s.mu.Lock()
	s.entities[m.id] = m
	s.mu.Unlock()

	s.emit(Event{Type: EventEntitySpawned, Kind: kind, EntityID: m.id, Team: team, Location: at, Amount: amount})
	return m, nil
}

// LaunchProjectile implements core.World. The projectile flies toward the
// target's position at launch and hits when Step brings it there.
func (s *Sandbox) LaunchProjectile(team model.Team, from model.Location, target core.Positioned, damage int) {
	dest := target.Location()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectiles = append(s.projectiles, &projectile{
		team:     team,
		loc:      from,
		targetID: target.ID(),
		dest:     dest,
		damage:   damage,
	})
}

// Entity looks up a live entity.
func (s *Sandbox) Entity(id string) (*Mob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entities[id]
	return m, ok
}

// Entities returns live entities of the given kind, sorted by ID.
func (s *Sandbox) Entities(kind Kind) []*Mob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Mob
	for _, m := range s.entities {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// InFlight returns the number of projectiles still travelling.
func (s *Sandbox) InFlight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projectiles)
}

// ---- Stepping ----

// Step advances movement by dt: projectiles fly, robots walk toward their
// targets and attack once in reach.
func (s *Sandbox) Step(dt time.Duration) {
	s.mu.Lock()
	var events []Event
	secs := dt.Seconds()

	remaining := s.projectiles[:0]
	for _, p := range s.projectiles {
		p.loc = p.loc.Toward(p.dest, s.cfg.ProjectileSpeed*secs)
		if p.loc.DistanceTo(p.dest) > 0 {
			remaining = append(remaining, p)
			continue
		}
		var kind Kind
		if m, alive := s.entities[p.targetID]; alive {
			kind = m.kind
		} else if _, isPlayer := s.players[p.targetID]; !isPlayer {
			continue
		}
		events = append(events, Event{
			Type:     EventProjectileHit,
			Kind:     kind,
			EntityID: p.targetID,
			Team:     p.team,
			Location: p.dest,
			Amount:   p.damage,
		})
	}
	s.projectiles = remaining

	for _, id := range s.sortedEntityIDsLocked() {
		m := s.entities[id]
		if m.kind != KindRobot || m.target == nil {
			continue
		}
		dest := m.targetLocationLocked()
		if m.loc.DistanceTo(dest) > s.cfg.RobotReach {
			m.loc = m.loc.Toward(dest, s.cfg.RobotSpeed*secs)
			m.cooldown = 0
			continue
		}
		m.cooldown -= dt
		if m.cooldown > 0 {
			continue
		}
		m.cooldown = s.cfg.RobotAttackEvery
		events = append(events, Event{
			Type:     EventRobotImpact,
			EntityID: m.target.ID(),
			SourceID: m.id,
			Team:     m.team,
			Location: dest,
		})
	}
	s.mu.Unlock()

	s.emit(events...)
}

func (s *Sandbox) sortedEntityIDsLocked() []string {
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// collectLocked removes pickups within reach of p.
func (s *Sandbox) collectLocked(p *Player) []Event {
	var events []Event
	for _, id := range s.sortedEntityIDsLocked() {
		m := s.entities[id]
		if m.kind != KindPickup {
			continue
		}
		if m.loc.DistanceTo(p.loc) > s.cfg.PickupReach {
			continue
		}
		delete(s.entities, id)
		events = append(events,
			Event{Type: EventPickupCollected, Kind: KindPickup, EntityID: id, SourceID: p.id, Location: m.loc, Amount: m.amount},
			Event{Type: EventEntityRemoved, Kind: KindPickup, EntityID: id, Location: m.loc},
		)
	}
	return events
}

type projectile struct {
	team     model.Team
	loc      model.Location
	dest     model.Location
	targetID string
	damage   int
}

// Player is a sandbox participant. It implements core.Player.
type Player struct {
	s      *Sandbox
	id     string
	name   string
	loc    model.Location
	active bool
}

var _ core.Player = (*Player)(nil)

func (p *Player) ID() string   { return p.id }
func (p *Player) Name() string { return p.name }

func (p *Player) Location() model.Location {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.loc
}

func (p *Player) Active() bool {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	return p.active
}

// Mob is a sandbox entity: a tower marker, a robot or a pickup. It implements
// core.Mob and core.HealthDisplay.
type Mob struct {
	s      *Sandbox
	id     string
	kind   Kind
	team   model.Team
	loc    model.Location
	amount int

	target   core.Positioned
	cooldown time.Duration
	health   [2]int
	removed  bool
}

var (
	_ core.Mob           = (*Mob)(nil)
	_ core.HealthDisplay = (*Mob)(nil)
)

func (m *Mob) ID() string { return m.id }

// Kind returns the entity kind.
func (m *Mob) Kind() Kind { return m.kind }

// Team returns the owning team, or NoTeam for pickups.
func (m *Mob) Team() model.Team { return m.team }

func (m *Mob) Location() model.Location {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.loc
}

// Remove deletes the entity from the sandbox. It is idempotent.
func (m *Mob) Remove() {
	m.s.mu.Lock()
	if m.removed {
		m.s.mu.Unlock()
		return
	}
	m.removed = true
	delete(m.s.entities, m.id)
	m.s.mu.Unlock()

	m.s.emit(Event{Type: EventEntityRemoved, Kind: m.kind, EntityID: m.id, Team: m.team, Location: m.Location()})
}

// Removed reports whether Remove has been called.
func (m *Mob) Removed() bool {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.removed
}

func (m *Mob) Target() core.Positioned {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.target
}

func (m *Mob) SetTarget(t core.Positioned) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.target = t
}

// ShowHealth records the displayed health bar.
func (m *Mob) ShowHealth(current, max int) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.health = [2]int{current, max}
}

// DisplayedHealth returns the last health bar shown.
func (m *Mob) DisplayedHealth() (current, max int) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.health[0], m.health[1]
}

// targetLocationLocked resolves the target position without re-locking.
func (m *Mob) targetLocationLocked() model.Location {
	switch t := m.target.(type) {
	case *Mob:
		return t.loc
	case *Player:
		return t.loc
	default:
		return m.target.Location()
	}
}
