package core

import "github.com/signalsfoundry/siege-simulator/model"

// Positioned is anything the world can locate.
type Positioned interface {
	ID() string
	Location() model.Location
}

// Entity is a world object owned by the game that can be removed.
type Entity interface {
	Positioned
	Remove()
}

// Mob is a world entity that can be pointed at a target.
type Mob interface {
	Entity
	Target() Positioned
	SetTarget(Positioned)
}

// Player is a participant. Inactive players (spectating, creative, offline)
// are never targeted.
type Player interface {
	Positioned
	Name() string
	Active() bool
}

// HealthDisplay is implemented by entities that can show a health bar.
type HealthDisplay interface {
	ShowHealth(current, max int)
}

// PlayerSource resolves the players currently on a team.
type PlayerSource interface {
	Players(team model.Team) []Player
}

// World is the position and entity service the simulation runs against.
// Implementations must not call back into the game synchronously from these
// methods; hits and impacts are reported later from the world's own step.
type World interface {
	// Distance returns the scalar distance between two points.
	Distance(a, b model.Location) float64
	// SpawnTowerMarker places the visual marker for a tower.
	SpawnTowerMarker(team model.Team, at model.Location) (Entity, error)
	// SpawnRobot creates a robot mob for team at the given location.
	SpawnRobot(team model.Team, at model.Location) (Mob, error)
	// LaunchProjectile fires a projectile that deals damage to target on hit.
	LaunchProjectile(team model.Team, from model.Location, target Positioned, damage int)
	// DropPowerup places a collectable pickup.
	DropPowerup(at model.Location, amount int) (Entity, error)
}
