package game

import (
	"fmt"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/model"
)

// TeamSnapshot is a read-only view of one side.
type TeamSnapshot struct {
	Team      model.Team
	TowerSet  bool
	Health    int
	MaxHealth int
	Powerups  int
	Robots    int
	Players   []string
	Spawn     *model.Location
}

// Snapshot is a read-only view of the whole game, safe to hand to other
// goroutines.
type Snapshot struct {
	Phase         Phase
	Remaining     int
	NextRobotIn   int
	NextPowerupIn int
	Winning       model.Team
	Teams         []TeamSnapshot
	PowerupSpawn  *model.Location
	Settings      model.Settings
}

// Team returns the snapshot of one team.
func (s Snapshot) Team(team model.Team) (TeamSnapshot, bool) {
	for _, ts := range s.Teams {
		if ts.Team == team {
			return ts, true
		}
	}
	return TeamSnapshot{}, false
}

// Snapshot captures the current state.
func (g *Game) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:         g.phase,
		Remaining:     g.clock.Remaining(),
		NextRobotIn:   g.nextRobotIn,
		NextPowerupIn: g.nextPowerupIn,
		Winning:       g.Winning(),
		Settings:      g.settings.Clone(),
	}
	if g.powerupSpawn != nil {
		loc := *g.powerupSpawn
		snap.PowerupSpawn = &loc
	}
	for _, team := range model.Teams {
		ts := TeamSnapshot{Team: team}
		if t, ok := g.towers[team]; ok {
			ts.TowerSet = true
			ts.Health = clampZero(t.Health())
			ts.MaxHealth = t.MaxHealth()
			ts.Powerups = t.Powerups()
			ts.Robots = len(t.AllyRobots())
		}
		if loc, ok := g.spawns[team]; ok {
			ts.Spawn = &loc
		}
		for _, p := range g.roster.Players(team) {
			ts.Players = append(ts.Players, p.Name())
		}
		snap.Teams = append(snap.Teams, ts)
	}
	return snap
}

// Config is the persistable configuration of a game. Missing entries are
// simply not configured.
type Config struct {
	Towers       map[model.Team]core.TowerConfig
	Spawns       map[model.Team]model.Location
	PowerupSpawn *model.Location
	Settings     model.Settings
}

// Config returns the current configuration.
func (g *Game) Config() Config {
	cfg := Config{
		Towers:   make(map[model.Team]core.TowerConfig, len(g.towers)),
		Spawns:   make(map[model.Team]model.Location, len(g.spawns)),
		Settings: g.settings.Clone(),
	}
	for team, t := range g.towers {
		cfg.Towers[team] = t.Config()
	}
	for team, loc := range g.spawns {
		cfg.Spawns[team] = loc
	}
	if g.powerupSpawn != nil {
		loc := *g.powerupSpawn
		cfg.PowerupSpawn = &loc
	}
	return cfg
}

// ApplyConfig replaces the configured towers, spawns, powerup area and
// settings. Everything is validated first; on error nothing changes.
func (g *Game) ApplyConfig(cfg Config) error {
	if g.phase == PhasePlaying {
		return fmt.Errorf("%w: cannot apply configuration while a game is running", core.ErrInvalidState)
	}
	if cfg.Settings != nil {
		if err := cfg.Settings.Validate(); err != nil {
			return fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
		}
	}
	for team, tc := range cfg.Towers {
		if !team.Valid() {
			return fmt.Errorf("%w: unknown team %v", core.ErrInvalidArgument, team)
		}
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("%s tower: %w", team, err)
		}
	}
	for team := range cfg.Spawns {
		if !team.Valid() {
			return fmt.Errorf("%w: unknown team %v", core.ErrInvalidArgument, team)
		}
	}

	created := make(map[model.Team]*core.Tower, len(cfg.Towers))
	for _, team := range model.Teams {
		tc, ok := cfg.Towers[team]
		if !ok {
			continue
		}
		t, err := g.newTower(team, tc)
		if err != nil {
			for _, c := range created {
				c.Remove()
			}
			return err
		}
		created[team] = t
	}

	for _, team := range model.Teams {
		if t, ok := created[team]; ok {
			g.installTower(team, t)
		}
	}
	for team, loc := range cfg.Spawns {
		g.spawns[team] = loc
	}
	if cfg.PowerupSpawn != nil {
		loc := *cfg.PowerupSpawn
		g.powerupSpawn = &loc
	}
	if cfg.Settings != nil {
		settings := model.DefaultSettings()
		for k, v := range cfg.Settings {
			settings[k] = v
		}
		g.settings = settings
	}
	return nil
}
