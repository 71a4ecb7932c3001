package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/persist"
	"github.com/signalsfoundry/siege-simulator/model"
)

// Defaults applied by the built-in commands.
const (
	DefaultRobotDamage          = 30
	DefaultRobotHealth          = 2000
	DefaultTowerDamage          = 10
	DefaultTowerHealth          = 5000
	DefaultRobotLevelMultiplier = 0.1
)

var teamNames = []string{"Blue", "Red"}

func builtins() []*Command {
	return []*Command{
		{
			Name:     "spawnrobot",
			Usage:    "spawnrobot <team> [damage] [health]",
			Help:     "Spawn a robot for a team at its spawn point.",
			MinArgs:  1,
			Run:      runSpawnRobot,
			Complete: completeAt(teamNames, []string{"<damage>"}, []string{"<health>"}),
		},
		{
			Name:     "setspawn",
			Usage:    "setspawn <team> [world x y z]",
			Help:     "Set where a team's robots appear.",
			MinArgs:  1,
			Run:      runSetSpawn,
			Complete: completeAt(teamNames),
		},
		{
			Name:     "settower",
			Usage:    "settower <team> <radius> [world x y z]",
			Help:     "Create or replace a team's tower.",
			MinArgs:  2,
			Run:      runSetTower,
			Complete: completeAt(teamNames, []string{"<radius>"}),
		},
		{
			Name:     "setppspawn",
			Usage:    "setppspawn <delay> <radius> [world x y z]",
			Help:     "Set the powerup area, its drop delay in seconds and radius in blocks.",
			MinArgs:  2,
			Run:      runSetPowerupSpawn,
			Complete: completeAt([]string{"<delay>"}, []string{"<radius>"}),
		},
		{
			Name:     "setteam",
			Usage:    "setteam <team> <player...>",
			Help:     "Put players on a team.",
			MinArgs:  2,
			Run:      runSetTeam,
			Complete: completeTeamThenPlayers,
		},
		{
			Name:     "removeteam",
			Usage:    "removeteam <player...>",
			Help:     "Remove players from their team.",
			MinArgs:  1,
			Run:      runRemoveTeam,
			Complete: completePlayers,
		},
		{
			Name:     "play",
			Usage:    "play [<play_time> <robot_delay>]",
			Help:     "Start a game, optionally overriding play time and robot delay in seconds.",
			Run:      runPlay,
			Complete: completeAt([]string{"<play_time>"}, []string{"<robot_delay>"}),
		},
		{
			Name:     "stop",
			Usage:    "stop [reason...]",
			Help:     "Stop the running game at the next clock tick.",
			Run:      runStop,
			Complete: completeAt([]string{"<reason>"}),
		},
		{
			Name:     "set",
			Usage:    "set <setting> <value>",
			Help:     "Change a game setting for the next game.",
			MinArgs:  2,
			Run:      runSet,
			Complete: completeAt(model.SettingKeys(), []string{"<value>"}),
		},
		{
			Name:  "detonate",
			Usage: "detonate [world x y z]",
			Help:  "Set off an explosive, damaging towers in range.",
			Run:   runDetonate,
		},
		{
			Name:     "player",
			Usage:    "player <name> <world> <x> <y> <z>",
			Help:     "Add a player or move an existing one.",
			MinArgs:  5,
			Run:      runPlayer,
			Complete: completePlayers,
		},
		{Name: "save", Usage: "save", Help: "Save the arena configuration.", Run: runSave},
		{Name: "load", Usage: "load", Help: "Load the saved arena configuration.", Run: runLoad},
		{Name: "status", Usage: "status", Help: "Show the game state.", Run: runStatus},
	}
}

// location reads an explicit "world x y z" from args, or falls back to the
// sender's position.
func location(inv *Invocation, args []string) (model.Location, error) {
	if len(args) >= 4 {
		l := model.Location{World: args[0]}
		var err error
		for i, dst := range []*float64{&l.X, &l.Y, &l.Z} {
			if *dst, err = parseFloat(args[i+1]); err != nil {
				return model.Location{}, err
			}
		}
		return l, nil
	}
	if len(args) > 0 {
		return model.Location{}, fmt.Errorf("%w: a position needs world x y z", ErrUsage)
	}
	if inv.Sender == nil {
		return model.Location{}, ErrNotAPlayer
	}
	return inv.Sender.Location(), nil
}

func runSpawnRobot(_ context.Context, inv *Invocation) (string, error) {
	team, err := parseTeam(inv.Args[0])
	if err != nil {
		return "", err
	}
	damage, health := DefaultRobotDamage, DefaultRobotHealth
	if len(inv.Args) > 1 {
		if damage, err = parseInt(inv.Args[1]); err != nil {
			return "", err
		}
	}
	if len(inv.Args) > 2 {
		if health, err = parseInt(inv.Args[2]); err != nil {
			return "", err
		}
	}
	if _, err := inv.Game.SpawnRobot(team, damage, health); err != nil {
		return "", err
	}
	return team.String() + " robot spawned successfully", nil
}

func runSetSpawn(_ context.Context, inv *Invocation) (string, error) {
	team, err := parseTeam(inv.Args[0])
	if err != nil {
		return "", err
	}
	at, err := location(inv, inv.Args[1:])
	if err != nil {
		return "", err
	}
	if err := inv.Game.SetSpawn(team, at); err != nil {
		return "", err
	}
	return team.String() + " spawn set successfully", nil
}

func runSetTower(_ context.Context, inv *Invocation) (string, error) {
	team, err := parseTeam(inv.Args[0])
	if err != nil {
		return "", err
	}
	radius, err := parseInt(inv.Args[1])
	if err != nil {
		return "", err
	}
	at, err := location(inv, inv.Args[2:])
	if err != nil {
		return "", err
	}
	cfg := core.TowerConfig{
		Position:             at,
		MaxHealth:            DefaultTowerHealth,
		Damage:               DefaultTowerDamage,
		Radius:               float64(radius),
		RobotLevelMultiplier: DefaultRobotLevelMultiplier,
		RobotBaseDamage:      DefaultRobotDamage,
		RobotBaseHealth:      DefaultRobotHealth,
	}
	if err := inv.Game.SetTower(team, cfg); err != nil {
		return "", err
	}
	return team.String() + " tower created successfully", nil
}

func runSetPowerupSpawn(_ context.Context, inv *Invocation) (string, error) {
	delay, err := parseInt(inv.Args[0])
	if err != nil {
		return "", err
	}
	radius, err := parseInt(inv.Args[1])
	if err != nil {
		return "", err
	}
	at, err := location(inv, inv.Args[2:])
	if err != nil {
		return "", err
	}
	if err := inv.Game.SetPowerupSpawn(at, delay, radius); err != nil {
		return "", err
	}
	return "powerup spawn set successfully", nil
}

func players(inv *Invocation, names []string) ([]core.Player, error) {
	out := make([]core.Player, 0, len(names))
	for _, name := range names {
		p, ok := inv.Sandbox.Player(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, name)
		}
		out = append(out, p)
	}
	return out, nil
}

func runSetTeam(_ context.Context, inv *Invocation) (string, error) {
	team, err := parseTeam(inv.Args[0])
	if err != nil {
		return "", err
	}
	ps, err := players(inv, inv.Args[1:])
	if err != nil {
		return "", err
	}
	if err := inv.Game.SetPlayersTeam(team, ps...); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v team set to %s", inv.Args[1:], team), nil
}

func runRemoveTeam(_ context.Context, inv *Invocation) (string, error) {
	ps, err := players(inv, inv.Args)
	if err != nil {
		return "", err
	}
	if err := inv.Game.RemovePlayersTeam(ps...); err != nil {
		return "", err
	}
	return fmt.Sprintf("%v have been removed from their team", inv.Args), nil
}

func runPlay(_ context.Context, inv *Invocation) (string, error) {
	switch len(inv.Args) {
	case 0:
		if err := inv.Game.Play(); err != nil {
			return "", err
		}
	case 2:
		playTime, err := parseInt(inv.Args[0])
		if err != nil {
			return "", err
		}
		robotDelay, err := parseInt(inv.Args[1])
		if err != nil {
			return "", err
		}
		if err := inv.Game.StartGame(playTime, robotDelay); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: usage: /play [<play_time> <robot_delay>]", ErrUsage)
	}
	return "Game starting...", nil
}

func runStop(_ context.Context, inv *Invocation) (string, error) {
	reason := strings.Join(inv.Args, " ")
	if reason == "" {
		reason = "stopped by operator"
	}
	if err := inv.Game.Stop(reason); err != nil {
		return "", err
	}
	return "Game stopped", nil
}

func runSet(_ context.Context, inv *Invocation) (string, error) {
	value, err := parseInt(inv.Args[1])
	if err != nil {
		return "", err
	}
	if err := inv.Game.SetSetting(inv.Args[0], value); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s set to %d", inv.Args[0], value), nil
}

func runDetonate(_ context.Context, inv *Invocation) (string, error) {
	at, err := location(inv, inv.Args)
	if err != nil {
		return "", err
	}
	if err := inv.Game.Detonate(at); err != nil {
		return "", err
	}
	return fmt.Sprintf("detonated at %s %.1f %.1f %.1f", at.World, at.X, at.Y, at.Z), nil
}

func runPlayer(_ context.Context, inv *Invocation) (string, error) {
	name := inv.Args[0]
	at, err := location(inv, inv.Args[1:5])
	if err != nil {
		return "", err
	}
	if _, ok := inv.Sandbox.Player(name); ok {
		if err := inv.Sandbox.MovePlayer(name, at); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s moved", name), nil
	}
	if _, err := inv.Sandbox.AddPlayer(name, at); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	return fmt.Sprintf("%s joined", name), nil
}

func runSave(ctx context.Context, inv *Invocation) (string, error) {
	if inv.Store == nil {
		return "", ErrNoStore
	}
	if err := persist.Save(ctx, inv.Store, inv.Game.Config()); err != nil {
		return "", err
	}
	return "configuration saved", nil
}

func runLoad(ctx context.Context, inv *Invocation) (string, error) {
	if inv.Store == nil {
		return "", ErrNoStore
	}
	cfg, err := persist.Load(ctx, inv.Store)
	if err != nil {
		return "", err
	}
	if err := inv.Game.ApplyConfig(cfg); err != nil {
		return "", err
	}
	return "configuration loaded", nil
}

func runStatus(_ context.Context, inv *Invocation) (string, error) {
	snap := inv.Game.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "phase=%s remaining=%ds next_robot=%ds next_powerup=%ds winning=%s",
		snap.Phase, snap.Remaining, snap.NextRobotIn, snap.NextPowerupIn, snap.Winning)
	for _, ts := range snap.Teams {
		fmt.Fprintf(&b, "\n[%s] ", ts.Team)
		if !ts.TowerSet {
			b.WriteString("no tower")
		} else {
			fmt.Fprintf(&b, "health=%d/%d powerups=%d robots=%d", ts.Health, ts.MaxHealth, ts.Powerups, ts.Robots)
		}
		if len(ts.Players) > 0 {
			fmt.Fprintf(&b, " players=%s", strings.Join(ts.Players, ","))
		}
	}
	return b.String(), nil
}

// completeAt suggests fixed values by argument index.
func completeAt(byIndex ...[]string) func(*Invocation, int) []string {
	return func(_ *Invocation, i int) []string {
		if i < len(byIndex) {
			return byIndex[i]
		}
		return nil
	}
}

func completePlayers(inv *Invocation, _ int) []string {
	if inv.Sandbox == nil {
		return nil
	}
	var names []string
	for _, p := range inv.Sandbox.Players() {
		names = append(names, p.Name())
	}
	return names
}

func completeTeamThenPlayers(inv *Invocation, i int) []string {
	if i == 0 {
		return teamNames
	}
	return completePlayers(inv, i)
}
