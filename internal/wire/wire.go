// Package wire renders game state as protobuf Struct values for the RPC
// service and the event stream.
package wire

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/persist"
	"github.com/signalsfoundry/siege-simulator/model"
)

// Event names used on the stream.
const (
	EventState          = "state"
	EventGameStart      = "game_start"
	EventTimeChange     = "time_change"
	EventTimeExpired    = "time_expired"
	EventRobotSpawn     = "robot_spawn"
	EventRobotDamage    = "robot_damage"
	EventTowerDamage    = "tower_damage"
	EventPowerupsChange = "powerups_change"
	EventPowerupSpawn   = "powerup_spawn"
	EventGameEnd        = "game_end"
)

func number(n int) *structpb.Value { return structpb.NewNumberValue(float64(n)) }

// Location renders a position.
func Location(l model.Location) *structpb.Value {
	return structpb.NewStructValue(persist.EncodeLocation(l))
}

// Team renders one side of a snapshot.
func Team(ts game.TeamSnapshot) *structpb.Struct {
	players := make([]*structpb.Value, 0, len(ts.Players))
	for _, p := range ts.Players {
		players = append(players, structpb.NewStringValue(p))
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"team":     structpb.NewStringValue(ts.Team.String()),
		"towerSet": structpb.NewBoolValue(ts.TowerSet),
		"players":  structpb.NewListValue(&structpb.ListValue{Values: players}),
	}}
	if ts.TowerSet {
		out.Fields["health"] = number(ts.Health)
		out.Fields["maxHealth"] = number(ts.MaxHealth)
		out.Fields["powerups"] = number(ts.Powerups)
		out.Fields["robots"] = number(ts.Robots)
	}
	if ts.Spawn != nil {
		out.Fields["spawn"] = Location(*ts.Spawn)
	}
	return out
}

// Snapshot renders a full game snapshot.
func Snapshot(s game.Snapshot) *structpb.Struct {
	teams := make([]*structpb.Value, 0, len(s.Teams))
	for _, ts := range s.Teams {
		teams = append(teams, structpb.NewStructValue(Team(ts)))
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"phase":         structpb.NewStringValue(s.Phase.String()),
		"remaining":     number(s.Remaining),
		"nextRobotIn":   number(s.NextRobotIn),
		"nextPowerupIn": number(s.NextPowerupIn),
		"winning":       structpb.NewStringValue(s.Winning.String()),
		"teams":         structpb.NewListValue(&structpb.ListValue{Values: teams}),
		"settings":      structpb.NewStructValue(persist.EncodeSettings(s.Settings)),
	}}
	if s.PowerupSpawn != nil {
		out.Fields["powerupSpawn"] = Location(*s.PowerupSpawn)
	}
	return out
}

// Event builds a stream message named name carrying fields.
func Event(name string, fields map[string]*structpb.Value) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields)+1)}
	for k, v := range fields {
		out.Fields[k] = v
	}
	out.Fields["event"] = structpb.NewStringValue(name)
	return out
}

// State greets a new subscriber. The constructors after it build the message
// for the matching game.Listener hook.

func State(s game.Snapshot) *structpb.Struct {
	return Event(EventState, map[string]*structpb.Value{"snapshot": structpb.NewStructValue(Snapshot(s))})
}

func GameStart(s game.Snapshot) *structpb.Struct {
	return Event(EventGameStart, map[string]*structpb.Value{"snapshot": structpb.NewStructValue(Snapshot(s))})
}

func TimeChange(remaining int) *structpb.Struct {
	return Event(EventTimeChange, map[string]*structpb.Value{"remaining": number(remaining)})
}

func TimeExpired(winning model.Team) *structpb.Struct {
	return Event(EventTimeExpired, map[string]*structpb.Value{"winning": structpb.NewStringValue(winning.String())})
}

func RobotSpawn(team model.Team, robot *core.Robot, level int) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"team":  structpb.NewStringValue(team.String()),
		"level": number(level),
	}
	if robot != nil {
		fields["robot"] = structpb.NewStringValue(robot.ID())
		fields["damage"] = number(robot.DamageOutput())
		fields["health"] = number(robot.MaxHealth())
	}
	return Event(EventRobotSpawn, fields)
}

func RobotDamage(team model.Team, robot *core.Robot, health int) *structpb.Struct {
	return Event(EventRobotDamage, map[string]*structpb.Value{
		"robot":  structpb.NewStringValue(robot.ID()),
		"team":   structpb.NewStringValue(team.String()),
		"health": number(health),
	})
}

func TowerDamage(team model.Team, health int) *structpb.Struct {
	return Event(EventTowerDamage, map[string]*structpb.Value{
		"team":   structpb.NewStringValue(team.String()),
		"health": number(health),
	})
}

func PowerupsChange(team model.Team, amount int) *structpb.Struct {
	return Event(EventPowerupsChange, map[string]*structpb.Value{
		"team":     structpb.NewStringValue(team.String()),
		"powerups": number(amount),
	})
}

func PowerupSpawn(at model.Location) *structpb.Struct {
	return Event(EventPowerupSpawn, map[string]*structpb.Value{"location": Location(at)})
}

func GameEnd(winner model.Team, reason game.EndReason) *structpb.Struct {
	return Event(EventGameEnd, map[string]*structpb.Value{
		"winner": structpb.NewStringValue(winner.String()),
		"reason": structpb.NewStringValue(reason.String()),
	})
}
