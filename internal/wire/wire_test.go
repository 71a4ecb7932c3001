package wire

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/model"
)

func TestSnapshot(t *testing.T) {
	pp := model.Location{World: "arena", X: 1, Y: 2, Z: 3}
	spawn := model.Location{World: "arena", X: 9}
	snap := game.Snapshot{
		Phase:         game.PhasePlaying,
		Remaining:     42,
		NextRobotIn:   7,
		NextPowerupIn: 3,
		Winning:       model.TeamRed,
		PowerupSpawn:  &pp,
		Settings:      model.DefaultSettings(),
		Teams: []game.TeamSnapshot{
			{Team: model.TeamBlue, TowerSet: true, Health: 10, MaxHealth: 20, Powerups: 4, Robots: 1, Players: []string{"alice"}, Spawn: &spawn},
			{Team: model.TeamRed},
		},
	}

	got := Snapshot(snap).AsMap()
	if got["phase"] != "playing" || got["remaining"] != 42.0 || got["winning"] != "Red" {
		t.Fatalf("unexpected header fields %v", got)
	}
	if got["powerupSpawn"].(map[string]any)["z"] != 3.0 {
		t.Fatalf("powerup spawn = %v", got["powerupSpawn"])
	}
	if got["settings"].(map[string]any)[model.SettingMaxPlayTime] != 1200.0 {
		t.Fatalf("settings = %v", got["settings"])
	}

	teams := got["teams"].([]any)
	blue := teams[0].(map[string]any)
	if blue["health"] != 10.0 || blue["players"].([]any)[0] != "alice" || blue["spawn"] == nil {
		t.Fatalf("blue = %v", blue)
	}
	red := teams[1].(map[string]any)
	if red["towerSet"] != false {
		t.Fatalf("red = %v", red)
	}
	if _, ok := red["health"]; ok {
		t.Fatalf("unset tower must not report health: %v", red)
	}
}

func TestEvents(t *testing.T) {
	tie := RobotSpawn(model.NoTeam, nil, -1).AsMap()
	if tie["event"] != EventRobotSpawn || tie["team"] != "None" || tie["level"] != -1.0 {
		t.Fatalf("tie = %v", tie)
	}
	if _, ok := tie["robot"]; ok {
		t.Fatalf("tie must not carry a robot")
	}

	end := GameEnd(model.TeamBlue, game.ReasonTowerDestroyed).AsMap()
	if end["event"] != EventGameEnd || end["winner"] != "Blue" || end["reason"] != "tower destroyed" {
		t.Fatalf("end = %v", end)
	}

	// The event name wins over a colliding field.
	ev := Event("custom", map[string]*structpb.Value{"event": structpb.NewStringValue("spoofed")})
	if ev.Fields["event"].GetStringValue() != "custom" {
		t.Fatalf("event name overwritten")
	}
}
