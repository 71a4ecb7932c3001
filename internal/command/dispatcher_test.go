package command

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/persist"
	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
	"github.com/signalsfoundry/siege-simulator/world"
)

type fixture struct {
	d       *Dispatcher
	g       *game.Game
	sandbox *world.Sandbox
	sched   *sched.FakeEventScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sb := world.NewSandbox(world.DefaultConfig())
	s := sched.NewFakeEventScheduler(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return &fixture{
		d:       NewDispatcher(sb, persist.NewFileStore(t.TempDir()), nil),
		g:       game.New(sb, s, nil),
		sandbox: sb,
		sched:   s,
	}
}

func (f *fixture) run(sender, line string) Result {
	return f.d.Execute(context.Background(), f.g, sender, line)
}

func (f *fixture) mustRun(t *testing.T, sender, line string) string {
	t.Helper()
	res := f.run(sender, line)
	if res.Err != nil {
		t.Fatalf("%q: %v", line, res.Err)
	}
	return res.Message
}

// arena sets up a playable arena from the console.
func (f *fixture) arena(t *testing.T) {
	t.Helper()
	for _, line := range []string{
		"settower Blue 20 arena 0 64 0",
		"settower Red 20 arena 100 64 0",
		"setspawn Blue arena 10 64 0",
		"setspawn Red arena 90 64 0",
		"setppspawn 30 5 arena 50 64 50",
	} {
		f.mustRun(t, "", line)
	}
}

func TestTowerAtSenderLocation(t *testing.T) {
	f := newFixture(t)

	res := f.run("", "settower Blue 30")
	if !errors.Is(res.Err, ErrNotAPlayer) {
		t.Fatalf("expected ErrNotAPlayer, got %v", res.Err)
	}
	if got := Describe(res); got != "Command error: this command can be called only by players" {
		t.Fatalf("Describe = %q", got)
	}

	f.mustRun(t, "", "player alice arena 5 70 -3")
	msg := f.mustRun(t, "alice", "/settower blue 30")
	if msg != "Blue tower created successfully" {
		t.Fatalf("message = %q", msg)
	}
	tower, ok := f.g.Tower(model.TeamBlue)
	if !ok {
		t.Fatalf("tower not set")
	}
	cfg := tower.Config()
	want := core.TowerConfig{
		Position:             model.Location{World: "arena", X: 5, Y: 70, Z: -3},
		MaxHealth:            DefaultTowerHealth,
		Damage:               DefaultTowerDamage,
		Radius:               30,
		RobotLevelMultiplier: DefaultRobotLevelMultiplier,
		RobotBaseDamage:      DefaultRobotDamage,
		RobotBaseHealth:      DefaultRobotHealth,
	}
	if cfg != want {
		t.Fatalf("tower config = %+v, want %+v", cfg, want)
	}
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "", "player alice arena 0 64 0")

	tests := []struct {
		line string
		want error
		msg  string
	}{
		{"settower Green 30", ErrInvalidTeam, "Command error: invalid team color"},
		{"settower Red far", ErrNotANumber, "Command error: some args are not numbers"},
		{"settower Red", ErrUsage, "Command error: wrong number of arguments: usage: /settower <team> <radius> [world x y z]"},
		{"setspawn Red arena 1 2", ErrUsage, ""},
		{"fly", ErrUnknownCommand, "Command error: unknown command: fly"},
		{"setteam Red bob", ErrUnknownPlayer, "Command error: unknown player: bob"},
		{"play 10", ErrUsage, ""},
		{"play", core.ErrMissingConfiguration, ""},
		{"spawnrobot Red", core.ErrInvalidState, ""},
		{"stop", core.ErrInvalidState, ""},
		{"set unknown 3", core.ErrInvalidArgument, ""},
		{"setppspawn 0 5", core.ErrInvalidArgument, ""},
	}
	for _, tt := range tests {
		res := f.run("alice", tt.line)
		if !errors.Is(res.Err, tt.want) {
			t.Fatalf("%q: expected %v, got %v", tt.line, tt.want, res.Err)
		}
		if res.OK() {
			t.Fatalf("%q: expected failure", tt.line)
		}
		if tt.msg != "" && Describe(res) != tt.msg {
			t.Fatalf("%q: Describe = %q, want %q", tt.line, Describe(res), tt.msg)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	f := newFixture(t)
	f.d.Register(&Command{
		Name: "explode",
		Run: func(context.Context, *Invocation) (string, error) {
			return "", errors.New("disk on fire")
		},
	})
	if got := Describe(f.run("", "explode")); got != "Internal error: please check the server log." {
		t.Fatalf("Describe = %q", got)
	}
}

func TestGameFlowThroughCommands(t *testing.T) {
	f := newFixture(t)
	f.arena(t)
	f.mustRun(t, "", "player alice arena -40 64 0")
	f.mustRun(t, "", "player bob arena 140 64 0")

	if msg := f.mustRun(t, "", "setteam Blue alice"); msg != "[alice] team set to Blue" {
		t.Fatalf("setteam message = %q", msg)
	}
	f.mustRun(t, "", "setteam Red bob")
	if msg := f.mustRun(t, "", "removeteam bob"); msg != "[bob] have been removed from their team" {
		t.Fatalf("removeteam message = %q", msg)
	}
	f.mustRun(t, "", "setteam Red bob")

	if msg := f.mustRun(t, "", "play 60 10"); msg != "Game starting..." {
		t.Fatalf("play message = %q", msg)
	}
	if s := f.g.Settings(); s.Get(model.SettingMaxPlayTime) != 60 || s.Get(model.SettingRobotSpawnDelay) != 10 {
		t.Fatalf("play arguments not stored: %v", s)
	}

	if msg := f.mustRun(t, "", "spawnrobot Red"); msg != "Red robot spawned successfully" {
		t.Fatalf("spawnrobot message = %q", msg)
	}
	red, _ := f.g.Tower(model.TeamRed)
	robots := red.AllyRobots()
	if len(robots) != 1 || robots[0].DamageOutput() != DefaultRobotDamage || robots[0].MaxHealth() != DefaultRobotHealth {
		t.Fatalf("unexpected robots %v", robots)
	}
	f.mustRun(t, "", "spawnrobot blue 5 50")

	status := f.mustRun(t, "", "status")
	if !strings.Contains(status, "phase=playing") || !strings.Contains(status, "players=bob") {
		t.Fatalf("status = %q", status)
	}

	if msg := f.mustRun(t, "", "stop maintenance window"); msg != "Game stopped" {
		t.Fatalf("stop message = %q", msg)
	}
	f.sched.Advance(time.Second)
	if f.g.Phase() != game.PhaseEnded {
		t.Fatalf("game should end on the next tick")
	}
}

func TestDetonateFromConsole(t *testing.T) {
	f := newFixture(t)
	f.arena(t)
	f.mustRun(t, "", "play")
	f.mustRun(t, "", "detonate arena 101 64 0")
	red, _ := f.g.Tower(model.TeamRed)
	if red.Health() != DefaultTowerHealth-game.ExplosiveDamage {
		t.Fatalf("red health = %d", red.Health())
	}
}

func TestSaveAndLoad(t *testing.T) {
	f := newFixture(t)
	if res := f.run("", "save"); !errors.Is(res.Err, core.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", res.Err)
	}
	f.arena(t)
	f.mustRun(t, "", "set maxPlayTime 45")
	f.mustRun(t, "", "save")

	f.mustRun(t, "", "settower Blue 99 arena 7 64 7")
	f.mustRun(t, "", "set maxPlayTime 90")
	if msg := f.mustRun(t, "", "load"); msg != "configuration loaded" {
		t.Fatalf("load message = %q", msg)
	}
	blue, _ := f.g.Tower(model.TeamBlue)
	if blue.Config().Radius != 20 || blue.Position().X != 0 {
		t.Fatalf("tower not restored: %+v", blue.Config())
	}
	if f.g.Settings().Get(model.SettingMaxPlayTime) != 45 {
		t.Fatalf("settings not restored")
	}

	noStore := NewDispatcher(f.sandbox, nil, nil)
	if res := noStore.Execute(context.Background(), f.g, "", "save"); !errors.Is(res.Err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", res.Err)
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "", "player alice arena 0 64 0")
	f.mustRun(t, "", "player albert arena 0 64 0")

	tests := []struct {
		line string
		want []string
	}{
		{"set", []string{"set", "setppspawn", "setspawn", "setteam", "settower"}},
		{"settower ", []string{"Blue", "Red"}},
		{"settower b", []string{"Blue"}},
		{"settower Red ", []string{"<radius>"}},
		{"play 5 ", []string{"<robot_delay>"}},
		{"setteam Red al", []string{"albert", "alice"}},
		{"removeteam ", []string{"albert", "alice"}},
		{"nope ", nil},
	}
	for _, tt := range tests {
		got := f.d.Complete(f.g, "", tt.line)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Complete(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
