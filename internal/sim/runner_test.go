package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/model"
	"github.com/signalsfoundry/siege-simulator/timectrl"
)

func at(x float64) model.Location {
	return model.Location{World: "arena", X: x, Y: 64}
}

func tower(x float64) core.TowerConfig {
	return core.TowerConfig{
		Position:             at(x),
		MaxHealth:            100,
		Damage:               10,
		Radius:               20,
		RobotLevelMultiplier: 0.1,
		RobotBaseDamage:      30,
		RobotBaseHealth:      2000,
	}
}

func newTestRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.Tick = 100 * time.Millisecond
	cfg.Mode = timectrl.Accelerated
	return NewRunner(cfg, nil, opts...)
}

func configure(g *game.Game) error {
	return errors.Join(
		g.SetTower(model.TeamBlue, tower(0)),
		g.SetTower(model.TeamRed, tower(40)),
		g.SetSpawn(model.TeamBlue, at(30)),
		g.SetSpawn(model.TeamRed, at(10)),
		g.SetPowerupSpawn(at(20), 60, 5),
	)
}

type loopMetrics struct {
	mu     sync.Mutex
	steps  int
	events map[string]int
}

func (m *loopMetrics) ObserveStep(time.Duration, int) {
	m.mu.Lock()
	m.steps++
	m.mu.Unlock()
}

func (m *loopMetrics) IncWorldEvent(eventType string) {
	m.mu.Lock()
	if m.events == nil {
		m.events = make(map[string]int)
	}
	m.events[eventType]++
	m.mu.Unlock()
}

func TestRunnerRobotSiege(t *testing.T) {
	metrics := &loopMetrics{}
	r := newTestRunner(t, WithMetricsRecorder(metrics))
	g := r.Game()
	if err := configure(g); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := g.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	robot, err := g.SpawnRobot(model.TeamBlue, 25, 2000)
	if err != nil {
		t.Fatalf("SpawnRobot: %v", err)
	}
	r.StepFor(5 * time.Second)

	red, _ := g.Tower(model.TeamRed)
	if red.Health() > 75 {
		t.Fatalf("robot should have reached and hit the red tower, health=%d", red.Health())
	}
	if (red.MaxHealth()-red.Health())%25 != 0 {
		t.Fatalf("tower damage should come in robot-sized hits, health=%d", red.Health())
	}
	if robot.Health() >= 2000 {
		t.Fatalf("red tower projectiles should have damaged the robot")
	}
	if metrics.steps != 50 {
		t.Fatalf("steps = %d, want 50", metrics.steps)
	}
	if metrics.events["robot_impact"] == 0 || metrics.events["projectile_hit"] == 0 {
		t.Fatalf("world events not counted: %v", metrics.events)
	}
}

func TestRunnerPickupCreditsTeam(t *testing.T) {
	r := newTestRunner(t)
	g := r.Game()
	if err := configure(g); err != nil {
		t.Fatalf("configure: %v", err)
	}

	p, err := r.Sandbox().AddPlayer("alice", at(-30))
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if err := g.SetPlayersTeam(model.TeamBlue, p); err != nil {
		t.Fatalf("SetPlayersTeam: %v", err)
	}
	if err := g.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if _, err := r.Sandbox().DropPowerup(at(-50), 2); err != nil {
		t.Fatalf("DropPowerup: %v", err)
	}
	if err := r.Sandbox().MovePlayer("alice", at(-50)); err != nil {
		t.Fatalf("MovePlayer: %v", err)
	}
	r.Step()

	blue, _ := g.Tower(model.TeamBlue)
	if blue.Powerups() != 2 {
		t.Fatalf("blue powerups = %d, want 2", blue.Powerups())
	}
}

func TestRunnerDoRunsOnLoop(t *testing.T) {
	r := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	err := r.Do(ctx, func(g *game.Game) error { return g.Play() })
	if !errors.Is(err, core.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if err := r.Run(ctx); !errors.Is(err, core.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	err = r.Do(ctx, func(g *game.Game) error {
		if err := configure(g); err != nil {
			return err
		}
		return g.StartGame(2, 1)
	})
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		var phase game.Phase
		_ = r.Do(ctx, func(g *game.Game) error {
			phase = g.Phase()
			return nil
		})
		if phase == game.PhaseEnded {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("game did not end in accelerated mode")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	r := newTestRunner(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Do(ctx, func(*game.Game) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded without a running loop, got %v", err)
	}
}
