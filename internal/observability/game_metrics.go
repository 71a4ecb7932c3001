package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/model"
)

// GameCollector turns game events into Prometheus metrics. Register it with
// Attach so listener faults are counted too.
type GameCollector struct {
	game.BaseListener

	TowerHealth    *prometheus.GaugeVec
	TowerPowerups  *prometheus.GaugeVec
	TimeRemaining  prometheus.Gauge
	RobotsSpawned  *prometheus.CounterVec
	SpawnTies      prometheus.Counter
	PowerupDrops   prometheus.Counter
	GamesStarted   prometheus.Counter
	GamesEnded     *prometheus.CounterVec
	ListenerFaults *prometheus.CounterVec
}

// NewGameCollector registers game metrics against reg.
func NewGameCollector(reg prometheus.Registerer) (*GameCollector, error) {
	reg, _ = resolve(reg)
	c := &GameCollector{}
	var err error

	if c.TowerHealth, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "siege_tower_health",
		Help: "Current tower health by team.",
	}, []string{"team"})); err != nil {
		return nil, err
	}
	if c.TowerPowerups, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "siege_tower_powerups",
		Help: "Powerups banked by each team's tower.",
	}, []string{"team"})); err != nil {
		return nil, err
	}
	if c.TimeRemaining, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "siege_time_remaining_seconds",
		Help: "Seconds left in the running game.",
	})); err != nil {
		return nil, err
	}
	if c.RobotsSpawned, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "siege_robots_spawned_total",
		Help: "Robots spawned by team.",
	}, []string{"team"})); err != nil {
		return nil, err
	}
	if c.SpawnTies, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "siege_robot_spawn_ties_total",
		Help: "Scheduled spawns skipped because both teams had equal powerups.",
	})); err != nil {
		return nil, err
	}
	if c.PowerupDrops, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "siege_powerup_drops_total",
		Help: "Powerups dropped in the powerup area.",
	})); err != nil {
		return nil, err
	}
	if c.GamesStarted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "siege_games_started_total",
		Help: "Games started.",
	})); err != nil {
		return nil, err
	}
	if c.GamesEnded, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "siege_games_ended_total",
		Help: "Games ended, labeled by winner and reason.",
	}, []string{"winner", "reason"})); err != nil {
		return nil, err
	}
	if c.ListenerFaults, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "siege_listener_faults_total",
		Help: "Listener callbacks that panicked, by hook.",
	}, []string{"hook"})); err != nil {
		return nil, err
	}
	return c, nil
}

// Attach registers c as a listener of g and counts g's listener faults. It
// returns the function that removes the listener.
func (c *GameCollector) Attach(g *game.Game) (remove func()) {
	g.Listeners().OnFault(func(hook string, _ any) {
		c.ListenerFaults.WithLabelValues(hook).Inc()
	})
	return g.AddListener(c)
}

func (c *GameCollector) OnGameStart(snap game.Snapshot) {
	c.GamesStarted.Inc()
	c.TimeRemaining.Set(float64(snap.Remaining))
	for _, ts := range snap.Teams {
		c.TowerHealth.WithLabelValues(ts.Team.String()).Set(float64(ts.Health))
		c.TowerPowerups.WithLabelValues(ts.Team.String()).Set(float64(ts.Powerups))
	}
}

func (c *GameCollector) OnTimeChange(remaining int) {
	c.TimeRemaining.Set(float64(remaining))
}

func (c *GameCollector) OnRobotSpawn(team model.Team, robot *core.Robot, _ int) {
	if robot == nil {
		c.SpawnTies.Inc()
		return
	}
	c.RobotsSpawned.WithLabelValues(team.String()).Inc()
}

func (c *GameCollector) OnTowerDamage(team model.Team, health int) {
	c.TowerHealth.WithLabelValues(team.String()).Set(float64(health))
}

func (c *GameCollector) OnPowerupsChange(team model.Team, amount int) {
	c.TowerPowerups.WithLabelValues(team.String()).Set(float64(amount))
}

func (c *GameCollector) OnPowerupSpawn(model.Location) {
	c.PowerupDrops.Inc()
}

func (c *GameCollector) OnGameEnd(winner model.Team, reason game.EndReason) {
	c.TimeRemaining.Set(0)
	c.GamesEnded.WithLabelValues(winner.String(), strings.ReplaceAll(reason.String(), " ", "_")).Inc()
}
