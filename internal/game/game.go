// Package game implements the siege orchestrator: the idle/playing/ended
// state machine, the per-second game clock, robot spawn decisions and event
// broadcast to listeners.
//
// A Game is not safe for concurrent use. It must be driven from a single
// goroutine, normally the sim.Runner loop that also runs the scheduler.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
	"github.com/signalsfoundry/siege-simulator/timectrl"
)

const (
	// RobotBlastRadius is how close a robot projectile must land to a tower
	// to damage it.
	RobotBlastRadius = 3.0
	// ExplosiveBlastRadius is how close a detonation must be to a tower to
	// damage it.
	ExplosiveBlastRadius = 10.0
	// ExplosiveDamage is the damage a detonation deals to a tower in range.
	ExplosiveDamage = 50

	clockPeriod = time.Second
)

// Phase is the orchestrator state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePlaying
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseEnded:
		return "ended"
	default:
		return "idle"
	}
}

// EndReason says why a game ended.
type EndReason int

const (
	ReasonTimeExpired EndReason = iota
	ReasonTowerDestroyed
	ReasonStopped
)

func (r EndReason) String() string {
	switch r {
	case ReasonTowerDestroyed:
		return "tower destroyed"
	case ReasonStopped:
		return "stopped"
	default:
		return "time expired"
	}
}

// Option customises Game construction.
type Option func(*Game)

// WithRand sets the random source used for powerup placement.
func WithRand(r *rand.Rand) Option {
	return func(g *Game) { g.rand = r }
}

// WithListeners registers listeners at construction, in order.
func WithListeners(ls ...Listener) Option {
	return func(g *Game) {
		for _, l := range ls {
			g.listeners.Add(l)
		}
	}
}

// WithSettings replaces the default settings. Invalid settings are ignored
// with a warning.
func WithSettings(s model.Settings) Option {
	return func(g *Game) {
		if err := s.Validate(); err != nil {
			g.log.Warn(context.Background(), "ignoring invalid settings", logging.Err(err))
			return
		}
		g.settings = s.Clone()
	}
}

// Game is the orchestrator for one arena.
type Game struct {
	world core.World
	sched sched.EventScheduler
	log   logging.Logger
	rand  *rand.Rand

	listeners *Registry
	roster    *core.Roster
	settings  model.Settings

	phase        Phase
	towers       map[model.Team]*core.Tower
	towerUnsubs  map[model.Team][]func()
	spawns       map[model.Team]model.Location
	powerupSpawn *model.Location

	clock     *timectrl.Countdown
	clockTask *sched.Task
	spawner   *PowerupSpawner

	robots map[string]*core.Robot

	robotDelay    int
	powerupDelay  int
	nextRobotIn   int
	nextPowerupIn int
	stopRequested bool
	stopReason    string
	lastWinner    model.Team
	lastReason    EndReason
	gamesPlayed   int
}

// New constructs an idle game bound to a world and scheduler.
func New(world core.World, s sched.EventScheduler, log logging.Logger, opts ...Option) *Game {
	if log == nil {
		log = logging.Noop()
	}
	g := &Game{
		world:       world,
		sched:       s,
		log:         log,
		rand:        rand.New(rand.NewPCG(uint64(s.Now().UnixNano()), 0x5eed)),
		listeners:   NewRegistry(log),
		roster:      core.NewRoster(),
		settings:    model.DefaultSettings(),
		towers:      make(map[model.Team]*core.Tower),
		towerUnsubs: make(map[model.Team][]func()),
		spawns:      make(map[model.Team]model.Location),
		robots:      make(map[string]*core.Robot),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.clock = timectrl.NewCountdown(g.onClockTick, g.onClockExpire)
	g.spawner = NewPowerupSpawner(world, s, g.rand, log, g.listeners.powerupSpawn)
	return g
}

// Listeners returns the registry so callers can add and remove listeners.
func (g *Game) Listeners() *Registry { return g.listeners }

// AddListener registers a listener and returns a function that removes it.
func (g *Game) AddListener(l Listener) (remove func()) { return g.listeners.Add(l) }

// Phase returns the current phase.
func (g *Game) Phase() Phase { return g.phase }

// Playing reports whether a game is in progress.
func (g *Game) Playing() bool { return g.phase == PhasePlaying }

// Remaining returns the seconds left on the game clock.
func (g *Game) Remaining() int { return g.clock.Remaining() }

// NextRobotIn returns the seconds until the next robot spawn decision.
func (g *Game) NextRobotIn() int { return g.nextRobotIn }

// NextPowerupIn returns the seconds shown until the next powerup drop.
func (g *Game) NextPowerupIn() int { return g.nextPowerupIn }

// Tower returns the team's tower, if configured.
func (g *Game) Tower(team model.Team) (*core.Tower, bool) {
	t, ok := g.towers[team]
	return t, ok
}

// Spawn returns the team's robot spawn, if configured.
func (g *Game) Spawn(team model.Team) (model.Location, bool) {
	l, ok := g.spawns[team]
	return l, ok
}

// PowerupSpawn returns the centre of the powerup area, if configured.
func (g *Game) PowerupSpawn() (model.Location, bool) {
	if g.powerupSpawn == nil {
		return model.Location{}, false
	}
	return *g.powerupSpawn, true
}

// Settings returns a copy of the current settings.
func (g *Game) Settings() model.Settings { return g.settings.Clone() }

// Roster returns the team roster.
func (g *Game) Roster() *core.Roster { return g.roster }

// Robot returns a live robot by ID.
func (g *Game) Robot(id string) (*core.Robot, bool) {
	r, ok := g.robots[id]
	return r, ok
}

// LastResult returns the winner and reason of the most recent game.
func (g *Game) LastResult() (model.Team, EndReason, bool) {
	return g.lastWinner, g.lastReason, g.gamesPlayed > 0
}

// ---- Configuration ----

// SetTower creates or replaces a team's tower. It is rejected while playing.
func (g *Game) SetTower(team model.Team, cfg core.TowerConfig) error {
	if g.phase == PhasePlaying {
		return fmt.Errorf("%w: cannot change towers while a game is running", core.ErrInvalidState)
	}
	if !team.Valid() {
		return fmt.Errorf("%w: unknown team %v", core.ErrInvalidArgument, team)
	}
	tower, err := g.newTower(team, cfg)
	if err != nil {
		return err
	}
	g.installTower(team, tower)
	return nil
}

func (g *Game) newTower(team model.Team, cfg core.TowerConfig) (*core.Tower, error) {
	return core.NewTower(team, cfg, core.Env{
		World:     g.world,
		Scheduler: g.sched,
		Players:   g.roster,
		Logger:    g.log,
	})
}

func (g *Game) installTower(team model.Team, tower *core.Tower) {
	if old, ok := g.towers[team]; ok {
		for _, unsub := range g.towerUnsubs[team] {
			unsub()
		}
		old.Remove()
	}
	g.towers[team] = tower
	g.towerUnsubs[team] = []func(){
		tower.OnDamage(func(c core.HealthChange) {
			g.listeners.towerDamage(team, clampZero(c.Current))
		}),
		tower.OnPowerupsChange(func(n int) {
			g.listeners.powerupsChange(team, n)
		}),
		tower.OnDestroyed(func() {
			if g.phase == PhasePlaying {
				g.end(ReasonTowerDestroyed)
			}
		}),
	}
	g.log.Info(context.Background(), "tower set",
		logging.Team(team),
		logging.Location("position", tower.Position()),
		logging.Int("max_health", tower.MaxHealth()),
	)
}

// SetSpawn sets where a team's robots appear.
func (g *Game) SetSpawn(team model.Team, at model.Location) error {
	if !team.Valid() {
		return fmt.Errorf("%w: unknown team %v", core.ErrInvalidArgument, team)
	}
	g.spawns[team] = at
	return nil
}

// SetPowerupSpawn sets the centre of the powerup area together with the drop
// delay in seconds and the area radius in blocks.
func (g *Game) SetPowerupSpawn(at model.Location, delay, radius int) error {
	if g.phase == PhasePlaying {
		return fmt.Errorf("%w: cannot move the powerup area during a game", core.ErrInvalidState)
	}
	if err := model.ValidateSetting(model.SettingPowerupSpawnDelay, delay); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	if err := model.ValidateSetting(model.SettingPowerupSpawnRadius, radius); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	loc := at
	g.powerupSpawn = &loc
	g.settings[model.SettingPowerupSpawnDelay] = delay
	g.settings[model.SettingPowerupSpawnRadius] = radius
	return nil
}

// SetSetting updates one of the recognized settings for the next Play. It is
// rejected while a game is running.
func (g *Game) SetSetting(key string, value int) error {
	if g.phase == PhasePlaying {
		return fmt.Errorf("%w: cannot change settings during a game", core.ErrInvalidState)
	}
	if err := g.settings.Set(key, value); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	return nil
}

// SetPlayersTeam places players on a team. Nothing changes unless every
// player can join.
func (g *Game) SetPlayersTeam(team model.Team, players ...core.Player) error {
	if g.phase == PhasePlaying {
		return fmt.Errorf("%w: cannot change teams while a game is running", core.ErrInvalidState)
	}
	if !team.Valid() {
		return fmt.Errorf("%w: unknown team %v", core.ErrInvalidArgument, team)
	}
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p == nil {
			return fmt.Errorf("%w: nil player", core.ErrInvalidArgument)
		}
		if current, ok := g.roster.TeamOf(p.ID()); ok {
			return fmt.Errorf("%w: player %s already in team %s", core.ErrInvalidState, p.Name(), current)
		}
		if seen[p.ID()] {
			return fmt.Errorf("%w: player %s listed twice", core.ErrInvalidArgument, p.Name())
		}
		seen[p.ID()] = true
	}
	for _, p := range players {
		if err := g.roster.Join(team, p); err != nil {
			return err
		}
	}
	return nil
}

// RemovePlayersTeam removes players from their teams. Nothing changes unless
// every player is on a team.
func (g *Game) RemovePlayersTeam(players ...core.Player) error {
	if g.phase == PhasePlaying {
		return fmt.Errorf("%w: cannot change teams while a game is running", core.ErrInvalidState)
	}
	for _, p := range players {
		if p == nil {
			return fmt.Errorf("%w: nil player", core.ErrInvalidArgument)
		}
		if _, ok := g.roster.TeamOf(p.ID()); !ok {
			return fmt.Errorf("%w: player %s is not in a team", core.ErrInvalidState, p.Name())
		}
	}
	for _, p := range players {
		if err := g.roster.Leave(p); err != nil {
			return err
		}
	}
	return nil
}

// ---- Lifecycle ----

// CheckState reports the first missing piece of configuration.
func (g *Game) CheckState() error {
	for _, team := range model.Teams {
		if _, ok := g.towers[team]; !ok {
			return fmt.Errorf("%w: %s tower not set", core.ErrMissingConfiguration, team)
		}
	}
	for _, team := range model.Teams {
		if _, ok := g.spawns[team]; !ok {
			return fmt.Errorf("%w: %s spawn not set", core.ErrMissingConfiguration, team)
		}
	}
	if g.powerupSpawn == nil {
		return fmt.Errorf("%w: powerup spawn not set", core.ErrMissingConfiguration)
	}
	return nil
}

// Play starts a game using the current settings.
func (g *Game) Play() error {
	return g.play(g.settings.Get(model.SettingMaxPlayTime), g.settings.Get(model.SettingRobotSpawnDelay))
}

// StartGame stores the play time and robot spawn delay, in seconds, and
// starts a game with them.
func (g *Game) StartGame(maxPlayTime, robotSpawnDelay int) error {
	if err := model.ValidateSetting(model.SettingMaxPlayTime, maxPlayTime); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	if err := model.ValidateSetting(model.SettingRobotSpawnDelay, robotSpawnDelay); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	if err := g.play(maxPlayTime, robotSpawnDelay); err != nil {
		return err
	}
	g.settings[model.SettingMaxPlayTime] = maxPlayTime
	g.settings[model.SettingRobotSpawnDelay] = robotSpawnDelay
	return nil
}

func (g *Game) play(maxPlayTime, robotDelay int) error {
	if g.phase == PhasePlaying {
		return core.ErrAlreadyRunning
	}
	if err := g.CheckState(); err != nil {
		return err
	}
	for _, team := range model.Teams {
		if g.towers[team].Armed() {
			return fmt.Errorf("%w: %s tower still armed", core.ErrInvalidState, team)
		}
	}

	g.robotDelay = robotDelay
	g.powerupDelay = g.settings.Get(model.SettingPowerupSpawnDelay)
	g.nextRobotIn = g.robotDelay
	g.nextPowerupIn = g.powerupDelay
	g.stopRequested = false
	g.stopReason = ""

	for _, team := range model.Teams {
		if err := g.towers[team].Start(); err != nil {
			return err
		}
	}
	g.phase = PhasePlaying

	g.clock.Start(maxPlayTime)
	g.listeners.timeChange(g.clock.Remaining())
	g.clockTask = sched.Every(g.sched, clockPeriod, clockPeriod, func(task *sched.Task) {
		if g.phase != PhasePlaying {
			task.Cancel()
			return
		}
		g.clock.Tick()
	})
	g.spawner.Start(*g.powerupSpawn,
		time.Duration(g.powerupDelay)*time.Second,
		float64(g.settings.Get(model.SettingPowerupSpawnRadius)))

	g.log.Info(context.Background(), "game started",
		logging.Int("max_play_time", maxPlayTime),
		logging.Int("robot_spawn_delay", robotDelay),
		logging.Int("players", g.roster.Len()),
	)
	g.listeners.gameStart(g.Snapshot())
	return nil
}

// Stop ends the running game at the next clock tick. reason is logged.
func (g *Game) Stop(reason string) error {
	if g.phase != PhasePlaying {
		return fmt.Errorf("%w: no game is running", core.ErrInvalidState)
	}
	g.stopRequested = true
	g.stopReason = reason
	g.clock.ForceExpire()
	g.log.Info(context.Background(), "game stop requested", logging.String("reason", reason))
	return nil
}

// ExpireTimer makes the next clock tick the last one.
func (g *Game) ExpireTimer() error {
	if g.phase != PhasePlaying {
		return fmt.Errorf("%w: no game is running", core.ErrInvalidState)
	}
	g.clock.ForceExpire()
	return nil
}

// Shutdown ends any running game immediately, removes tower markers and
// detaches every listener. The game can be reconfigured afterwards.
func (g *Game) Shutdown() {
	if g.phase == PhasePlaying {
		g.end(ReasonStopped)
	}
	for team, t := range g.towers {
		for _, unsub := range g.towerUnsubs[team] {
			unsub()
		}
		t.Remove()
	}
	g.towers = make(map[model.Team]*core.Tower)
	g.towerUnsubs = make(map[model.Team][]func())
	g.listeners.Clear()
}

// Winning returns the team whose tower has strictly more health, or NoTeam.
func (g *Game) Winning() model.Team {
	blue, okBlue := g.towers[model.TeamBlue]
	red, okRed := g.towers[model.TeamRed]
	if !okBlue || !okRed {
		return model.NoTeam
	}
	switch {
	case blue.Health() > red.Health():
		return model.TeamBlue
	case red.Health() > blue.Health():
		return model.TeamRed
	default:
		return model.NoTeam
	}
}

func (g *Game) onClockTick(remaining int) {
	g.listeners.timeChange(remaining)
	if remaining <= 0 {
		return
	}

	g.nextPowerupIn--
	if g.nextPowerupIn <= 0 {
		g.nextPowerupIn = g.powerupDelay
	}

	g.nextRobotIn--
	if g.nextRobotIn <= 0 {
		g.nextRobotIn = g.robotDelay
		g.spawnRichest()
	}
}

func (g *Game) onClockExpire() {
	g.listeners.timeExpired(g.Winning())
	if g.phase != PhasePlaying {
		return
	}
	reason := ReasonTimeExpired
	if g.stopRequested {
		reason = ReasonStopped
	}
	g.end(reason)
}

// spawnRichest spawns a robot for the team with strictly more powerups.
func (g *Game) spawnRichest() {
	blue := g.towers[model.TeamBlue].Powerups()
	red := g.towers[model.TeamRed].Powerups()

	var team model.Team
	switch {
	case blue > red:
		team = model.TeamBlue
	case red > blue:
		team = model.TeamRed
	default:
		g.listeners.robotSpawn(model.NoTeam, nil, -1)
		return
	}

	level := g.towers[team].Powerups()
	robot, err := g.spawnRobot(team, func(t, enemy *core.Tower, at model.Location) (*core.Robot, error) {
		return t.CreateRobot(at, enemy)
	})
	if err != nil {
		g.log.Error(context.Background(), "robot spawn failed",
			logging.Team(team), logging.Err(err))
		return
	}
	g.listeners.robotSpawn(team, robot, level)
}

// SpawnRobot spawns a robot for team with explicit base stats while a game is
// running. The economy is consumed as for any spawn.
func (g *Game) SpawnRobot(team model.Team, damage, health int) (*core.Robot, error) {
	if g.phase != PhasePlaying {
		return nil, fmt.Errorf("%w: no game is running", core.ErrInvalidState)
	}
	if !team.Valid() {
		return nil, fmt.Errorf("%w: unknown team %v", core.ErrInvalidArgument, team)
	}
	if damage <= 0 || health <= 0 {
		return nil, fmt.Errorf("%w: robot damage and health must be positive", core.ErrInvalidArgument)
	}
	robot, err := g.spawnRobot(team, func(t, enemy *core.Tower, at model.Location) (*core.Robot, error) {
		return t.CreateRobotWith(at, enemy, damage, health)
	})
	if err != nil {
		return nil, err
	}
	g.listeners.robotSpawn(team, robot, 0)
	return robot, nil
}

func (g *Game) spawnRobot(team model.Team, create func(t, enemy *core.Tower, at model.Location) (*core.Robot, error)) (*core.Robot, error) {
	robot, err := create(g.towers[team], g.towers[team.Opponent()], g.spawns[team])
	if err != nil {
		return nil, err
	}
	g.robots[robot.ID()] = robot
	robot.OnDamage(func(c core.HealthChange) {
		g.listeners.robotDamage(team, robot, clampZero(c.Current))
	})
	robot.OnDeath(func() {
		delete(g.robots, robot.ID())
	})
	return robot, nil
}

// end finishes the running game. The winner is decided before the towers
// are stopped.
func (g *Game) end(reason EndReason) {
	if g.phase != PhasePlaying {
		return
	}
	winner := g.Winning()
	g.phase = PhaseEnded

	g.clock.Stop()
	g.clockTask.Cancel()
	g.spawner.Stop()
	for _, team := range model.Teams {
		g.towers[team].Stop()
	}
	g.roster.Clear()

	g.lastWinner, g.lastReason = winner, reason
	g.gamesPlayed++

	fields := []logging.Field{
		logging.String("winner", winner.String()),
		logging.String("reason", reason.String()),
	}
	if g.stopReason != "" {
		fields = append(fields, logging.String("stop_reason", g.stopReason))
	}
	g.log.Info(context.Background(), "game ended", fields...)
	g.listeners.gameEnd(winner, reason)
}

// ---- World-driven events ----

// CollectPowerup credits a pickup to the collecting player's team.
func (g *Game) CollectPowerup(playerID string, amount int) error {
	if g.phase != PhasePlaying {
		return fmt.Errorf("%w: no game is running", core.ErrInvalidState)
	}
	team, ok := g.roster.TeamOf(playerID)
	if !ok {
		return fmt.Errorf("%w: player %s is not in a team", core.ErrInvalidArgument, playerID)
	}
	return g.towers[team].AddPowerups(amount)
}

// DamageRobot applies damage to a live robot.
func (g *Game) DamageRobot(robotID string, amount int) error {
	robot, ok := g.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: unknown robot %s", core.ErrInvalidArgument, robotID)
	}
	return robot.Damage(amount)
}

// RobotImpact applies a robot's damage to every tower within the blast radius
// of the impact point, whichever team it belongs to.
func (g *Game) RobotImpact(robotID string, at model.Location) error {
	if g.phase != PhasePlaying {
		return fmt.Errorf("%w: no game is running", core.ErrInvalidState)
	}
	robot, ok := g.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: unknown robot %s", core.ErrInvalidArgument, robotID)
	}
	return g.blast(at, RobotBlastRadius, robot.DamageOutput())
}

// Detonate applies explosive damage to every tower within range of at.
func (g *Game) Detonate(at model.Location) error {
	if g.phase != PhasePlaying {
		return fmt.Errorf("%w: no game is running", core.ErrInvalidState)
	}
	return g.blast(at, ExplosiveBlastRadius, ExplosiveDamage)
}

// blast damages each tower strictly closer than radius to at.
func (g *Game) blast(at model.Location, radius float64, damage int) error {
	for _, team := range model.Teams {
		// The first tower's destruction may end the game.
		if g.phase != PhasePlaying {
			break
		}
		t := g.towers[team]
		if g.world.Distance(at, t.Position()) < radius {
			if err := t.Damage(damage); err != nil {
				return err
			}
		}
	}
	return nil
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
