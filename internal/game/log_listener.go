package game

import (
	"context"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/model"
)

// LogListener writes game events to a structured logger. Per-second and
// damage events are logged at debug level.
type LogListener struct {
	log logging.Logger
}

// NewLogListener returns a listener that logs to log.
func NewLogListener(log logging.Logger) *LogListener {
	if log == nil {
		log = logging.Noop()
	}
	return &LogListener{log: log.With(logging.Component("game-events"))}
}

var _ Listener = (*LogListener)(nil)

func (l *LogListener) OnGameStart(snap Snapshot) {
	l.log.Info(context.Background(), "game start", logging.Int("remaining", snap.Remaining))
}

func (l *LogListener) OnTimeChange(remaining int) {
	l.log.Debug(context.Background(), "time change", logging.Int("remaining", remaining))
}

func (l *LogListener) OnTimeExpired(winning model.Team) {
	l.log.Info(context.Background(), "time expired", logging.String("winning", winning.String()))
}

func (l *LogListener) OnRobotSpawn(team model.Team, robot *core.Robot, level int) {
	if robot == nil {
		l.log.Info(context.Background(), "robot spawn tied")
		return
	}
	l.log.Info(context.Background(), "robot spawn",
		logging.Team(team),
		logging.String("robot_id", robot.ID()),
		logging.Int("level", level),
	)
}

func (l *LogListener) OnRobotDamage(team model.Team, robot *core.Robot, health int) {
	l.log.Debug(context.Background(), "robot damage",
		logging.Team(team),
		logging.String("robot_id", robot.ID()),
		logging.Int("health", health),
	)
}

func (l *LogListener) OnTowerDamage(team model.Team, health int) {
	l.log.Debug(context.Background(), "tower damage",
		logging.Team(team),
		logging.Int("health", health),
	)
}

func (l *LogListener) OnPowerupsChange(team model.Team, amount int) {
	l.log.Debug(context.Background(), "powerups change",
		logging.Team(team),
		logging.Int("powerups", amount),
	)
}

func (l *LogListener) OnPowerupSpawn(at model.Location) {
	l.log.Debug(context.Background(), "powerup spawn",
		logging.Location("at", at))
}

func (l *LogListener) OnGameEnd(winner model.Team, reason EndReason) {
	l.log.Info(context.Background(), "game end",
		logging.String("winner", winner.String()),
		logging.String("reason", reason.String()),
	)
}
