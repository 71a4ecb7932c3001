package game

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/model"
)

const (
	// PowerupDropHeight is how far above the sampled point pickups are dropped.
	PowerupDropHeight = 30.0
	// PowerupAmount is the value of a single pickup.
	PowerupAmount = 1
)

// SampleDisk maps two uniform samples in [0,1) to a point uniformly
// distributed over a horizontal disk around center.
func SampleDisk(center model.Location, radius, u, v float64) model.Location {
	r := radius * math.Sqrt(u)
	theta := v * 2 * math.Pi
	return model.Location{
		World: center.World,
		X:     center.X + r*math.Cos(theta),
		Y:     center.Y,
		Z:     center.Z + r*math.Sin(theta),
	}
}

// PowerupSpawner periodically drops a pickup at a random point in the
// powerup spawn area.
type PowerupSpawner struct {
	world core.World
	sched sched.EventScheduler
	rand  *rand.Rand
	log   logging.Logger

	onSpawn func(model.Location)

	task    *sched.Task
	dropped int
}

// NewPowerupSpawner returns a stopped spawner. onSpawn is called with the
// drop location after every successful drop.
func NewPowerupSpawner(world core.World, s sched.EventScheduler, rng *rand.Rand, log logging.Logger, onSpawn func(model.Location)) *PowerupSpawner {
	if log == nil {
		log = logging.Noop()
	}
	return &PowerupSpawner{world: world, sched: s, rand: rng, log: log, onSpawn: onSpawn}
}

// Start drops a pickup every delay. A running spawner is restarted.
func (p *PowerupSpawner) Start(center model.Location, delay time.Duration, radius float64) {
	p.Stop()
	p.task = sched.Every(p.sched, delay, delay, func(*sched.Task) {
		p.drop(center, radius)
	})
}

// Stop cancels future drops. It is idempotent.
func (p *PowerupSpawner) Stop() {
	p.task.Cancel()
}

// Running reports whether drops are scheduled.
func (p *PowerupSpawner) Running() bool {
	return p.task != nil && !p.task.Cancelled()
}

// Dropped returns the number of pickups dropped since construction.
func (p *PowerupSpawner) Dropped() int { return p.dropped }

func (p *PowerupSpawner) drop(center model.Location, radius float64) {
	at := SampleDisk(center, radius, p.rand.Float64(), p.rand.Float64()).Add(0, PowerupDropHeight, 0)
	if _, err := p.world.DropPowerup(at, PowerupAmount); err != nil {
		p.log.Warn(context.Background(), "powerup drop failed", logging.Err(err))
		return
	}
	p.dropped++
	if p.onSpawn != nil {
		p.onSpawn(at)
	}
}
