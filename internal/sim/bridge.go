package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/world"
)

// Bridge turns sandbox events into game operations. Events are queued as
// they arrive, from any goroutine, and applied by Flush on the loop.
type Bridge struct {
	game *game.Game
	log  logging.Logger

	mu      sync.Mutex
	pending []world.Event

	onEvent func(world.Event)
}

// NewBridge returns a bridge feeding g.
func NewBridge(g *game.Game, log logging.Logger) *Bridge {
	if log == nil {
		log = logging.Noop()
	}
	return &Bridge{game: g, log: log}
}

// Enqueue records ev for the next Flush. It is safe to use as a
// world.Sandbox subscriber.
func (b *Bridge) Enqueue(ev world.Event) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()
}

// Flush applies queued events in arrival order, including events raised while
// flushing. It returns the number applied.
func (b *Bridge) Flush() int {
	applied := 0
	for {
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()
		if len(batch) == 0 {
			return applied
		}
		for _, ev := range batch {
			b.apply(ev)
			applied++
		}
	}
}

func (b *Bridge) apply(ev world.Event) {
	if b.onEvent != nil {
		b.onEvent(ev)
	}

	var err error
	switch ev.Type {
	case world.EventProjectileHit:
		if ev.Kind != world.KindRobot {
			return
		}
		err = b.game.DamageRobot(ev.EntityID, ev.Amount)
	case world.EventRobotImpact:
		err = b.game.RobotImpact(ev.SourceID, ev.Location)
	case world.EventPickupCollected:
		err = b.game.CollectPowerup(ev.SourceID, ev.Amount)
	default:
		return
	}
	if err == nil {
		return
	}

	// Late hits after a robot died or the game ended are expected.
	if errors.Is(err, core.ErrInvalidState) || errors.Is(err, core.ErrInvalidArgument) {
		b.log.Debug(context.Background(), "world event ignored",
			logging.String("event", ev.Type.String()),
			logging.String("entity_id", ev.EntityID),
			logging.Err(err),
		)
		return
	}
	b.log.Warn(context.Background(), "world event failed",
		logging.String("event", ev.Type.String()),
		logging.String("entity_id", ev.EntityID),
		logging.Err(err),
	)
}
