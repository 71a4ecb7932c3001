// Package sim owns the simulation loop. A Runner steps simulated time, runs
// due scheduler callbacks, advances the sandbox world and feeds world events
// back into the game, all on one goroutine.
package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/siege-simulator/core"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/sched"
	"github.com/signalsfoundry/siege-simulator/timectrl"
	"github.com/signalsfoundry/siege-simulator/world"
)

// DefaultTick is the simulated time covered by one loop step.
const DefaultTick = 50 * time.Millisecond

// Config configures a Runner.
type Config struct {
	// Start is the initial simulation time. Zero means now.
	Start time.Time
	Tick  time.Duration
	Mode  timectrl.Mode
	World world.Config
}

// DefaultConfig returns a real-time loop with the default world tuning.
func DefaultConfig() Config {
	return Config{
		Tick:  DefaultTick,
		Mode:  timectrl.RealTime,
		World: world.DefaultConfig(),
	}
}

// LoopMetricsRecorder receives per-step loop measurements.
type LoopMetricsRecorder interface {
	ObserveStep(d time.Duration, pendingEvents int)
	IncWorldEvent(eventType string)
}

// Option customises a Runner.
type Option func(*Runner)

// WithMetricsRecorder attaches a recorder for loop metrics.
func WithMetricsRecorder(m LoopMetricsRecorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithGameOptions passes options through to game.New.
func WithGameOptions(opts ...game.Option) Option {
	return func(r *Runner) { r.gameOpts = append(r.gameOpts, opts...) }
}

type request struct {
	fn   func(*game.Game) error
	done chan error
}

// Runner drives one arena.
type Runner struct {
	tc      *timectrl.TimeController
	sched   sched.EventScheduler
	sandbox *world.Sandbox
	game    *game.Game
	bridge  *Bridge
	log     logging.Logger

	metrics  LoopMetricsRecorder
	gameOpts []game.Option

	work    chan request
	running atomic.Bool
}

// NewRunner builds the clock, scheduler, sandbox and game for one arena.
func NewRunner(cfg Config, log logging.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	start := cfg.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}

	r := &Runner{
		log:  log,
		work: make(chan request),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.tc = timectrl.NewTimeController(start, cfg.Tick, cfg.Mode)
	r.sched = sched.NewEventScheduler(r.tc)
	r.sandbox = world.NewSandbox(cfg.World)
	r.game = game.New(r.sandbox, r.sched, log, r.gameOpts...)
	r.bridge = NewBridge(r.game, log)
	if r.metrics != nil {
		r.bridge.onEvent = func(ev world.Event) { r.metrics.IncWorldEvent(ev.Type.String()) }
	}
	r.sandbox.Subscribe(r.bridge.Enqueue)
	r.tc.AddListener(r.onTick)
	return r
}

// Game returns the game. It must only be used from the loop goroutine, for
// example inside Do, or while Run is not active.
func (r *Runner) Game() *game.Game { return r.game }

// Sandbox returns the world. It is safe for concurrent use, but events it
// raises are only applied to the game on the loop.
func (r *Runner) Sandbox() *world.Sandbox { return r.sandbox }

// Clock returns the simulation clock.
func (r *Runner) Clock() timectrl.SimClock { return r.tc }

// Scheduler returns the event scheduler.
func (r *Runner) Scheduler() sched.EventScheduler { return r.sched }

// Step advances the loop by one tick. Use it only while Run is not active.
func (r *Runner) Step() time.Time {
	return r.tc.Step()
}

// StepFor steps until at least d of simulated time has passed.
func (r *Runner) StepFor(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += r.tc.Tick {
		r.Step()
	}
}

func (r *Runner) onTick(time.Time) {
	begin := time.Now()
	r.sched.RunDue()
	r.sandbox.Step(r.tc.Tick)
	r.bridge.Flush()
	if r.metrics != nil {
		r.metrics.ObserveStep(time.Since(begin), sched.Pending(r.sched))
	}
}

// Do runs fn on the loop goroutine and returns its error. It blocks until
// Run picks the request up or ctx is done.
func (r *Runner) Do(ctx context.Context, fn func(*game.Game) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case r.work <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the loop until ctx is cancelled. Real-time mode steps once per
// tick of wall time; accelerated mode steps whenever no request is waiting.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return core.ErrAlreadyRunning
	}
	defer r.running.Store(false)

	r.log.Info(ctx, "simulation loop started",
		logging.String("mode", r.tc.Mode.String()),
		logging.String("tick", r.tc.Tick.String()),
	)
	defer func() {
		r.log.Info(context.Background(), "simulation loop stopped",
			logging.Any("steps", r.tc.Steps()))
	}()

	if r.tc.Mode == timectrl.Accelerated {
		for {
			select {
			case <-ctx.Done():
				return nil
			case req := <-r.work:
				r.handle(req)
			default:
				r.Step()
			}
		}
	}

	ticker := time.NewTicker(r.tc.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-r.work:
			r.handle(req)
		case <-ticker.C:
			r.Step()
		}
	}
}

func (r *Runner) handle(req request) {
	err := req.fn(r.game)
	r.bridge.Flush()
	req.done <- err
}
