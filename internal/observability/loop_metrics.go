package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoopCollector exposes game loop metrics. It satisfies the runner's
// LoopMetricsRecorder.
type LoopCollector struct {
	gatherer prometheus.Gatherer

	StepDuration  prometheus.Histogram
	Steps         prometheus.Counter
	PendingEvents prometheus.Gauge
	WorldEvents   *prometheus.CounterVec
}

// NewLoopCollector registers loop metrics against reg.
func NewLoopCollector(reg prometheus.Registerer) (*LoopCollector, error) {
	reg, gatherer := resolve(reg)

	step, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "siege_loop_step_duration_seconds",
		Help:    "Wall time spent processing one game loop tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}))
	if err != nil {
		return nil, err
	}
	steps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "siege_loop_steps_total",
		Help: "Game loop ticks processed.",
	}))
	if err != nil {
		return nil, err
	}
	pending, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "siege_loop_pending_events",
		Help: "Scheduled events still waiting after the last tick.",
	}))
	if err != nil {
		return nil, err
	}
	world, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "siege_world_events_total",
		Help: "World events applied to the game, labeled by type.",
	}, []string{"type"}))
	if err != nil {
		return nil, err
	}

	return &LoopCollector{
		gatherer:      gatherer,
		StepDuration:  step,
		Steps:         steps,
		PendingEvents: pending,
		WorldEvents:   world,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *LoopCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveStep records one tick.
func (c *LoopCollector) ObserveStep(d time.Duration, pendingEvents int) {
	if c == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
	c.Steps.Inc()
	c.PendingEvents.Set(float64(pendingEvents))
}

// IncWorldEvent counts an applied world event.
func (c *LoopCollector) IncWorldEvent(eventType string) {
	if c == nil {
		return
	}
	c.WorldEvents.WithLabelValues(eventType).Inc()
}
