// Package sim provides synthetic metric sources for running the
// exporter on machines without the monitored hardware. Values come
// from simv generators ticking on a shared clock.
package sim

import (
	"time"

	"github.com/hostbox/hostbox/internal/metric"
	"github.com/neox5/simv/clock"
	"github.com/neox5/simv/source"
	"github.com/neox5/simv/transform"
	"github.com/neox5/simv/value"
)

// DefaultInterval is the generator tick.
const DefaultInterval = time.Second

// Sim owns the clock and generated values.
type Sim struct {
	clock clock.Clock
	queue *value.Value[int]
	reqs  *value.Value[int]
}

// New wires the synthetic sources: a bounded random gauge and an
// accumulating counter.
func New(interval time.Duration) *Sim {
	if interval <= 0 {
		interval = DefaultInterval
	}
	clk := clock.NewPeriodicClock(interval)

	queueSrc := source.NewRandomIntSource(clk, 0, 64)
	reqSrc := source.NewRandomIntSource(clk, 0, 100)

	return &Sim{
		clock: clk,
		queue: value.New[int](queueSrc),
		reqs:  value.New[int](reqSrc).AddTransform(transform.NewAccumulate[int]()),
	}
}

// Start begins value generation.
func (s *Sim) Start() {
	s.clock.Start()
}

// Stop halts value generation.
func (s *Sim) Stop() {
	s.clock.Stop()
}

// Descriptors returns the synthetic metric set.
func (s *Sim) Descriptors() []*metric.Descriptor {
	return []*metric.Descriptor{
		{
			Name: "sim_queue",
			Help: "synthetic queue depth (simulation mode)",
			Type: metric.TypeGauge,
			Query: func() (metric.Value, error) {
				return metric.Scalar(float64(s.queue.Value())), nil
			},
		},
		{
			Name: "sim_requests",
			Help: "synthetic request counter (simulation mode)",
			Type: metric.TypeCounter,
			Query: func() (metric.Value, error) {
				return metric.Scalar(float64(s.reqs.Value())), nil
			},
		},
	}
}
