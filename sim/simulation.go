package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// PassMetrics accumulates the outcome of one measurement pass.
type PassMetrics struct {
	Departures        int
	TotalLatencyTicks int64
	ClampedLow        int
	ClampedHigh       int
	// PeakOccupancy holds, per stage, the maximum number of flows that
	// simultaneously held a slot during the pass.
	PeakOccupancy []int
}

// Simulation is one measurement pass of the chain: single-threaded and
// cooperative, the scheduler drives exactly one event at a time, which
// is what keeps event ordering deterministic.
type Simulation struct {
	Scheduler *Scheduler
	Chain     *Chain
	Streams   *StreamManager
	Metrics   *PassMetrics

	err error
}

// NewSimulation assembles a pass over a freshly built chain. streams is
// the owning run's StreamManager; the pass consumes draws from it and
// never resets it, so consecutive passes of one run see a continuous
// stream.
func NewSimulation(chain *Chain, streams *StreamManager) *Simulation {
	return &Simulation{
		Scheduler: NewScheduler(),
		Chain:     chain,
		Streams:   streams,
		Metrics:   &PassMetrics{PeakOccupancy: make([]int, len(chain.Stages))},
	}
}

// Schedule inserts an event into the pass's event queue.
func (s *Simulation) Schedule(ev Event) {
	s.Scheduler.Schedule(ev)
}

// abort records a fatal condition; the event loop stops after the
// current event.
func (s *Simulation) abort(err error) {
	s.err = err
}

// Workload shapes the flows injected into the chain for one pass.
type Workload struct {
	// Flows is the number of flows entering the chain.
	Flows int
	// Arrival selects the arrival process: "simultaneous" (all at t=0),
	// "constant" (evenly spaced at 1/rate), or "poisson".
	Arrival string
	// RatePerSecond is the arrival rate for constant and poisson.
	RatePerSecond float64
}

// Validate checks the workload description.
func (w Workload) Validate() error {
	if w.Flows < 1 {
		return fmt.Errorf("workload flows must be >= 1, got %d", w.Flows)
	}
	switch w.Arrival {
	case "simultaneous":
	case "constant", "poisson":
		if w.RatePerSecond <= 0 {
			return fmt.Errorf("workload arrival %q requires rate > 0, got %v", w.Arrival, w.RatePerSecond)
		}
	default:
		return fmt.Errorf("unknown arrival process %q", w.Arrival)
	}
	return nil
}

// injectArrivals schedules the pass's flow arrivals at stage 0.
// Inter-arrival draws come from the run's arrivals stream.
func (s *Simulation) injectArrivals(w Workload) {
	current := int64(0)
	for i := 0; i < w.Flows; i++ {
		flow := &Flow{ID: i, ArrivalTime: current}
		s.Schedule(&FlowArrivalEvent{time: current, StageIdx: 0, Flow: flow})

		switch w.Arrival {
		case "constant":
			current += int64(TicksPerSecond / w.RatePerSecond)
		case "poisson":
			iat := s.Streams.Stream(StreamArrivals).ExpFloat64() / w.RatePerSecond
			current += int64(iat * TicksPerSecond)
		}
	}
}

// PassResult is the outcome of one measurement pass.
type PassResult struct {
	// MeanLatency is the mean end-to-end flow latency in seconds: the
	// metric recorded for the profiled configuration point.
	MeanLatency float64
	// Makespan is the simulated time at which the last event fired, in
	// seconds.
	Makespan    float64
	Departures  int
	ClampedLow  int
	ClampedHigh int
	// PeakOccupancy per stage, for capacity verification.
	PeakOccupancy []int
}

// RunPass executes one simulated traversal of the chain for a single
// configuration point. stop may be nil to run until the queue drains.
func RunPass(cfg ChainConfig, shares []float64, w Workload, streams *StreamManager, stop StopCondition) (PassResult, error) {
	if err := w.Validate(); err != nil {
		return PassResult{}, err
	}
	chain, err := NewChain(cfg, shares)
	if err != nil {
		return PassResult{}, err
	}

	s := NewSimulation(chain, streams)
	s.injectArrivals(w)
	if err := s.Scheduler.RunUntil(s, stop); err != nil {
		return PassResult{}, err
	}

	m := s.Metrics
	res := PassResult{
		Makespan:      float64(s.Scheduler.Clock()) / TicksPerSecond,
		Departures:    m.Departures,
		ClampedLow:    m.ClampedLow,
		ClampedHigh:   m.ClampedHigh,
		PeakOccupancy: m.PeakOccupancy,
	}
	if m.Departures > 0 {
		res.MeanLatency = float64(m.TotalLatencyTicks) / float64(m.Departures) / TicksPerSecond
	}
	logrus.Debugf("pass done: %d departures, mean latency %.6fs, makespan %.6fs",
		res.Departures, res.MeanLatency, res.Makespan)
	return res, nil
}
