package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/sfc-sim/sfc-sim/sim/servicetime"
)

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in ticks) and an Execute method that
// advances simulation state when invoked.
type Event interface {
	Timestamp() int64
	Execute(*Simulation)
}

// FlowArrivalEvent represents a flow arriving at a stage of the chain.
// Stage 0 arrivals enter the chain from outside; later stages receive
// flows forwarded by the preceding stage's completion.
type FlowArrivalEvent struct {
	time     int64
	StageIdx int
	Flow     *Flow
}

// Timestamp returns the scheduled time of the FlowArrivalEvent.
func (e *FlowArrivalEvent) Timestamp() int64 {
	return e.time
}

// Execute admits the flow into the stage, or FIFO-queues it when all
// capacity slots are held by other flows.
func (e *FlowArrivalEvent) Execute(s *Simulation) {
	stage := s.Chain.Stages[e.StageIdx]
	logrus.Debugf("<< Arrival: flow %d at stage %s, t=%d ticks", e.Flow.ID, stage.ID, e.time)

	if stage.occupancy < stage.Slots {
		stage.occupancy++
		s.Schedule(&StageStartEvent{time: e.time, StageIdx: e.StageIdx, Flow: e.Flow})
	} else {
		stage.waiting = append(stage.waiting, e.Flow)
	}
}

// StageStartEvent represents a flow acquiring a capacity slot and
// beginning service at a stage. Its timestamp is max(flow arrival time,
// time the stage became free); the event is always scheduled at the
// current clock, so that holds by construction.
type StageStartEvent struct {
	time     int64
	StageIdx int
	Flow     *Flow
}

// Timestamp returns the scheduled time of the StageStartEvent.
func (e *StageStartEvent) Timestamp() int64 {
	return e.time
}

// Execute draws a service duration from the stage's model and schedules
// the matching completion. A negative or non-finite duration aborts the
// run with an InvalidDurationError.
func (e *StageStartEvent) Execute(s *Simulation) {
	stage := s.Chain.Stages[e.StageIdx]
	if stage.occupancy > s.Metrics.PeakOccupancy[e.StageIdx] {
		s.Metrics.PeakOccupancy[e.StageIdx] = stage.occupancy
	}

	draw := s.Streams.Stream(StreamService).Float64()
	sample := stage.Model.Sample(stage.occupancy, stage.CPUShare, draw)
	ticks, err := ticksFromSeconds(stage.ID, sample.Duration)
	if err != nil {
		s.abort(err)
		return
	}
	switch sample.Clamp {
	case servicetime.ClampLow:
		s.Metrics.ClampedLow++
	case servicetime.ClampHigh:
		s.Metrics.ClampedHigh++
	}
	logrus.Debugf("<< StageStart: flow %d at stage %s, t=%d ticks, service=%d ticks", e.Flow.ID, stage.ID, e.time, ticks)

	s.Schedule(&StageCompleteEvent{time: e.time + ticks, StageIdx: e.StageIdx, Flow: e.Flow})
}

// StageCompleteEvent represents a flow finishing service at a stage.
type StageCompleteEvent struct {
	time     int64
	StageIdx int
	Flow     *Flow
}

// Timestamp returns the scheduled time of the StageCompleteEvent.
func (e *StageCompleteEvent) Timestamp() int64 {
	return e.time
}

// Execute releases the capacity slot, starts the next queued flow if
// any, and forwards the completing flow to the next stage or out of
// the chain.
func (e *StageCompleteEvent) Execute(s *Simulation) {
	stage := s.Chain.Stages[e.StageIdx]
	logrus.Debugf("<< StageComplete: flow %d at stage %s, t=%d ticks", e.Flow.ID, stage.ID, e.time)

	stage.occupancy--
	if len(stage.waiting) > 0 {
		next := stage.waiting[0]
		stage.waiting = stage.waiting[1:]
		stage.occupancy++
		s.Schedule(&StageStartEvent{time: e.time, StageIdx: e.StageIdx, Flow: next})
	}

	if e.StageIdx == len(s.Chain.Stages)-1 {
		s.Schedule(&DepartureEvent{time: e.time, Flow: e.Flow})
	} else {
		s.Schedule(&FlowArrivalEvent{time: e.time, StageIdx: e.StageIdx + 1, Flow: e.Flow})
	}
}

// DepartureEvent represents a flow leaving the chain after its last
// stage. End-to-end latency is measured here.
type DepartureEvent struct {
	time int64
	Flow *Flow
}

// Timestamp returns the scheduled time of the DepartureEvent.
func (e *DepartureEvent) Timestamp() int64 {
	return e.time
}

// Execute records the flow's end-to-end latency.
func (e *DepartureEvent) Execute(s *Simulation) {
	logrus.Debugf("<< Departure: flow %d at t=%d ticks", e.Flow.ID, e.time)
	s.Metrics.Departures++
	s.Metrics.TotalLatencyTicks += e.time - e.Flow.ArrivalTime
}
