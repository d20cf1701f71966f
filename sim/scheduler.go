package sim

import (
	"container/heap"
	"math"
)

// TicksPerSecond is the simulation clock resolution: 1 tick = 1 µs.
const TicksPerSecond = 1e6

// ticksFromSeconds converts a model duration to clock ticks, rejecting
// negative and NaN values and anything too large for the tick counter
// (which covers +Inf). Rounding keeps exact inputs exact.
func ticksFromSeconds(stageID string, seconds float64) (int64, error) {
	ticks := math.Round(seconds * TicksPerSecond)
	if seconds < 0 || math.IsNaN(seconds) || ticks >= math.MaxInt64 {
		return 0, &InvalidDurationError{StageID: stageID, Duration: seconds}
	}
	return int64(ticks), nil
}

// scheduledEvent pairs an event with its insertion sequence number.
// The sequence breaks timestamp ties FIFO, which keeps event ordering
// deterministic for a fixed random seed.
type scheduledEvent struct {
	ev  Event
	seq uint64
}

// eventQueue implements heap.Interface ordered by (timestamp, seq).
// See the canonical example at https://pkg.go.dev/container/heap
type eventQueue []scheduledEvent

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	if eq[i].ev.Timestamp() != eq[j].ev.Timestamp() {
		return eq[i].ev.Timestamp() < eq[j].ev.Timestamp()
	}
	return eq[i].seq < eq[j].seq
}

func (eq eventQueue) Swap(i, j int) {
	eq[i], eq[j] = eq[j], eq[i]
}

func (eq *eventQueue) Push(x any) {
	*eq = append(*eq, x.(scheduledEvent))
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// StopCondition decides whether the event loop should stop before the
// queue drains. It is consulted with the current clock and the number
// of pending events after each dispatched event.
type StopCondition func(clock int64, pending int) bool

// Scheduler is a time-ordered event queue driving a monotonic
// simulation clock.
type Scheduler struct {
	clock int64
	seq   uint64
	queue eventQueue
}

// NewScheduler creates a Scheduler with an empty queue at clock 0.
func NewScheduler() *Scheduler {
	return &Scheduler{queue: make(eventQueue, 0)}
}

// Clock returns the current simulation time in ticks.
func (sc *Scheduler) Clock() int64 {
	return sc.clock
}

// Pending returns the number of scheduled events not yet dispatched.
func (sc *Scheduler) Pending() int {
	return len(sc.queue)
}

// Schedule inserts an event. Events in the past are impossible when
// service durations are non-negative, so this panics on violation: it
// indicates a bug in an event handler, not bad input.
func (sc *Scheduler) Schedule(ev Event) {
	if ev.Timestamp() < sc.clock {
		panic("sim: event scheduled before current clock")
	}
	sc.seq++
	heap.Push(&sc.queue, scheduledEvent{ev: ev, seq: sc.seq})
}

// RunUntil pops and dispatches events in timestamp order until the
// queue is empty, the stop condition holds, or the simulation aborts.
// The clock never decreases. A nil stop runs to queue exhaustion.
func (sc *Scheduler) RunUntil(s *Simulation, stop StopCondition) error {
	for len(sc.queue) > 0 {
		item := heap.Pop(&sc.queue).(scheduledEvent)
		sc.clock = item.ev.Timestamp()
		item.ev.Execute(s)
		if s.err != nil {
			return s.err
		}
		if stop != nil && stop(sc.clock, len(sc.queue)) {
			break
		}
	}
	return nil
}
