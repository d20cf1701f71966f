package profiling

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sfc-sim/sfc-sim/sim/results"
)

// State of the sampler's measurement loop.
type State string

const (
	StateSelecting State = "selecting"
	StateRunning   State = "running"
	StateRecording State = "recording"
	StateExhausted State = "exhausted"
)

// Measurement is the outcome of profiling one configuration point,
// produced by the Runner.
type Measurement struct {
	// Metric is the measured value (mean end-to-end latency, seconds).
	Metric float64
	// SimTime is the simulated cost of taking the measurement, in
	// seconds; it is charged against the budget's SimTime dimension.
	SimTime float64
	// Wall is the real elapsed time of the measurement.
	Wall time.Duration
	// Clamp counts from empirical-curve lookups, kept as metadata.
	ClampedLow  int
	ClampedHigh int
}

// Runner executes one measurement pass for a configuration point.
// The engine's SimulationRun implements it.
type Runner interface {
	Measure(p Point) (Measurement, error)
}

// Sampler drives the profiling loop of one run under a budget:
// Selecting → Running → Recording → (Selecting | Exhausted).
// Exhausted is terminal, reached when the budget is spent or the
// selector has nothing left — whichever occurs first. Not safe for
// concurrent use; each run owns its Sampler.
type Sampler struct {
	runID    string
	selector Selector
	budget   Budget
	rule     StopRule // nil disables accuracy-aware stopping
	recorder *results.Recorder

	state      State
	used       Usage
	recordings int
	stats      map[int]*PointStats

	// now is the wall clock; swapped out by tests.
	now func() time.Time
}

// NewSampler assembles the profiling loop for one run. rule may be nil
// to disable accuracy-aware early stopping.
func NewSampler(runID string, selector Selector, budget Budget, rule StopRule, recorder *results.Recorder) *Sampler {
	return &Sampler{
		runID:    runID,
		selector: selector,
		budget:   budget,
		rule:     rule,
		recorder: recorder,
		state:    StateSelecting,
		stats:    make(map[int]*PointStats),
		now:      time.Now,
	}
}

// State returns the sampler's current state.
func (s *Sampler) State() State { return s.state }

// Recordings returns the number of completed Recording transitions.
func (s *Sampler) Recordings() int { return s.recordings }

// Used returns the consumed portion of the budget.
func (s *Sampler) Used() Usage { return s.used }

// Stats returns the accuracy statistics for a point, or nil if the
// point was never measured.
func (s *Sampler) Stats(pointIndex int) *PointStats {
	return s.stats[pointIndex]
}

// Run executes the sampling loop until exhaustion or a fatal error.
// Budget exhaustion is not an error: it is the normal terminal signal,
// logged at info level. A Runner error aborts the loop and is returned;
// records already appended stay valid.
func (s *Sampler) Run(repetition int, rng Rand, runner Runner) error {
	if s.state == StateExhausted {
		return fmt.Errorf("sampler for run %q already exhausted", s.runID)
	}
	s.selector.Reinitialize(repetition, rng)
	start := s.now()

	for {
		// Budget is checked between samples only; a running pass is
		// non-interruptible.
		s.used.Wall = s.now().Sub(start)
		if done, reason := s.budget.Exhausted(s.used); done {
			s.exhaust(reason)
			return nil
		}

		s.state = StateSelecting
		if !s.selector.HasNext() {
			s.exhaust("parameter grid covered")
			return nil
		}
		point := s.selector.Next()

		s.state = StateRunning
		m, err := runner.Measure(point)
		if err != nil {
			return fmt.Errorf("measuring point %d: %w", point.Index, err)
		}

		s.state = StateRecording
		ps := s.stats[point.Index]
		if ps == nil {
			ps = &PointStats{}
			s.stats[point.Index] = ps
		}
		ps.Add(m.Metric)

		rec := results.SampleRecord{
			RunID:       s.runID,
			SampleIndex: s.recordings,
			Params:      point.Shares,
			MetricValue: m.Metric,
			ElapsedTime: m.Wall,
			SimTime:     m.SimTime,
			Accuracy:    ps.CIHalfWidth(1.96),
			ClampedLow:  m.ClampedLow,
			ClampedHigh: m.ClampedHigh,
		}
		if err := s.recorder.Append(rec); err != nil {
			return err
		}
		s.recordings++
		s.used.Samples++
		s.used.SimTime += m.SimTime
		s.selector.Feedback(point, m.Metric)

		if s.rule != nil && s.rule.Satisfied(ps) {
			if ex, ok := s.selector.(PointExcluder); ok {
				logrus.Debugf("run %s: point %d retired by %s after %d samples (ci=%.4g)",
					s.runID, point.Index, s.rule.Name(), ps.Count(), ps.CIHalfWidth(1.96))
				ex.Exclude(point.Index)
			}
		}
	}
}

// exhaust transitions to the terminal state.
func (s *Sampler) exhaust(reason string) {
	s.state = StateExhausted
	logrus.Infof("run %s: sampling exhausted after %d samples (%.1fs simulated): %s",
		s.runID, s.recordings, s.used.SimTime, reason)
}

// MeanAccuracy summarizes the final accuracy across measured points:
// the mean CI half-width over points with an estimate, NaN if none.
func (s *Sampler) MeanAccuracy() float64 {
	sum, n := 0.0, 0
	for _, ps := range s.stats {
		if w := ps.CIHalfWidth(1.96); !math.IsNaN(w) {
			sum += w
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
