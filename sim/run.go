package sim

import (
	"fmt"
	"time"

	"github.com/sfc-sim/sfc-sim/sim/profiling"
	"github.com/sfc-sim/sfc-sim/sim/results"
)

// DefaultMeasurementCost is the simulated cost of one profiling
// measurement in seconds, charged against the budget on top of the
// pass's own makespan.
const DefaultMeasurementCost = 60.0

// RunConfig describes one simulation run: a validated experiment
// description for a single (configuration, repetition) combination.
// Immutable once constructed; the run consumes it as read-only data.
type RunConfig struct {
	RunID string
	Key   RunKey

	Chain ChainConfig
	// StageNames label the parameter columns of the result table.
	StageNames []string
	// ShareGrid holds the swept CPU-share values per stage; the full
	// parameter grid is their cartesian product.
	ShareGrid [][]float64

	Workload Workload
	Selector string
	Budget   profiling.Budget
	// StopRule enables accuracy-aware early stopping when non-nil.
	StopRule profiling.StopRule
	// MeasurementCost is the simulated seconds charged per sample;
	// 0 selects DefaultMeasurementCost.
	MeasurementCost float64
	Repetition      int
}

// Run orchestrates one full execution: chain construction, the
// sampler's selection loop, measurement passes through the event
// scheduler, and result collection. A Run owns its StreamManager and
// Recorder exclusively, so independent runs may execute concurrently.
type Run struct {
	cfg      RunConfig
	streams  *StreamManager
	recorder *results.Recorder
	sampler  *profiling.Sampler

	// now is the wall clock used for per-sample elapsed times; swapped
	// out by determinism tests, which need every column reproducible.
	now func() time.Time
}

// NewRun validates the configuration and assembles a run.
func NewRun(cfg RunConfig) (*Run, error) {
	if cfg.RunID == "" {
		return nil, fmt.Errorf("run ID must not be empty")
	}
	if err := cfg.Chain.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Workload.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.StageNames) != len(cfg.Chain.Stages) {
		return nil, fmt.Errorf("have %d stage names for %d stages", len(cfg.StageNames), len(cfg.Chain.Stages))
	}
	if len(cfg.ShareGrid) != len(cfg.Chain.Stages) {
		return nil, fmt.Errorf("share grid has %d dimensions for %d stages", len(cfg.ShareGrid), len(cfg.Chain.Stages))
	}
	if cfg.MeasurementCost < 0 {
		return nil, fmt.Errorf("measurement cost must be >= 0, got %v", cfg.MeasurementCost)
	}

	grid, err := profiling.NewGrid(cfg.ShareGrid)
	if err != nil {
		return nil, err
	}
	maxSamples := cfg.Budget.MaxSamples
	if maxSamples <= 0 {
		maxSamples = -1
	}
	selector, err := profiling.NewSelector(cfg.Selector, grid, maxSamples)
	if err != nil {
		return nil, err
	}
	if maxSamples < 0 && cfg.Budget.SimTime <= 0 && cfg.Budget.WallClock <= 0 {
		return nil, fmt.Errorf("run %s: budget has no limit in any dimension", cfg.RunID)
	}

	recorder := results.NewRecorder(cfg.RunID, cfg.StageNames)
	return &Run{
		cfg:      cfg,
		streams:  NewStreamManager(cfg.Key),
		recorder: recorder,
		sampler:  profiling.NewSampler(cfg.RunID, selector, cfg.Budget, cfg.StopRule, recorder),
		now:      time.Now,
	}, nil
}

// Sampler exposes the run's sampler for state inspection.
func (r *Run) Sampler() *profiling.Sampler { return r.sampler }

// Measure executes one measurement pass for a configuration point,
// implementing profiling.Runner. The simulated cost charged against
// the budget is the configured per-measurement cost plus the pass's
// makespan.
func (r *Run) Measure(p profiling.Point) (profiling.Measurement, error) {
	start := r.now()
	res, err := RunPass(r.cfg.Chain, p.Shares, r.cfg.Workload, r.streams, nil)
	if err != nil {
		return profiling.Measurement{}, err
	}
	cost := r.cfg.MeasurementCost
	if cost == 0 {
		cost = DefaultMeasurementCost
	}
	return profiling.Measurement{
		Metric:      res.MeanLatency,
		SimTime:     cost + res.Makespan,
		Wall:        r.now().Sub(start),
		ClampedLow:  res.ClampedLow,
		ClampedHigh: res.ClampedHigh,
	}, nil
}

// Execute drives the sampling loop to exhaustion and finalizes the
// result table. On a fatal error the partial table is discarded and
// the error returned; tables finalized by other runs are unaffected.
func (r *Run) Execute() (*results.Table, error) {
	err := r.sampler.Run(r.cfg.Repetition, r.streams.Stream(StreamSelection), r)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", r.cfg.RunID, err)
	}
	return r.recorder.Finalize(), nil
}
