package sim

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sfc-sim/sfc-sim/sim/profiling"
	"github.com/sfc-sim/sfc-sim/sim/results"
)

// ExperimentConfig describes a whole profiling experiment: the chain
// under study and the lists of budgets and selection policies to
// compare. Every combination of (sim-time budget, sample budget,
// selector) × repetitions becomes one independent run.
type ExperimentConfig struct {
	Name        string
	Seed        int64
	Repetitions int
	// Workers bounds concurrent runs; 0 means GOMAXPROCS.
	Workers int

	Chain      ChainConfig
	StageNames []string
	ShareGrid  [][]float64
	Workload   Workload

	Selectors []string
	// MaxSamples and SimTimeBudgets expand multiplicatively; an empty
	// list contributes a single unlimited entry.
	MaxSamples     []int
	SimTimeBudgets []float64
	WallClock      time.Duration

	StopRule        profiling.StopRule
	MeasurementCost float64
}

// runConfigs expands the experiment into its independent runs. The
// expansion order is fixed (sim-time budgets outermost, repetitions
// innermost) so run IDs are stable across invocations.
func (c ExperimentConfig) runConfigs() []RunConfig {
	simTimes := c.SimTimeBudgets
	if len(simTimes) == 0 {
		simTimes = []float64{0}
	}
	maxSamples := c.MaxSamples
	if len(maxSamples) == 0 {
		maxSamples = []int{0}
	}
	reps := c.Repetitions
	if reps < 1 {
		reps = 1
	}

	var rcs []RunConfig
	confID := 0
	for _, simT := range simTimes {
		for _, maxS := range maxSamples {
			for _, sel := range c.Selectors {
				confID++
				for rep := 0; rep < reps; rep++ {
					runID := fmt.Sprintf("%s-c%03d-r%02d", c.Name, confID, rep)
					rcs = append(rcs, RunConfig{
						RunID:      runID,
						Key:        DeriveRunKey(c.Seed, runID),
						Chain:      c.Chain,
						StageNames: c.StageNames,
						ShareGrid:  c.ShareGrid,
						Workload:   c.Workload,
						Selector:   sel,
						Budget: profiling.Budget{
							MaxSamples: maxS,
							SimTime:    simT,
							WallClock:  c.WallClock,
						},
						StopRule:        c.StopRule,
						MeasurementCost: c.MeasurementCost,
						Repetition:      rep,
					})
				}
			}
		}
	}
	return rcs
}

// Experiment executes a set of independent runs across a worker pool.
// Runs share no mutable state: each owns its StreamManager and
// Recorder, and each run key derives from (experiment seed, run ID),
// so results are bitwise reproducible regardless of worker count or
// scheduling order.
type Experiment struct {
	cfg ExperimentConfig
	rcs []RunConfig
}

// NewExperiment validates the configuration and prepares the run list.
func NewExperiment(cfg ExperimentConfig) (*Experiment, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("experiment name must not be empty")
	}
	if len(cfg.Selectors) == 0 {
		return nil, fmt.Errorf("experiment needs at least one selector")
	}
	e := &Experiment{cfg: cfg, rcs: cfg.runConfigs()}
	// Surface configuration mistakes before any run starts.
	for _, rc := range e.rcs {
		if _, err := NewRun(rc); err != nil {
			return nil, err
		}
	}
	reps := max(cfg.Repetitions, 1)
	logrus.Infof("experiment %s: prepared %d runs (%d configurations x %d repetitions)",
		cfg.Name, len(e.rcs), len(e.rcs)/reps, reps)
	return e, nil
}

// Runs returns the number of independent runs this experiment expands to.
func (e *Experiment) Runs() int { return len(e.rcs) }

// Run executes all runs and returns their tables in run-config order.
// A failed run aborts only itself; its slot is nil in the returned
// slice and its error is joined into the returned error. Tables from
// completed runs are always returned intact.
func (e *Experiment) Run() ([]*results.Table, error) {
	workers := e.cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(e.rcs) {
		workers = len(e.rcs)
	}

	tables := make([]*results.Table, len(e.rcs))
	errs := make([]error, len(e.rcs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				run, err := NewRun(e.rcs[i])
				if err != nil {
					errs[i] = err
					continue
				}
				tables[i], errs[i] = run.Execute()
			}
		}()
	}
	for i := range e.rcs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return tables, errors.Join(errs...)
}
