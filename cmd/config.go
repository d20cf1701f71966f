package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	sim "github.com/sfc-sim/sfc-sim/sim"
	"github.com/sfc-sim/sfc-sim/sim/profiling"
	"github.com/sfc-sim/sfc-sim/sim/servicetime"
)

// ConfigValidationError reports an invalid experiment description.
// Raised before any run starts; the engine only ever sees validated
// configuration.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid experiment config: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) error {
	return &ConfigValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ExperimentFile is the YAML experiment description.
type ExperimentFile struct {
	Name        string `yaml:"name"`
	Seed        int64  `yaml:"seed"`
	Repetitions int    `yaml:"repetitions,omitempty"`
	Workers     int    `yaml:"workers,omitempty"`
	OutputDir   string `yaml:"output_dir,omitempty"`

	Chain     []StageSpec   `yaml:"chain"`
	Grid      GridSpec      `yaml:"grid"`
	Workload  WorkloadSpec  `yaml:"workload"`
	Profiling ProfilingSpec `yaml:"profiling"`
}

// StageSpec describes one VNF stage of the chain.
type StageSpec struct {
	ID    string           `yaml:"id"`
	Slots int              `yaml:"slots"`
	Model servicetime.Spec `yaml:"model"`
	// Shares overrides the experiment-wide grid for this stage.
	Shares []float64 `yaml:"shares,omitempty"`
}

// GridSpec describes the CPU-share sweep applied to every stage that
// has no explicit share list.
type GridSpec struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Steps int     `yaml:"steps"`
}

// WorkloadSpec shapes the flows of one measurement pass.
type WorkloadSpec struct {
	Flows   int     `yaml:"flows"`
	Arrival string  `yaml:"arrival"`
	Rate    float64 `yaml:"rate,omitempty"`
}

// ProfilingSpec configures the sampling policies and budgets compared
// by the experiment.
type ProfilingSpec struct {
	Selectors       []string      `yaml:"selectors"`
	MaxSamples      []int         `yaml:"max_samples,omitempty"`
	SimTimeBudgets  []float64     `yaml:"sim_time_budgets,omitempty"`
	WallClock       string        `yaml:"wall_clock,omitempty"`
	MeasurementCost float64       `yaml:"measurement_cost,omitempty"`
	StopRule        *StopRuleSpec `yaml:"stop_rule,omitempty"`
}

// StopRuleSpec configures accuracy-aware early stopping.
type StopRuleSpec struct {
	Kind         string  `yaml:"kind"`
	MaxHalfWidth float64 `yaml:"max_half_width"`
	MinSamples   int     `yaml:"min_samples,omitempty"`
	Z            float64 `yaml:"z,omitempty"`
}

var validSelectors = map[string]bool{
	profiling.SelectorRandom:          true,
	profiling.SelectorGrid:            true,
	profiling.SelectorGridRandomOff:   true,
	profiling.SelectorGridIncremental: true,
	profiling.SelectorPriority:        true,
}

// LoadExperimentFile reads and parses an experiment YAML file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadExperimentFile(path string) (*ExperimentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment config: %w", err)
	}
	var f ExperimentFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, &ConfigValidationError{Field: path, Reason: err.Error()}
	}
	return &f, nil
}

// Build validates the file and converts it into the engine's
// experiment configuration.
func (f *ExperimentFile) Build() (sim.ExperimentConfig, error) {
	var cfg sim.ExperimentConfig

	if f.Name == "" {
		return cfg, configErr("name", "must not be empty")
	}
	if len(f.Chain) == 0 {
		return cfg, configErr("chain", "must have at least one stage")
	}

	stages := make([]sim.StageConfig, len(f.Chain))
	names := make([]string, len(f.Chain))
	grid := make([][]float64, len(f.Chain))
	seen := make(map[string]bool, len(f.Chain))
	for i, ss := range f.Chain {
		if ss.ID == "" {
			return cfg, configErr(fmt.Sprintf("chain[%d].id", i), "must not be empty")
		}
		if seen[ss.ID] {
			return cfg, configErr(fmt.Sprintf("chain[%d].id", i), "duplicate stage ID %q", ss.ID)
		}
		seen[ss.ID] = true
		if ss.Slots < 1 {
			return cfg, configErr(fmt.Sprintf("chain[%d].slots", i), "must be >= 1, got %d", ss.Slots)
		}
		model, err := servicetime.New(ss.Model)
		if err != nil {
			return cfg, configErr(fmt.Sprintf("chain[%d].model", i), "%v", err)
		}
		stages[i] = sim.StageConfig{ID: ss.ID, Slots: ss.Slots, Model: model}
		names[i] = ss.ID

		shares := ss.Shares
		if len(shares) == 0 {
			if f.Grid.Steps < 1 {
				return cfg, configErr("grid.steps", "must be >= 1 when a stage has no explicit shares")
			}
			if f.Grid.Min <= 0 || f.Grid.Max > 1 || f.Grid.Min > f.Grid.Max {
				return cfg, configErr("grid", "share range must satisfy 0 < min <= max <= 1, got [%v, %v]", f.Grid.Min, f.Grid.Max)
			}
			shares = profiling.Linspace(f.Grid.Min, f.Grid.Max, f.Grid.Steps)
		}
		for _, v := range shares {
			if v <= 0 || v > 1 {
				return cfg, configErr(fmt.Sprintf("chain[%d].shares", i), "share %v outside (0, 1]", v)
			}
		}
		grid[i] = shares
	}

	if len(f.Profiling.Selectors) == 0 {
		return cfg, configErr("profiling.selectors", "must name at least one selector")
	}
	for _, s := range f.Profiling.Selectors {
		if !validSelectors[s] {
			return cfg, configErr("profiling.selectors", "unknown selector %q", s)
		}
	}
	for _, m := range f.Profiling.MaxSamples {
		if m < 1 {
			return cfg, configErr("profiling.max_samples", "entries must be >= 1, got %d", m)
		}
	}
	for _, t := range f.Profiling.SimTimeBudgets {
		if t <= 0 {
			return cfg, configErr("profiling.sim_time_budgets", "entries must be > 0, got %v", t)
		}
	}
	var wall time.Duration
	if f.Profiling.WallClock != "" {
		d, err := time.ParseDuration(f.Profiling.WallClock)
		if err != nil {
			return cfg, configErr("profiling.wall_clock", "%v", err)
		}
		if d <= 0 {
			return cfg, configErr("profiling.wall_clock", "must be positive, got %s", d)
		}
		wall = d
	}
	if f.Profiling.MeasurementCost < 0 {
		return cfg, configErr("profiling.measurement_cost", "must be >= 0, got %v", f.Profiling.MeasurementCost)
	}

	var rule profiling.StopRule
	if sr := f.Profiling.StopRule; sr != nil {
		if sr.Kind != "confidence_width" {
			return cfg, configErr("profiling.stop_rule.kind", "unknown stop rule %q", sr.Kind)
		}
		if sr.MaxHalfWidth <= 0 {
			return cfg, configErr("profiling.stop_rule.max_half_width", "must be > 0, got %v", sr.MaxHalfWidth)
		}
		z := sr.Z
		if z == 0 {
			z = 1.96
		}
		rule = &profiling.ConfidenceWidthRule{
			MaxHalfWidth: sr.MaxHalfWidth,
			MinSamples:   sr.MinSamples,
			Z:            z,
		}
	}

	workload := sim.Workload{
		Flows:         f.Workload.Flows,
		Arrival:       f.Workload.Arrival,
		RatePerSecond: f.Workload.Rate,
	}
	if err := workload.Validate(); err != nil {
		return cfg, configErr("workload", "%v", err)
	}

	cfg = sim.ExperimentConfig{
		Name:            f.Name,
		Seed:            f.Seed,
		Repetitions:     f.Repetitions,
		Workers:         f.Workers,
		Chain:           sim.ChainConfig{Stages: stages},
		StageNames:      names,
		ShareGrid:       grid,
		Workload:        workload,
		Selectors:       f.Profiling.Selectors,
		MaxSamples:      f.Profiling.MaxSamples,
		SimTimeBudgets:  f.Profiling.SimTimeBudgets,
		WallClock:       wall,
		StopRule:        rule,
		MeasurementCost: f.Profiling.MeasurementCost,
	}
	return cfg, nil
}
