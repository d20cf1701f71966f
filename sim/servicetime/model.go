// Package servicetime provides the processing-time models bound to the
// stages of a service chain. Models form a closed variant set built from
// a Spec; new behaviors are added as new variants, never by runtime
// subclassing.
package servicetime

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ClampDirection reports whether an empirical-curve lookup had to clamp
// the requested load to the curve's domain.
type ClampDirection int

const (
	ClampNone ClampDirection = iota
	ClampLow
	ClampHigh
)

func (c ClampDirection) String() string {
	switch c {
	case ClampLow:
		return "low"
	case ClampHigh:
		return "high"
	default:
		return "none"
	}
}

// Sample is one realized processing duration.
type Sample struct {
	// Duration in seconds. The engine rejects negative or non-finite
	// values with an InvalidDurationError; models do not clamp.
	Duration float64
	// Clamp records empirical-curve domain clamping for downstream
	// accuracy bookkeeping. Always ClampNone for closed-form variants.
	Clamp ClampDirection
}

// Model maps a stage's state to a sampled processing duration.
//
// Sample must be a pure function of (load, share, draw): no internal
// mutable state, so concurrent runs sharing a model instance are safe.
// load is the stage occupancy at service start, share the stage's CPU
// share in (0, 1], and draw a uniform-[0,1) value from the run's
// service stream. Deterministic variants ignore draw.
type Model interface {
	Sample(load int, share float64, draw float64) Sample
}

// Spec parameterizes a model variant. Loaded from the experiment YAML.
type Spec struct {
	Kind   string             `yaml:"kind"`
	Params map[string]float64 `yaml:"params,omitempty"`
	// Points holds the (load, duration) support of an empirical curve.
	Points []CurvePoint `yaml:"points,omitempty"`
}

// CurvePoint is one recorded (load, duration-seconds) measurement of an
// empirical curve.
type CurvePoint struct {
	Load     float64 `yaml:"load"`
	Duration float64 `yaml:"duration"`
}

// Deterministic returns a fixed base duration stretched by the inverse
// CPU share: half the share, twice the time.
type Deterministic struct {
	base float64 // seconds at share 1.0
}

func (m *Deterministic) Sample(_ int, share float64, _ float64) Sample {
	return Sample{Duration: m.base / share}
}

// quantiler is the subset of gonum's distuv distributions the
// Distribution variant inverts draws through.
type quantiler interface {
	Quantile(p float64) float64
}

// Distribution draws durations by inverting a uniform draw through a
// closed-form quantile function. The same (seed, draw index) therefore
// always yields the same duration.
type Distribution struct {
	kind string
	dist quantiler
}

func (m *Distribution) Sample(_ int, share float64, draw float64) Sample {
	return Sample{Duration: m.dist.Quantile(draw) / share}
}

// EmpiricalCurve interpolates durations from recorded (load, duration)
// pairs, clamping out-of-domain loads and reporting the direction.
type EmpiricalCurve struct {
	loads     []float64 // sorted ascending
	durations []float64
}

func (m *EmpiricalCurve) Sample(load int, share float64, _ float64) Sample {
	x := float64(load)
	clamp := ClampNone
	if x < m.loads[0] {
		x = m.loads[0]
		clamp = ClampLow
	} else if x > m.loads[len(m.loads)-1] {
		x = m.loads[len(m.loads)-1]
		clamp = ClampHigh
	}

	i := sort.SearchFloat64s(m.loads, x)
	var d float64
	switch {
	case i < len(m.loads) && m.loads[i] == x:
		d = m.durations[i]
	default:
		// x lies strictly between loads[i-1] and loads[i]
		x0, x1 := m.loads[i-1], m.loads[i]
		y0, y1 := m.durations[i-1], m.durations[i]
		d = y0 + (y1-y0)*(x-x0)/(x1-x0)
	}
	return Sample{Duration: d / share, Clamp: clamp}
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("model requires parameter %q", k)
		}
	}
	return nil
}

// New builds a Model from a Spec.
func New(spec Spec) (Model, error) {
	switch spec.Kind {
	case "deterministic":
		if err := requireParam(spec.Params, "duration"); err != nil {
			return nil, err
		}
		base := spec.Params["duration"]
		if base < 0 {
			return nil, fmt.Errorf("deterministic duration must be >= 0, got %v", base)
		}
		return &Deterministic{base: base}, nil

	case "exponential":
		if err := requireParam(spec.Params, "rate"); err != nil {
			return nil, err
		}
		if spec.Params["rate"] <= 0 {
			return nil, fmt.Errorf("exponential rate must be > 0, got %v", spec.Params["rate"])
		}
		return &Distribution{kind: spec.Kind, dist: distuv.Exponential{Rate: spec.Params["rate"]}}, nil

	case "lognormal":
		if err := requireParam(spec.Params, "mu", "sigma"); err != nil {
			return nil, err
		}
		if spec.Params["sigma"] <= 0 {
			return nil, fmt.Errorf("lognormal sigma must be > 0, got %v", spec.Params["sigma"])
		}
		return &Distribution{kind: spec.Kind, dist: distuv.LogNormal{Mu: spec.Params["mu"], Sigma: spec.Params["sigma"]}}, nil

	case "weibull":
		if err := requireParam(spec.Params, "shape", "scale"); err != nil {
			return nil, err
		}
		if spec.Params["shape"] <= 0 || spec.Params["scale"] <= 0 {
			return nil, fmt.Errorf("weibull shape and scale must be > 0")
		}
		return &Distribution{kind: spec.Kind, dist: distuv.Weibull{K: spec.Params["shape"], Lambda: spec.Params["scale"]}}, nil

	case "gamma":
		if err := requireParam(spec.Params, "shape", "rate"); err != nil {
			return nil, err
		}
		if spec.Params["shape"] <= 0 || spec.Params["rate"] <= 0 {
			return nil, fmt.Errorf("gamma shape and rate must be > 0")
		}
		return &Distribution{kind: spec.Kind, dist: distuv.Gamma{Alpha: spec.Params["shape"], Beta: spec.Params["rate"]}}, nil

	case "normal":
		// Note: a normal model with too much mass below zero will abort
		// the run with an InvalidDurationError when a low draw inverts
		// to a negative duration. That is intentional: the engine never
		// clamps model output.
		if err := requireParam(spec.Params, "mean", "std_dev"); err != nil {
			return nil, err
		}
		if spec.Params["std_dev"] <= 0 {
			return nil, fmt.Errorf("normal std_dev must be > 0, got %v", spec.Params["std_dev"])
		}
		return &Distribution{kind: spec.Kind, dist: distuv.Normal{Mu: spec.Params["mean"], Sigma: spec.Params["std_dev"]}}, nil

	case "empirical":
		if len(spec.Points) < 2 {
			return nil, fmt.Errorf("empirical curve requires at least 2 points, got %d", len(spec.Points))
		}
		pts := make([]CurvePoint, len(spec.Points))
		copy(pts, spec.Points)
		sort.Slice(pts, func(i, j int) bool { return pts[i].Load < pts[j].Load })
		loads := make([]float64, len(pts))
		durations := make([]float64, len(pts))
		for i, p := range pts {
			if p.Duration < 0 {
				return nil, fmt.Errorf("empirical curve point %d: duration must be >= 0, got %v", i, p.Duration)
			}
			if i > 0 && pts[i-1].Load == p.Load {
				return nil, fmt.Errorf("empirical curve has duplicate load %v", p.Load)
			}
			loads[i] = p.Load
			durations[i] = p.Duration
		}
		return &EmpiricalCurve{loads: loads, durations: durations}, nil

	default:
		return nil, fmt.Errorf("unknown service-time model kind %q", spec.Kind)
	}
}
