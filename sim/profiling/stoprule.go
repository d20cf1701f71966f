package profiling

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PointStats tracks the measurements observed for one configuration
// point, for accuracy-aware early stopping.
type PointStats struct {
	values []float64
}

// Add records one metric observation.
func (ps *PointStats) Add(v float64) {
	ps.values = append(ps.values, v)
}

// Count returns the number of observations.
func (ps *PointStats) Count() int { return len(ps.values) }

// Mean returns the running mean, or NaN with no observations.
func (ps *PointStats) Mean() float64 {
	if len(ps.values) == 0 {
		return math.NaN()
	}
	return stat.Mean(ps.values, nil)
}

// CIHalfWidth returns the z-scaled half-width of the confidence
// interval on the running mean: z * sqrt(sampleVariance/n). NaN until
// two observations exist.
func (ps *PointStats) CIHalfWidth(z float64) float64 {
	n := len(ps.values)
	if n < 2 {
		return math.NaN()
	}
	return z * math.Sqrt(stat.Variance(ps.values, nil)/float64(n))
}

// StopRule decides when a configuration point has been measured
// accurately enough to retire, freeing budget for other points.
// The exact criterion is pluggable; rules must be deterministic
// functions of the observed statistics.
type StopRule interface {
	Name() string
	Satisfied(ps *PointStats) bool
}

// ConfidenceWidthRule retires a point once the confidence interval on
// its running mean is tighter than MaxHalfWidth. The default rule.
type ConfidenceWidthRule struct {
	// MaxHalfWidth is the target half-width in metric units.
	MaxHalfWidth float64
	// MinSamples is the minimum observations before retiring
	// (at least 2; a single sample has no variance estimate).
	MinSamples int
	// Z is the confidence quantile; 1.96 for a 95% interval.
	Z float64
}

func (r *ConfidenceWidthRule) Name() string { return "confidence_width" }

func (r *ConfidenceWidthRule) Satisfied(ps *PointStats) bool {
	min := r.MinSamples
	if min < 2 {
		min = 2
	}
	if ps.Count() < min {
		return false
	}
	w := ps.CIHalfWidth(r.Z)
	return !math.IsNaN(w) && w <= r.MaxHalfWidth
}
