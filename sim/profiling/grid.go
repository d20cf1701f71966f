// Package profiling decides which configuration points to sample under
// a measurement budget, and when to stop. It owns the sampler state
// machine, the selection policies, and the budget/accuracy bookkeeping.
package profiling

import "fmt"

// Point is one configuration of the parameter grid: a CPU share per
// chain stage. Index is the point's position in grid order and is
// stable for the lifetime of a run.
type Point struct {
	Index  int
	Shares []float64
}

// NewGrid builds the full parameter grid as the cartesian product of
// the per-stage share values. The first stage varies fastest.
func NewGrid(perStage [][]float64) ([]Point, error) {
	if len(perStage) == 0 {
		return nil, fmt.Errorf("grid needs at least one stage dimension")
	}
	total := 1
	for i, values := range perStage {
		if len(values) == 0 {
			return nil, fmt.Errorf("stage %d has no grid values", i)
		}
		total *= len(values)
	}

	points := make([]Point, total)
	for idx := 0; idx < total; idx++ {
		shares := make([]float64, len(perStage))
		rem := idx
		for s, values := range perStage {
			shares[s] = values[rem%len(values)]
			rem /= len(values)
		}
		points[idx] = Point{Index: idx, Shares: shares}
	}
	return points, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive,
// the usual way share sweeps are specified.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
