package profiling

import (
	"fmt"
	"math"
)

// Rand is the slice of a random stream selectors consume. The engine's
// selection stream satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Selector chooses the next configuration point to profile.
//
// Reinitialize is called once before a run's sampling loop starts, with
// the repetition index and the run's selection stream; selectors must
// reset all per-run state there. HasNext/Next drive the sweep; Feedback
// informs the selector of a measured metric so priority policies can
// adapt.
type Selector interface {
	Name() string
	Reinitialize(repetition int, rng Rand)
	HasNext() bool
	Next() Point
	Feedback(p Point, metric float64)
}

// PointExcluder is implemented by selectors that can retire individual
// points. The sampler retires a point once its accuracy target is met,
// reallocating the remaining budget to other points.
type PointExcluder interface {
	Exclude(pointIndex int)
}

// Selector kinds accepted by NewSelector.
const (
	SelectorRandom          = "random"
	SelectorGrid            = "grid"
	SelectorGridRandomOff   = "grid_random_offset"
	SelectorGridIncremental = "grid_incremental_offset"
	SelectorPriority        = "priority"
)

// NewSelector builds a selection policy over the given grid.
// maxSamples < 0 means unlimited for the random and priority policies;
// the systematic grid policies require a positive maxSamples to derive
// their stride.
func NewSelector(kind string, grid []Point, maxSamples int) (Selector, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("selector needs a non-empty grid")
	}
	switch kind {
	case SelectorRandom:
		return &randomSelector{grid: grid, maxSamples: maxSamples}, nil
	case SelectorGrid:
		return newGridSelector(kind, grid, maxSamples, false, false)
	case SelectorGridRandomOff:
		return newGridSelector(kind, grid, maxSamples, true, false)
	case SelectorGridIncremental:
		return newGridSelector(kind, grid, maxSamples, false, true)
	case SelectorPriority:
		return &prioritySelector{grid: grid, maxSamples: maxSamples}, nil
	default:
		return nil, fmt.Errorf("unknown selector %q", kind)
	}
}

// randomSelector samples uniformly from the grid, with replacement.
type randomSelector struct {
	grid       []Point
	maxSamples int
	taken      int
	rng        Rand
}

func (s *randomSelector) Name() string { return SelectorRandom }

func (s *randomSelector) Reinitialize(_ int, rng Rand) {
	s.taken = 0
	s.rng = rng
}

func (s *randomSelector) HasNext() bool {
	return s.maxSamples < 0 || s.taken < s.maxSamples
}

func (s *randomSelector) Next() Point {
	s.taken++
	return s.grid[s.rng.Intn(len(s.grid))]
}

func (s *randomSelector) Feedback(Point, float64) {}

// gridSelector sweeps the grid systematically with a stride derived
// from the sample budget, so the budget is spread uniformly over the
// parameter space. Optional offsets shift the sweep per repetition:
// randomly within the stride, or by the repetition index. Without
// replacement by construction: every index visited is distinct.
type gridSelector struct {
	name        string
	grid        []Point
	maxSamples  int
	randomOff   bool
	incremental bool

	offset int
	taken  int
}

func newGridSelector(name string, grid []Point, maxSamples int, randomOff, incremental bool) (*gridSelector, error) {
	if maxSamples <= 0 {
		return nil, fmt.Errorf("%s selector requires a positive max sample count", name)
	}
	if maxSamples > len(grid) {
		return nil, fmt.Errorf("%s selector: max samples %d exceeds grid size %d", name, maxSamples, len(grid))
	}
	return &gridSelector{
		name:        name,
		grid:        grid,
		maxSamples:  maxSamples,
		randomOff:   randomOff,
		incremental: incremental,
	}, nil
}

func (s *gridSelector) Name() string { return s.name }

func (s *gridSelector) stride() int {
	return len(s.grid) / s.maxSamples
}

func (s *gridSelector) Reinitialize(repetition int, rng Rand) {
	s.taken = 0
	s.offset = 0
	if s.randomOff {
		s.offset = rng.Intn(s.stride())
	}
	if s.incremental {
		s.offset = repetition
	}
}

func (s *gridSelector) HasNext() bool {
	return s.taken < s.maxSamples
}

func (s *gridSelector) Next() Point {
	idx := s.offset%s.stride() + s.taken*s.stride()
	s.taken++
	return s.grid[idx]
}

func (s *gridSelector) Feedback(Point, float64) {}

// prioritySelector spends the budget where uncertainty is largest.
// Each point is first visited once, in grid order; after that, the
// point with the highest observed metric variance is revisited until
// the sampler retires it. Ties resolve to the lowest index so the
// policy stays deterministic.
type prioritySelector struct {
	grid       []Point
	maxSamples int

	taken    int
	visits   []int
	stats    []welford
	excluded []bool
}

func (s *prioritySelector) Name() string { return SelectorPriority }

func (s *prioritySelector) Reinitialize(_ int, _ Rand) {
	s.taken = 0
	s.visits = make([]int, len(s.grid))
	s.stats = make([]welford, len(s.grid))
	s.excluded = make([]bool, len(s.grid))
}

func (s *prioritySelector) HasNext() bool {
	if s.maxSamples >= 0 && s.taken >= s.maxSamples {
		return false
	}
	for i := range s.grid {
		if !s.excluded[i] {
			return true
		}
	}
	return false
}

func (s *prioritySelector) Next() Point {
	s.taken++
	// First pass: unvisited points in grid order.
	for i := range s.grid {
		if !s.excluded[i] && s.visits[i] == 0 {
			s.visits[i]++
			return s.grid[i]
		}
	}
	// Then: highest variance first.
	best, bestVar := -1, math.Inf(-1)
	for i := range s.grid {
		if s.excluded[i] {
			continue
		}
		if v := s.stats[i].variance(); v > bestVar {
			best, bestVar = i, v
		}
	}
	s.visits[best]++
	return s.grid[best]
}

func (s *prioritySelector) Feedback(p Point, metric float64) {
	s.stats[p.Index].add(metric)
}

func (s *prioritySelector) Exclude(pointIndex int) {
	s.excluded[pointIndex] = true
}

// welford is a running mean/variance accumulator.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

func (w *welford) variance() float64 {
	if w.n < 2 {
		return 0
	}
	return w.m2 / float64(w.n-1)
}
