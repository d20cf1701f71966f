package profiling

import (
	"fmt"
	"time"
)

// Budget bounds the measurement effort of one run. Immutable input; a
// zero-valued field means that dimension is unlimited (MaxSamples uses
// <= 0, mirroring the unlimited selector convention).
type Budget struct {
	// MaxSamples caps the number of recorded samples.
	MaxSamples int
	// SimTime caps the simulated measurement time in seconds.
	SimTime float64
	// WallClock caps the real elapsed time, checked between samples
	// only: a running simulation pass is non-interruptible work.
	WallClock time.Duration
}

// Usage is the consumed portion of a budget, updated by the sampler
// after every recorded sample.
type Usage struct {
	Samples int
	SimTime float64
	Wall    time.Duration
}

// Exhausted reports whether any budget dimension is spent, and names
// the dimension for logging.
func (b Budget) Exhausted(u Usage) (bool, string) {
	if b.MaxSamples > 0 && u.Samples >= b.MaxSamples {
		return true, fmt.Sprintf("sample count limit reached (%d)", b.MaxSamples)
	}
	if b.SimTime > 0 && u.SimTime >= b.SimTime {
		return true, fmt.Sprintf("simulated time budget reached (%.1fs)", b.SimTime)
	}
	if b.WallClock > 0 && u.Wall >= b.WallClock {
		return true, fmt.Sprintf("wall-clock budget reached (%s)", b.WallClock)
	}
	return false, ""
}
