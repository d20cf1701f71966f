package sim

import "fmt"

// InvalidDurationError reports a service-time model that produced a
// negative or non-finite duration. The run aborts rather than clamping,
// so a broken model can never silently corrupt profiling results.
type InvalidDurationError struct {
	StageID  string
	Duration float64
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("stage %q: service-time model produced invalid duration %v", e.StageID, e.Duration)
}
