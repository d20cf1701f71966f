// Package results accumulates per-sample profiling records into an
// immutable result table and serializes it for the external combiner.
// It has no dependencies on the engine packages — pure data and I/O.
package results

import (
	"fmt"
	"time"
)

// SampleRecord is one row of profiling output: the configuration point
// sampled, the measured metric, and measurement bookkeeping. Records are
// append-only and never mutated after being handed to a Recorder.
type SampleRecord struct {
	RunID       string
	SampleIndex int
	// Params holds the configuration point (per-stage CPU shares),
	// ordered as the recorder's parameter names.
	Params      []float64
	MetricValue float64
	// ElapsedTime is the wall-clock cost of taking this sample.
	ElapsedTime time.Duration
	// SimTime is the simulated measurement cost in seconds.
	SimTime float64
	// Accuracy is the confidence-interval half-width of the running
	// mean for this point, or NaN while no estimate is available.
	Accuracy float64
	// Clamp counts from empirical-curve lookups during the pass.
	// Metadata only; clamping is never an error.
	ClampedLow  int
	ClampedHigh int
}

// RecorderClosedError reports an append to a finalized recorder — a
// programming-contract violation, not a recoverable condition.
type RecorderClosedError struct {
	RunID string
}

func (e *RecorderClosedError) Error() string {
	return fmt.Sprintf("recorder for run %q is finalized; no further samples may be appended", e.RunID)
}

// Recorder accumulates SampleRecords for one run. Not safe for
// concurrent use; each run owns exactly one Recorder.
type Recorder struct {
	runID      string
	paramNames []string
	records    []SampleRecord
	table      *Table // non-nil once finalized
}

// NewRecorder creates a Recorder for the given run and parameter
// column names (one per chain stage).
func NewRecorder(runID string, paramNames []string) *Recorder {
	return &Recorder{
		runID:      runID,
		paramNames: append([]string(nil), paramNames...),
	}
}

// Append adds one sample record. The record's RunID and parameter
// arity must match the recorder's.
func (r *Recorder) Append(rec SampleRecord) error {
	if r.table != nil {
		return &RecorderClosedError{RunID: r.runID}
	}
	if rec.RunID != r.runID {
		return fmt.Errorf("record run ID %q does not match recorder run ID %q", rec.RunID, r.runID)
	}
	if len(rec.Params) != len(r.paramNames) {
		return fmt.Errorf("record has %d params, recorder expects %d", len(rec.Params), len(r.paramNames))
	}
	rec.Params = append([]float64(nil), rec.Params...)
	r.records = append(r.records, rec)
	return nil
}

// Len returns the number of records appended so far.
func (r *Recorder) Len() int {
	if r.table != nil {
		return r.table.Len()
	}
	return len(r.records)
}

// Finalize closes the recorder and returns the immutable table.
// Idempotent: later calls return the same table.
func (r *Recorder) Finalize() *Table {
	if r.table == nil {
		r.table = &Table{
			runID:      r.runID,
			paramNames: r.paramNames,
			records:    r.records,
		}
		r.records = nil
	}
	return r.table
}
