package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Fixed trailing columns after the per-stage parameter columns. The
// prefix {params..., metric_value, elapsed_time, sample_index, run_id}
// is the stable schema the external combiner merges on; the remaining
// columns are measurement bookkeeping.
var fixedColumns = []string{
	"metric_value",
	"elapsed_time",
	"sample_index",
	"run_id",
	"sim_time",
	"ci_halfwidth",
	"clamped_low",
	"clamped_high",
}

// Table is a finalized, immutable result table for one run. Obtained
// from Recorder.Finalize or by deserializing a previously written table.
type Table struct {
	runID      string
	paramNames []string
	records    []SampleRecord
}

// RunID returns the run this table belongs to.
func (t *Table) RunID() string { return t.runID }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.records) }

// Columns returns the column schema: one "param_<name>" column per
// chain stage followed by the fixed columns.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.paramNames)+len(fixedColumns))
	for _, n := range t.paramNames {
		cols = append(cols, "param_"+n)
	}
	return append(cols, fixedColumns...)
}

// Records returns a copy of the rows, preserving order.
func (t *Table) Records() []SampleRecord {
	out := make([]SampleRecord, len(t.records))
	copy(out, t.records)
	return out
}

// WriteCSV serializes the table. Row order and values are preserved
// exactly, so for any table with at least one row a round trip through
// ReadCSV yields an identical table. The run ID travels in the rows: a
// zero-row table (a run exhausted before its first sample) serializes
// to a bare header and deserializes with an empty run ID.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	row := make([]string, len(t.paramNames)+len(fixedColumns))
	for _, rec := range t.records {
		i := 0
		for _, p := range rec.Params {
			row[i] = formatFloat(p)
			i++
		}
		row[i] = formatFloat(rec.MetricValue)
		row[i+1] = strconv.FormatInt(rec.ElapsedTime.Nanoseconds(), 10)
		row[i+2] = strconv.Itoa(rec.SampleIndex)
		row[i+3] = rec.RunID
		row[i+4] = formatFloat(rec.SimTime)
		row[i+5] = formatFloat(rec.Accuracy)
		row[i+6] = strconv.Itoa(rec.ClampedLow)
		row[i+7] = strconv.Itoa(rec.ClampedHigh)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", rec.SampleIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV deserializes a table previously written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	nParams := len(header) - len(fixedColumns)
	if nParams < 0 {
		return nil, fmt.Errorf("header has %d columns, want at least %d", len(header), len(fixedColumns))
	}
	paramNames := make([]string, nParams)
	for i := 0; i < nParams; i++ {
		name, ok := strings.CutPrefix(header[i], "param_")
		if !ok {
			return nil, fmt.Errorf("column %d: expected param_ prefix, got %q", i, header[i])
		}
		paramNames[i] = name
	}
	for i, want := range fixedColumns {
		if header[nParams+i] != want {
			return nil, fmt.Errorf("column %d: got %q, want %q", nParams+i, header[nParams+i], want)
		}
	}

	t := &Table{paramNames: paramNames}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		rec, err := parseRecord(row, nParams)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if t.runID == "" {
			t.runID = rec.RunID
		}
		t.records = append(t.records, rec)
	}
	return t, nil
}

func parseRecord(row []string, nParams int) (SampleRecord, error) {
	var rec SampleRecord
	if len(row) != nParams+len(fixedColumns) {
		return rec, fmt.Errorf("row has %d fields, want %d", len(row), nParams+len(fixedColumns))
	}
	rec.Params = make([]float64, nParams)
	for i := 0; i < nParams; i++ {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return rec, fmt.Errorf("param %d: %w", i, err)
		}
		rec.Params[i] = v
	}
	var err error
	if rec.MetricValue, err = strconv.ParseFloat(row[nParams], 64); err != nil {
		return rec, fmt.Errorf("metric_value: %w", err)
	}
	elapsedNs, err := strconv.ParseInt(row[nParams+1], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("elapsed_time: %w", err)
	}
	rec.ElapsedTime = time.Duration(elapsedNs)
	if rec.SampleIndex, err = strconv.Atoi(row[nParams+2]); err != nil {
		return rec, fmt.Errorf("sample_index: %w", err)
	}
	rec.RunID = row[nParams+3]
	if rec.SimTime, err = strconv.ParseFloat(row[nParams+4], 64); err != nil {
		return rec, fmt.Errorf("sim_time: %w", err)
	}
	if rec.Accuracy, err = strconv.ParseFloat(row[nParams+5], 64); err != nil {
		return rec, fmt.Errorf("ci_halfwidth: %w", err)
	}
	if rec.ClampedLow, err = strconv.Atoi(row[nParams+6]); err != nil {
		return rec, fmt.Errorf("clamped_low: %w", err)
	}
	if rec.ClampedHigh, err = strconv.Atoi(row[nParams+7]); err != nil {
		return rec, fmt.Errorf("clamped_high: %w", err)
	}
	return rec, nil
}

// formatFloat renders a float so that parsing it back is lossless.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
