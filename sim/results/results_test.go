package results

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []SampleRecord {
	return []SampleRecord{
		{
			RunID:       "exp-c001-r00",
			SampleIndex: 0,
			Params:      []float64{0.25, 1.0},
			MetricValue: 3.1415,
			ElapsedTime: 1500 * time.Microsecond,
			SimTime:     62.5,
			Accuracy:    math.NaN(),
		},
		{
			RunID:       "exp-c001-r00",
			SampleIndex: 1,
			Params:      []float64{0.5, 0.5},
			MetricValue: 1e-9,
			ElapsedTime: 2 * time.Millisecond,
			SimTime:     60.000001,
			Accuracy:    0.125,
			ClampedLow:  1,
			ClampedHigh: 3,
		},
	}
}

func TestRecorder_AppendAndFinalize(t *testing.T) {
	r := NewRecorder("exp-c001-r00", []string{"fw", "ids"})
	for _, rec := range sampleRecords() {
		require.NoError(t, r.Append(rec))
	}
	assert.Equal(t, 2, r.Len())

	table := r.Finalize()
	assert.Equal(t, "exp-c001-r00", table.RunID())
	assert.Equal(t, 2, table.Len())
	assert.Same(t, table, r.Finalize(), "Finalize must be idempotent")
}

func TestRecorder_AppendAfterFinalize(t *testing.T) {
	r := NewRecorder("run", []string{"a"})
	r.Finalize()

	err := r.Append(SampleRecord{RunID: "run", Params: []float64{1}})
	var closed *RecorderClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, "run", closed.RunID)
}

func TestRecorder_RejectsMismatches(t *testing.T) {
	r := NewRecorder("run", []string{"a", "b"})

	assert.Error(t, r.Append(SampleRecord{RunID: "other", Params: []float64{1, 2}}), "foreign run ID")
	assert.Error(t, r.Append(SampleRecord{RunID: "run", Params: []float64{1}}), "wrong param arity")
}

func TestRecorder_CopiesParams(t *testing.T) {
	r := NewRecorder("run", []string{"a"})
	params := []float64{0.5}
	require.NoError(t, r.Append(SampleRecord{RunID: "run", Params: params}))
	params[0] = 99

	assert.Equal(t, 0.5, r.Finalize().Records()[0].Params[0])
}

func TestTable_Columns(t *testing.T) {
	r := NewRecorder("run", []string{"fw", "ids"})
	assert.Equal(t, []string{
		"param_fw", "param_ids",
		"metric_value", "elapsed_time", "sample_index", "run_id",
		"sim_time", "ci_halfwidth", "clamped_low", "clamped_high",
	}, r.Finalize().Columns())
}

func TestTable_CSVRoundTrip(t *testing.T) {
	r := NewRecorder("exp-c001-r00", []string{"fw", "ids"})
	for _, rec := range sampleRecords() {
		require.NoError(t, r.Append(rec))
	}
	table := r.Finalize()

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.RunID(), back.RunID())

	orig, parsed := table.Records(), back.Records()
	require.Len(t, parsed, len(orig))
	for i := range orig {
		a, b := orig[i], parsed[i]
		assert.Equal(t, a.RunID, b.RunID)
		assert.Equal(t, a.SampleIndex, b.SampleIndex)
		assert.Equal(t, a.Params, b.Params)
		assert.Equal(t, a.MetricValue, b.MetricValue)
		assert.Equal(t, a.ElapsedTime, b.ElapsedTime)
		assert.Equal(t, a.SimTime, b.SimTime)
		assert.Equal(t, a.ClampedLow, b.ClampedLow)
		assert.Equal(t, a.ClampedHigh, b.ClampedHigh)
		if math.IsNaN(a.Accuracy) {
			assert.True(t, math.IsNaN(b.Accuracy), "record %d accuracy should stay NaN", i)
		} else {
			assert.Equal(t, a.Accuracy, b.Accuracy)
		}
	}
}

func TestTable_EmptyCSVRoundTrip(t *testing.T) {
	// A run exhausted before its first sample finalizes a zero-row
	// table. The schema survives the round trip; the run ID lives in
	// the rows, so none comes back.
	table := NewRecorder("empty-run", []string{"fw"}).Finalize()

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, table.Columns(), back.Columns())
	assert.Equal(t, "", back.RunID())
}

func TestTable_CSVDeterministicBytes(t *testing.T) {
	build := func() []byte {
		r := NewRecorder("exp-c001-r00", []string{"fw", "ids"})
		for _, rec := range sampleRecords() {
			require.NoError(t, r.Append(rec))
		}
		var buf bytes.Buffer
		require.NoError(t, r.Finalize().WriteCSV(&buf))
		return buf.Bytes()
	}
	assert.Equal(t, build(), build(), "identical tables must serialize to identical bytes")
}

func TestReadCSV_RejectsBadHeader(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"too few columns", "a,b\n"},
		{"missing param prefix", "fw,metric_value,elapsed_time,sample_index,run_id,sim_time,ci_halfwidth,clamped_low,clamped_high\n"},
		{"reordered fixed columns", "param_fw,elapsed_time,metric_value,sample_index,run_id,sim_time,ci_halfwidth,clamped_low,clamped_high\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(bytes.NewBufferString(tt.csv))
			assert.Error(t, err)
		})
	}
}
