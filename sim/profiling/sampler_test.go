package profiling

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sfc-sim/sfc-sim/sim/results"
)

// fakeRunner replays scripted measurements, keyed by call order.
type fakeRunner struct {
	metrics []float64
	simTime float64
	failAt  int // 1-based call index that errors; 0 disables
	calls   int
}

func (r *fakeRunner) Measure(p Point) (Measurement, error) {
	r.calls++
	if r.failAt > 0 && r.calls == r.failAt {
		return Measurement{}, errors.New("pass blew up")
	}
	m := r.metrics[(r.calls-1)%len(r.metrics)]
	return Measurement{Metric: m, SimTime: r.simTime, Wall: time.Millisecond}, nil
}

func newTestSampler(t *testing.T, selector Selector, budget Budget, rule StopRule) (*Sampler, *results.Recorder) {
	t.Helper()
	rec := results.NewRecorder("test-run", []string{"a"})
	return NewSampler("test-run", selector, budget, rule, rec), rec
}

func TestSampler_SampleBudget(t *testing.T) {
	// An unlimited selector over a 10-point grid with a 5-sample budget
	// records exactly 5 samples.
	s, err := NewSelector(SelectorRandom, testGrid(t, 10), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, rec := newTestSampler(t, s, Budget{MaxSamples: 5}, nil)

	if err := sampler.Run(0, &scriptedRand{ints: []int{3}}, &fakeRunner{metrics: []float64{1.5}, simTime: 60}); err != nil {
		t.Fatal(err)
	}
	if sampler.State() != StateExhausted {
		t.Errorf("state = %q, want %q", sampler.State(), StateExhausted)
	}
	if sampler.Recordings() != 5 {
		t.Errorf("recordings = %d, want 5", sampler.Recordings())
	}
	if rec.Len() != 5 {
		t.Errorf("recorder holds %d records, want 5", rec.Len())
	}
}

func TestSampler_SimTimeBudget(t *testing.T) {
	// Each measurement costs 10 simulated seconds against a 25s budget.
	// The check runs between samples, so the third (which overshoots)
	// still completes: 3 samples, 30s used.
	s, err := NewSelector(SelectorRandom, testGrid(t, 10), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, _ := newTestSampler(t, s, Budget{SimTime: 25}, nil)

	if err := sampler.Run(0, &scriptedRand{ints: []int{0}}, &fakeRunner{metrics: []float64{1}, simTime: 10}); err != nil {
		t.Fatal(err)
	}
	if sampler.Recordings() != 3 {
		t.Errorf("recordings = %d, want 3", sampler.Recordings())
	}
	if sampler.Used().SimTime != 30 {
		t.Errorf("used sim time = %v, want 30", sampler.Used().SimTime)
	}
}

func TestSampler_WallClockBudget(t *testing.T) {
	s, err := NewSelector(SelectorRandom, testGrid(t, 10), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, _ := newTestSampler(t, s, Budget{WallClock: 5 * time.Second}, nil)

	// Stub the clock: each observation advances it by 2s, so the budget
	// trips before the fourth sample.
	tick := time.Unix(0, 0)
	sampler.now = func() time.Time {
		tick = tick.Add(2 * time.Second)
		return tick
	}

	if err := sampler.Run(0, &scriptedRand{ints: []int{0}}, &fakeRunner{metrics: []float64{1}, simTime: 1}); err != nil {
		t.Fatal(err)
	}
	if sampler.State() != StateExhausted {
		t.Errorf("state = %q, want %q", sampler.State(), StateExhausted)
	}
	if sampler.Recordings() >= 4 {
		t.Errorf("recordings = %d, want < 4 under a 5s wall budget", sampler.Recordings())
	}
}

func TestSampler_GridCoveredBeforeBudget(t *testing.T) {
	// A grid selector exhausts after its stride sweep even with budget
	// left over.
	s, err := NewSelector(SelectorGrid, testGrid(t, 10), 5)
	if err != nil {
		t.Fatal(err)
	}
	sampler, _ := newTestSampler(t, s, Budget{MaxSamples: 100}, nil)

	if err := sampler.Run(0, nil, &fakeRunner{metrics: []float64{2}, simTime: 1}); err != nil {
		t.Fatal(err)
	}
	if sampler.Recordings() != 5 {
		t.Errorf("recordings = %d, want 5", sampler.Recordings())
	}
	if sampler.State() != StateExhausted {
		t.Errorf("state = %q, want %q", sampler.State(), StateExhausted)
	}
}

func TestSampler_RunnerErrorAborts(t *testing.T) {
	s, err := NewSelector(SelectorRandom, testGrid(t, 10), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, rec := newTestSampler(t, s, Budget{MaxSamples: 10}, nil)

	err = sampler.Run(0, &scriptedRand{ints: []int{0}}, &fakeRunner{metrics: []float64{1}, simTime: 1, failAt: 3})
	if err == nil {
		t.Fatal("runner error was swallowed")
	}
	if sampler.State() == StateExhausted {
		t.Error("aborted sampler reports exhausted")
	}
	// Records appended before the failure stay valid.
	if rec.Len() != 2 {
		t.Errorf("recorder holds %d records, want 2", rec.Len())
	}
}

func TestSampler_RerunAfterExhaustionFails(t *testing.T) {
	s, err := NewSelector(SelectorRandom, testGrid(t, 4), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, _ := newTestSampler(t, s, Budget{MaxSamples: 1}, nil)

	runner := &fakeRunner{metrics: []float64{1}, simTime: 1}
	if err := sampler.Run(0, &scriptedRand{ints: []int{0}}, runner); err != nil {
		t.Fatal(err)
	}
	if err := sampler.Run(0, &scriptedRand{ints: []int{0}}, runner); err == nil {
		t.Error("exhausted sampler accepted a second Run")
	}
}

func TestSampler_StopRuleRetiresPoints(t *testing.T) {
	// Constant metrics collapse each point's CI to zero, so the rule
	// retires a point after its second visit. The priority selector then
	// moves on; with both points retired the sampler exhausts with the
	// grid covered, not the budget spent.
	s, err := NewSelector(SelectorPriority, testGrid(t, 2), -1)
	if err != nil {
		t.Fatal(err)
	}
	rule := &ConfidenceWidthRule{MaxHalfWidth: 0.01, MinSamples: 2, Z: 1.96}
	sampler, _ := newTestSampler(t, s, Budget{MaxSamples: 100}, rule)

	if err := sampler.Run(0, nil, &fakeRunner{metrics: []float64{3}, simTime: 1}); err != nil {
		t.Fatal(err)
	}
	// 2 first-pass visits + 1 retiring visit per point.
	if sampler.Recordings() != 4 {
		t.Errorf("recordings = %d, want 4", sampler.Recordings())
	}
	if sampler.State() != StateExhausted {
		t.Errorf("state = %q, want %q", sampler.State(), StateExhausted)
	}
}

func TestSampler_RecordsAccuracyColumn(t *testing.T) {
	s, err := NewSelector(SelectorPriority, testGrid(t, 1), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, rec := newTestSampler(t, s, Budget{MaxSamples: 3}, nil)

	if err := sampler.Run(0, nil, &fakeRunner{metrics: []float64{2, 4, 3}, simTime: 1}); err != nil {
		t.Fatal(err)
	}
	records := rec.Finalize().Records()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if !math.IsNaN(records[0].Accuracy) {
		t.Errorf("first sample accuracy = %v, want NaN (no variance estimate yet)", records[0].Accuracy)
	}
	// After two samples {2,4}: var=2, half-width = 1.96*sqrt(2/2).
	if want := 1.96; math.Abs(records[1].Accuracy-want) > 1e-12 {
		t.Errorf("second sample accuracy = %v, want %v", records[1].Accuracy, want)
	}
	for i, r := range records {
		if r.SampleIndex != i {
			t.Errorf("record %d carries sample index %d", i, r.SampleIndex)
		}
	}
}

func TestPointStats(t *testing.T) {
	var ps PointStats
	if !math.IsNaN(ps.Mean()) {
		t.Error("empty stats mean is not NaN")
	}
	ps.Add(1)
	if !math.IsNaN(ps.CIHalfWidth(1.96)) {
		t.Error("single-sample CI half-width is not NaN")
	}
	ps.Add(3)
	if got := ps.Mean(); got != 2 {
		t.Errorf("mean = %v, want 2", got)
	}
	if got, want := ps.CIHalfWidth(1.96), 1.96; math.Abs(got-want) > 1e-12 {
		t.Errorf("CI half-width = %v, want %v", got, want)
	}
}

func TestConfidenceWidthRule(t *testing.T) {
	rule := &ConfidenceWidthRule{MaxHalfWidth: 0.5, MinSamples: 3, Z: 1.96}

	var ps PointStats
	ps.Add(2)
	ps.Add(2)
	if rule.Satisfied(&ps) {
		t.Error("satisfied below MinSamples")
	}
	ps.Add(2)
	if !rule.Satisfied(&ps) {
		t.Error("not satisfied with zero variance at MinSamples")
	}

	var noisy PointStats
	for _, v := range []float64{1, 9, 2, 8} {
		noisy.Add(v)
	}
	if rule.Satisfied(&noisy) {
		t.Error("satisfied despite wide interval")
	}
}

func TestBudget_Exhausted(t *testing.T) {
	b := Budget{MaxSamples: 10, SimTime: 100, WallClock: time.Minute}

	if done, _ := b.Exhausted(Usage{Samples: 9, SimTime: 99, Wall: 59 * time.Second}); done {
		t.Error("exhausted below every limit")
	}
	if done, _ := b.Exhausted(Usage{Samples: 10}); !done {
		t.Error("sample limit not detected")
	}
	if done, _ := b.Exhausted(Usage{SimTime: 100}); !done {
		t.Error("sim-time limit not detected")
	}
	if done, _ := b.Exhausted(Usage{Wall: time.Minute}); !done {
		t.Error("wall-clock limit not detected")
	}
	// Zero-valued dimensions are unlimited.
	if done, _ := (Budget{}).Exhausted(Usage{Samples: 1 << 20, SimTime: 1e12, Wall: time.Hour}); done {
		t.Error("unlimited budget reported exhausted")
	}
}

func TestSampler_MeanAccuracy(t *testing.T) {
	s, err := NewSelector(SelectorPriority, testGrid(t, 2), -1)
	if err != nil {
		t.Fatal(err)
	}
	sampler, _ := newTestSampler(t, s, Budget{MaxSamples: 4}, nil)

	if err := sampler.Run(0, nil, &fakeRunner{metrics: []float64{5}, simTime: 1}); err != nil {
		t.Fatal(err)
	}
	// Constant metric: every measured point's half-width is zero.
	if got := sampler.MeanAccuracy(); got != 0 {
		t.Errorf("mean accuracy = %v, want 0", got)
	}
}
