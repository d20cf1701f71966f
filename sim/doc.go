// Package sim provides the core discrete-event simulation engine for
// time-constrained NFV service-chain profiling.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - chain.go: Chain, Stage, and Flow — the system under simulation
//   - event.go: Event types that drive a pass (Arrival, StageStart, StageComplete, Departure)
//   - scheduler.go: The time-ordered event queue and monotonic clock
//
// run.go orchestrates one profiling run: the sampler loop feeding
// measurement passes, and experiment.go expands an experiment into
// independent runs executed across a worker pool.
//
// # Architecture
//
// The sim package owns the event loop and chain state; supporting
// concerns live in sub-packages:
//   - sim/servicetime/: processing-time models (deterministic, closed-form distributions, empirical curves)
//   - sim/profiling/: point selection, budgets, and accuracy-aware stopping
//   - sim/results/: sample records, the append-only recorder, and CSV tables
//
// # Determinism
//
// A run's randomness comes exclusively from its StreamManager (rng.go):
// named streams derived from the run key, one per logical purpose.
// Event ties are broken by insertion order. Two runs with the same key
// and configuration produce byte-identical result tables, regardless of
// how many runs execute concurrently around them.
package sim
