package sim

import (
	"fmt"

	"github.com/sfc-sim/sfc-sim/sim/servicetime"
)

// StageConfig is the immutable description of one VNF stage.
type StageConfig struct {
	// ID names the stage in logs and error messages.
	ID string
	// Slots is the number of flows the stage can serve concurrently.
	// Arrivals beyond Slots queue FIFO without preemption.
	Slots int
	// Model is the bound service-time model.
	Model servicetime.Model
}

// ChainConfig is the immutable description of a service chain. The
// stage order is the traversal order and is fixed for a run.
type ChainConfig struct {
	Stages []StageConfig
}

// Validate checks the structural invariants of the chain description.
func (c ChainConfig) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("chain must have at least one stage")
	}
	for i, st := range c.Stages {
		if st.Slots < 1 {
			return fmt.Errorf("stage %d (%s): slots must be >= 1, got %d", i, st.ID, st.Slots)
		}
		if st.Model == nil {
			return fmt.Errorf("stage %d (%s): no service-time model bound", i, st.ID)
		}
	}
	return nil
}

// Stage is the runtime state of one VNF during a measurement pass.
// Owned exclusively by its Chain; never shared across passes.
type Stage struct {
	ID       string
	Slots    int
	CPUShare float64
	Model    servicetime.Model

	occupancy int
	waiting   []*Flow // FIFO queue of flows beyond capacity
}

// Occupancy returns the number of flows currently holding a slot.
func (st *Stage) Occupancy() int { return st.occupancy }

// QueueLen returns the number of flows waiting for a slot.
func (st *Stage) QueueLen() int { return len(st.waiting) }

// Chain is an ordered sequence of stages a flow traverses.
type Chain struct {
	Stages []*Stage
}

// NewChain instantiates fresh stage state from an immutable chain
// description and the CPU shares of one configuration point. shares
// must have one entry per stage, each in (0, 1].
func NewChain(cfg ChainConfig, shares []float64) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(shares) != len(cfg.Stages) {
		return nil, fmt.Errorf("chain has %d stages but configuration point has %d shares", len(cfg.Stages), len(shares))
	}
	stages := make([]*Stage, len(cfg.Stages))
	for i, sc := range cfg.Stages {
		if shares[i] <= 0 || shares[i] > 1 {
			return nil, fmt.Errorf("stage %d (%s): cpu share must be in (0, 1], got %v", i, sc.ID, shares[i])
		}
		stages[i] = &Stage{
			ID:       sc.ID,
			Slots:    sc.Slots,
			CPUShare: shares[i],
			Model:    sc.Model,
		}
	}
	return &Chain{Stages: stages}, nil
}

// Flow is one traffic unit traversing the chain. Transient: created at
// arrival, discarded after departure.
type Flow struct {
	ID          int
	ArrivalTime int64 // ticks, entry into stage 0
}
