package core

import (
	"fmt"
	"runtime"
)

// Defaults for the search strategies.
const (
	DefaultSeed            = 42 // common seed used for fair comparison across algorithms
	DefaultMaxSteps        = 5_000_000
	DefaultFocusThreshold  = 0.05
	DefaultPoolSize        = 1000
	DefaultNeighborSamples = 64
	DefaultT0              = 10.0
	DefaultCooling         = 0.9995
	DefaultTMin            = 1e-6
	DefaultInitFactor      = 1.2
	DefaultInitSlack       = 10
	DefaultRecoverySteps   = 120_000
)

// GenConfig holds tuning parameters shared by the generators.
type GenConfig struct {
	Seed     int64 `yaml:"seed"`
	MaxSteps int   `yaml:"max_steps"` // Per-run step budget, 0 for unlimited
	Workers  int   `yaml:"workers"`   // Goroutines used to score candidate pools
	Verbose  bool  `yaml:"verbose"`

	// Adaptive sampling: uncovered fraction below which draws target
	// uncovered combinations directly.
	FocusThreshold float64 `yaml:"focus_threshold"`

	// Heuristic greedy.
	PoolSize        int `yaml:"pool_size"`        // Candidates scored per step
	NeighborSamples int `yaml:"neighbor_samples"` // Of those, neighbors of the last pick

	// Simulated annealing.
	T0            float64 `yaml:"t0"`
	Cooling       float64 `yaml:"cooling"` // Geometric factor applied every step
	TMin          float64 `yaml:"t_min"`
	SizeWeight    float64 `yaml:"size_weight"` // Energy weight of the row count
	InitFactor    float64 `yaml:"init_factor"`
	InitSlack     int     `yaml:"init_slack"`
	RecoverySteps int     `yaml:"recovery_steps"`
}

// DefaultGenConfig creates a configuration with default values.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:            DefaultSeed,
		MaxSteps:        DefaultMaxSteps,
		Workers:         runtime.NumCPU(),
		FocusThreshold:  DefaultFocusThreshold,
		PoolSize:        DefaultPoolSize,
		NeighborSamples: DefaultNeighborSamples,
		T0:              DefaultT0,
		Cooling:         DefaultCooling,
		TMin:            DefaultTMin,
		InitFactor:      DefaultInitFactor,
		InitSlack:       DefaultInitSlack,
		RecoverySteps:   DefaultRecoverySteps,
	}
}

// Validate rejects configurations the generators cannot run with.
func (c GenConfig) Validate() error {
	switch {
	case c.MaxSteps < 0:
		return fmt.Errorf("max_steps must be >= 0, got %d", c.MaxSteps)
	case c.FocusThreshold < 0 || c.FocusThreshold > 1:
		return fmt.Errorf("focus_threshold must be in [0,1], got %g", c.FocusThreshold)
	case c.PoolSize < 1:
		return fmt.Errorf("pool_size must be >= 1, got %d", c.PoolSize)
	case c.NeighborSamples < 0 || c.NeighborSamples > c.PoolSize:
		return fmt.Errorf("neighbor_samples must be in [0,pool_size], got %d", c.NeighborSamples)
	case c.T0 <= 0:
		return fmt.Errorf("t0 must be > 0, got %g", c.T0)
	case c.Cooling <= 0 || c.Cooling >= 1:
		return fmt.Errorf("cooling must be in (0,1), got %g", c.Cooling)
	case c.TMin <= 0 || c.TMin >= c.T0:
		return fmt.Errorf("t_min must be in (0,t0), got %g", c.TMin)
	case c.SizeWeight < 0:
		return fmt.Errorf("size_weight must be >= 0, got %g", c.SizeWeight)
	case c.InitFactor < 1:
		return fmt.Errorf("init_factor must be >= 1, got %g", c.InitFactor)
	case c.InitSlack < 0:
		return fmt.Errorf("init_slack must be >= 0, got %d", c.InitSlack)
	case c.RecoverySteps < 1:
		return fmt.Errorf("recovery_steps must be >= 1, got %d", c.RecoverySteps)
	}
	return nil
}

// StepBudgetLeft reports whether step is still inside the MaxSteps budget.
func (c GenConfig) StepBudgetLeft(step int) bool {
	return c.MaxSteps == 0 || step < c.MaxSteps
}
