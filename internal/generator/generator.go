// Package generator implements the covering array search strategies and the
// ACTS adapter behind a single Generator interface.
package generator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/util"
)

// Algorithm names, as written to the result store.
const (
	AlgorithmAdaptive  = "adaptive_sampling"
	AlgorithmGreedy    = "heuristic_greedy"
	AlgorithmAnnealing = "simulated_annealing"
	AlgorithmActs      = "acts"
)

// Algorithms returns every algorithm name in run order.
func Algorithms() []string {
	return []string{AlgorithmAdaptive, AlgorithmGreedy, AlgorithmAnnealing, AlgorithmActs}
}

// Result is the outcome of one generation run. On a partial run Rows holds
// whatever the search had when it stopped and Complete is false.
type Result struct {
	Rows       []core.Row
	Steps      int
	Coverage   float64
	Complete   bool
	LowerBound int
}

// Generator produces a k-constrained covering array for p.
//
// Generate returns a non-nil Result together with an error wrapping
// core.ErrGenerationTimeout or core.ErrBudgetExhausted when the search stopped
// early, so callers can still report partial coverage.
type Generator interface {
	Name() string
	Generate(ctx context.Context, p core.Params) (*Result, error)
}

// Options configures the generators built by New.
type Options struct {
	Config core.GenConfig
	Acts   ActsConfig
	Logger *zap.Logger
}

// New returns the generator registered under name.
func New(name string, opts Options) (Generator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	switch name {
	case AlgorithmAdaptive:
		return NewAdaptiveSampling(opts.Config, opts.Logger), nil
	case AlgorithmGreedy:
		return NewHeuristicGreedy(opts.Config, opts.Logger), nil
	case AlgorithmAnnealing:
		return NewSimulatedAnnealing(opts.Config, opts.Logger), nil
	case AlgorithmActs:
		return NewActs(opts.Acts, opts.Logger), nil
	}
	return nil, fmt.Errorf("unknown algorithm %q", name)
}

// IsPartial reports whether err marks a run that stopped before full
// coverage but still returned a usable Result.
func IsPartial(err error) bool {
	return errors.Is(err, core.ErrGenerationTimeout) || errors.Is(err, core.ErrBudgetExhausted)
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %v", core.ErrGenerationTimeout, context.Cause(ctx))
}

func exhausted(steps int) error {
	return fmt.Errorf("%w (%d steps)", core.ErrBudgetExhausted, steps)
}

func loggerFor(logger *zap.Logger, algorithm string, p core.Params) *zap.Logger {
	return util.OrNop(logger).With(
		zap.String("algorithm", algorithm),
		zap.Int("n", p.N),
		zap.Int("tau", p.Tau),
		zap.Int("k", p.K),
	)
}
