// Package lvca generates and verifies k-constrained covering arrays: binary
// arrays over n parameters in which every row has exactly k ones and every
// feasible assignment of every tau parameters appears in some row.
package lvca

import (
	"context"

	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/generator"
	"lvcagen/internal/serial"
	"lvcagen/internal/verify"
)

type (
	Params     = core.Params
	Row        = core.Row
	Config     = core.GenConfig
	ActsConfig = generator.ActsConfig
	Result     = generator.Result
	Report     = verify.Report
)

// Algorithm names accepted by Generate.
const (
	AdaptiveSampling   = generator.AlgorithmAdaptive
	HeuristicGreedy    = generator.AlgorithmGreedy
	SimulatedAnnealing = generator.AlgorithmAnnealing
	Acts               = generator.AlgorithmActs
)

// Errors reported by Generate and Verify.
var (
	ErrInvalidParameters           = core.ErrInvalidParameters
	ErrGenerationTimeout           = core.ErrGenerationTimeout
	ErrBudgetExhausted             = core.ErrBudgetExhausted
	ErrExternalToolUnavailable     = core.ErrExternalToolUnavailable
	ErrExternalToolFailed          = core.ErrExternalToolFailed
	ErrExternalToolOutputMalformed = core.ErrExternalToolOutputMalformed
)

// Options configures Generate.
type Options struct {
	Config Config
	Acts   ActsConfig
	Logger *zap.Logger
}

// DefaultOptions returns the default search and ACTS settings.
func DefaultOptions() Options {
	return Options{Config: core.DefaultGenConfig(), Acts: generator.DefaultActsConfig()}
}

// Algorithms lists the algorithm names in their standard order.
func Algorithms() []string {
	return generator.Algorithms()
}

// Generate runs one algorithm on p. See generator.Generator for how partial
// results are reported.
func Generate(ctx context.Context, algorithm string, p Params, opts Options) (*Result, error) {
	g, err := generator.New(algorithm, generator.Options{Config: opts.Config, Acts: opts.Acts, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, p)
}

// Verify checks rows against p independently of how they were produced.
func Verify(rows []Row, p Params) (Report, error) {
	return verify.Verify(rows, p)
}

// LowerBound returns a counting lower bound on the rows any covering array
// for p needs.
func LowerBound(p Params) int {
	return core.LowerBound(p)
}

// NewRow builds a row of width n with ones at the given positions.
func NewRow(n int, ones []int) Row {
	return core.NewRow(n, ones)
}

// RowFromInts converts a 0/1 slice into a Row.
func RowFromInts(vals []int) (Row, error) {
	return core.RowFromInts(vals)
}

var (
	// WriteCSV writes rows as CSV with a p1..pn header.
	WriteCSV = serial.WriteRows
	// ReadCSV reads rows of width n from CSV, skipping comments and the header.
	ReadCSV = serial.ReadRows
)
