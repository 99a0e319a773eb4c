package generator

import (
	"context"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"lvcagen/internal/core"
)

// AdaptiveSampling draws rows biased towards positions that have been 1 the
// fewest times, and switches to drawing rows around uncovered combinations
// once little remains to cover.
type AdaptiveSampling struct {
	cfg    core.GenConfig
	logger *zap.Logger
}

// NewAdaptiveSampling creates an adaptive sampling generator.
func NewAdaptiveSampling(cfg core.GenConfig, logger *zap.Logger) *AdaptiveSampling {
	return &AdaptiveSampling{cfg: cfg, logger: logger}
}

// Name returns AlgorithmAdaptive.
func (g *AdaptiveSampling) Name() string {
	return AlgorithmAdaptive
}

// Generate samples rows until every feasible combination is covered.
func (g *AdaptiveSampling) Generate(ctx context.Context, p core.Params) (*Result, error) {
	target, err := core.Build(p)
	if err != nil {
		return nil, err
	}
	logger := loggerFor(g.logger, g.Name(), p)
	rng := rand.New(rand.NewSource(g.cfg.Seed))
	cov := target.NewCoverage()
	seen := core.NewRowSet()
	labelCounts := make([]int, p.N)

	res := &Result{LowerBound: core.LowerBound(p)}
	sl := NewSearchLogger(logger, target, g.cfg.Verbose)
	sl.Init()
	finish := func(err error) (*Result, error) {
		res.Coverage = cov.Fraction()
		res.Complete = cov.Complete()
		sl.Finalize(res)
		return res, err
	}

	for !cov.Complete() {
		if ctx.Err() != nil {
			return finish(interrupted(ctx))
		}
		if !g.cfg.StepBudgetLeft(res.Steps) {
			return finish(exhausted(res.Steps))
		}
		res.Steps++

		var row core.Row
		if 1-cov.Fraction() < g.cfg.FocusThreshold {
			c, _ := cov.RandomUncovered(rng)
			row = core.RowFromCombination(p.N, p.K, c, rng)
		} else {
			row = labelBiasedRow(p.N, p.K, labelCounts, rng)
		}

		if seen.Contains(row) {
			continue
		}
		if cov.MarkCovered(row) == 0 {
			continue
		}
		seen.Add(row)
		res.Rows = append(res.Rows, row)
		for _, i := range row.Ones() {
			labelCounts[i]++
		}
		sl.Update(cov.Covered())
	}
	return finish(nil)
}

// labelBiasedRow places about half of the k ones among a random-size prefix
// of the least used positions and the rest among the others.
func labelBiasedRow(n, k int, labelCounts []int, rng *rand.Rand) core.Row {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	sort.SliceStable(labels, func(a, b int) bool {
		return labelCounts[labels[a]] < labelCounts[labels[b]]
	})

	m := 1 + rng.Intn((n+1)/2)
	least, others := labels[:m], labels[m:]
	c1 := min(m, (k+1)/2)
	c2 := k - c1
	if c2 > len(others) {
		c2 = len(others)
		c1 = k - c2
	}

	ones := make([]int, 0, k)
	ones = append(ones, sample(least, c1, rng)...)
	ones = append(ones, sample(others, c2, rng)...)
	return core.NewRow(n, ones)
}

// sample picks c distinct elements of pool without modifying it.
func sample(pool []int, c int, rng *rand.Rand) []int {
	buf := append([]int(nil), pool...)
	for i := 0; i < c; i++ {
		j := i + rng.Intn(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:c]
}
