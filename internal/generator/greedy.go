package generator

import (
	"context"
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lvcagen/internal/core"
)

// HeuristicGreedy adds, at each step, the candidate row with the largest
// marginal gain from a pool of random rows, neighbors of the previous pick,
// and one row built around an uncovered combination.
type HeuristicGreedy struct {
	cfg    core.GenConfig
	logger *zap.Logger
}

// NewHeuristicGreedy creates a greedy generator.
func NewHeuristicGreedy(cfg core.GenConfig, logger *zap.Logger) *HeuristicGreedy {
	return &HeuristicGreedy{cfg: cfg, logger: logger}
}

// Name returns AlgorithmGreedy.
func (g *HeuristicGreedy) Name() string {
	return AlgorithmGreedy
}

// Generate adds the best candidate row until every feasible combination is
// covered. Every step covers at least one new combination.
func (g *HeuristicGreedy) Generate(ctx context.Context, p core.Params) (*Result, error) {
	target, err := core.Build(p)
	if err != nil {
		return nil, err
	}
	logger := loggerFor(g.logger, g.Name(), p)
	rng := rand.New(rand.NewSource(g.cfg.Seed))
	cov := target.NewCoverage()

	res := &Result{LowerBound: core.LowerBound(p)}
	sl := NewSearchLogger(logger, target, g.cfg.Verbose)
	sl.Init()
	finish := func(err error) (*Result, error) {
		res.Coverage = cov.Fraction()
		res.Complete = cov.Complete()
		sl.Finalize(res)
		return res, err
	}

	var last *core.Row
	for !cov.Complete() {
		if ctx.Err() != nil {
			return finish(interrupted(ctx))
		}
		if !g.cfg.StepBudgetLeft(res.Steps) {
			return finish(exhausted(res.Steps))
		}
		res.Steps++

		pool := g.candidates(p, cov, last, rng)
		gains, err := g.score(ctx, cov, pool)
		if err != nil {
			return finish(interrupted(ctx))
		}
		best := pickBest(pool, gains)
		cov.MarkCovered(pool[best])
		res.Rows = append(res.Rows, pool[best])
		last = &pool[best]
		sl.Update(cov.Covered())
	}
	return finish(nil)
}

// candidates builds the pool for one step. The focused row comes first so
// the pool always holds a row with positive gain.
func (g *HeuristicGreedy) candidates(p core.Params, cov *core.Coverage, last *core.Row, rng *rand.Rand) []core.Row {
	pool := make([]core.Row, 0, g.cfg.PoolSize)
	if c, ok := cov.RandomUncovered(rng); ok {
		pool = append(pool, core.RowFromCombination(p.N, p.K, c, rng))
	}
	if last != nil {
		it := core.Neighbors(*last)
		if it.Len() <= g.cfg.NeighborSamples {
			for it.HasNext() && len(pool) < g.cfg.PoolSize {
				pool = append(pool, it.Next())
			}
		} else {
			for i := 0; i < g.cfg.NeighborSamples && len(pool) < g.cfg.PoolSize; i++ {
				pool = append(pool, core.NeighborAt(*last, rng.Intn(it.Len())))
			}
		}
	}
	for len(pool) < g.cfg.PoolSize {
		pool = append(pool, core.RandomRow(p.N, p.K, rng))
	}
	return pool
}

// score computes the marginal gain of every candidate. With more than one
// worker the pool is split into contiguous chunks scored concurrently; each
// chunk writes only its own slots of gains.
func (g *HeuristicGreedy) score(ctx context.Context, cov *core.Coverage, pool []core.Row) ([]int, error) {
	gains := make([]int, len(pool))
	workers := g.cfg.Workers
	if workers <= 1 || len(pool) < 2*workers {
		for i, r := range pool {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			gains[i] = cov.Gain(r)
		}
		return gains, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	chunk := (len(pool) + workers - 1) / workers
	for lo := 0; lo < len(pool); lo += chunk {
		hi := min(lo+chunk, len(pool))
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				gains[i] = cov.Gain(pool[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return gains, nil
}

// pickBest returns the index of the largest gain, breaking ties by the
// lowest row encoding.
func pickBest(pool []core.Row, gains []int) int {
	best := 0
	for i := 1; i < len(pool); i++ {
		if gains[i] > gains[best] || (gains[i] == gains[best] && pool[i].Less(pool[best])) {
			best = i
		}
	}
	return best
}
