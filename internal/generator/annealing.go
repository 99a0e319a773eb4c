package generator

import (
	"context"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/combin"

	"lvcagen/internal/core"
)

// SimulatedAnnealing starts from a random row set somewhat above the lower
// bound, anneals it to full coverage with single-swap moves, then repeatedly
// drops a row and anneals again until a recovery fails. A failed recovery
// before any covering set exists adds a fresh row and tries again.
type SimulatedAnnealing struct {
	cfg    core.GenConfig
	logger *zap.Logger
}

// NewSimulatedAnnealing creates an annealing generator.
func NewSimulatedAnnealing(cfg core.GenConfig, logger *zap.Logger) *SimulatedAnnealing {
	return &SimulatedAnnealing{cfg: cfg, logger: logger}
}

// Name returns AlgorithmAnnealing.
func (g *SimulatedAnnealing) Name() string {
	return AlgorithmAnnealing
}

// Generate returns the smallest fully covering row set found.
func (g *SimulatedAnnealing) Generate(ctx context.Context, p core.Params) (*Result, error) {
	target, err := core.Build(p)
	if err != nil {
		return nil, err
	}
	logger := loggerFor(g.logger, g.Name(), p)
	lb := core.LowerBound(p)

	// Only one row has exactly k ones.
	if p.K == 0 || p.K == p.N {
		ones := make([]int, p.K)
		for i := range ones {
			ones[i] = i
		}
		row := core.NewRow(p.N, ones)
		cov := target.NewCoverage()
		cov.MarkCovered(row)
		return &Result{Rows: []core.Row{row}, Steps: 0, Coverage: cov.Fraction(), Complete: cov.Complete(), LowerBound: lb}, nil
	}

	rng := rand.New(rand.NewSource(g.cfg.Seed))
	s := newAnnealState(target, g.cfg, lb, rng)
	logger.Debug("initial solution", zap.Int("rows", len(s.rows)), zap.Int("uncovered", s.counter.Uncovered()))

	sl := NewSearchLogger(logger, target, g.cfg.Verbose)
	sl.Init()
	finish := func(err error) (*Result, error) {
		res := s.result()
		sl.Finalize(res)
		if err == nil && !res.Complete {
			err = exhausted(s.steps)
		}
		return res, err
	}

	for !s.done {
		if ctx.Err() != nil {
			return finish(interrupted(ctx))
		}
		if !g.cfg.StepBudgetLeft(s.steps) {
			if s.best != nil {
				return finish(nil)
			}
			return finish(exhausted(s.steps))
		}
		s.step(rng)
		sl.Update(target.Size() - s.counter.Uncovered())
	}
	return finish(nil)
}

// annealState is the full state of one annealing run.
type annealState struct {
	target  *core.Target
	cfg     core.GenConfig
	lb      int
	rows    []core.Row
	keys    *core.RowSet
	counter *core.Counter

	temperature  float64
	steps        int
	recoverSteps int
	best         []core.Row
	done         bool
}

func newAnnealState(target *core.Target, cfg core.GenConfig, lb int, rng *rand.Rand) *annealState {
	p := target.Params()
	s := &annealState{
		target:      target,
		cfg:         cfg,
		lb:          lb,
		keys:        core.NewRowSet(),
		counter:     target.NewCounter(),
		temperature: cfg.T0,
	}
	want := initialRows(p, lb, cfg)
	if total, ok := rowSpaceSize(p); ok && want >= total {
		for _, ones := range combin.Combinations(p.N, p.K) {
			s.add(core.NewRow(p.N, ones))
		}
	} else {
		for s.keys.Len() < want {
			if r := core.RandomRow(p.N, p.K, rng); !s.keys.Contains(r) {
				s.add(r)
			}
		}
	}
	return s
}

// initialRows returns min(C(n,k), max(ceil(lb*InitFactor), lb+InitSlack)).
func initialRows(p core.Params, lb int, cfg core.GenConfig) int {
	want := max(int(math.Ceil(float64(lb)*cfg.InitFactor)), lb+cfg.InitSlack)
	if total, ok := rowSpaceSize(p); ok && total < want {
		return total
	}
	return want
}

// rowSpaceSize returns C(n,k) when it fits comfortably in an int.
func rowSpaceSize(p core.Params) (int, bool) {
	if combin.LogGeneralizedBinomial(float64(p.N), float64(p.K)) > 40 {
		return 0, false
	}
	return combin.Binomial(p.N, p.K), true
}

func (s *annealState) add(r core.Row) {
	s.rows = append(s.rows, r)
	s.keys.Add(r)
	s.counter.Add(r)
}

func (s *annealState) energy() float64 {
	return float64(s.counter.Uncovered()) + s.cfg.SizeWeight*float64(len(s.rows))
}

// step advances the search by one move. A fully covering set is recorded
// and shrunk by one row; otherwise one swap move is proposed. When a
// recovery fails the search stops, unless no covering set has been seen
// yet, in which case a row is added and the temperature reheated.
func (s *annealState) step(rng *rand.Rand) {
	s.steps++
	if s.counter.Uncovered() == 0 {
		s.best = append(s.best[:0:0], s.rows...)
		if len(s.rows) <= s.lb || len(s.rows) <= 1 {
			s.done = true
			return
		}
		s.removeAt(rng.Intn(len(s.rows)))
		s.temperature = s.cfg.T0
		s.recoverSteps = 0
		return
	}
	if s.recoverSteps >= s.cfg.RecoverySteps || s.temperature <= s.cfg.TMin {
		if s.best != nil || !s.addRandom(rng) {
			s.done = true
			return
		}
		s.temperature = s.cfg.T0
		s.recoverSteps = 0
		return
	}
	s.recoverSteps++

	i := rng.Intn(len(s.rows))
	old := s.rows[i]
	cand, ok := core.RandomNeighbor(old, rng)
	if ok && !s.keys.Contains(cand) {
		before := s.energy()
		s.counter.Remove(old)
		s.counter.Add(cand)
		delta := s.energy() - before
		if delta <= 0 || rng.Float64() < math.Exp(-delta/s.temperature) {
			s.rows[i] = cand
			s.keys.Remove(old)
			s.keys.Add(cand)
		} else {
			s.counter.Remove(cand)
			s.counter.Add(old)
		}
	}
	s.temperature = math.Max(s.temperature*s.cfg.Cooling, s.cfg.TMin)
}

// maxAddTries bounds the rejection sampling for a row not yet in the set.
const maxAddTries = 64

// addRandom adds a random row not already in the set.
func (s *annealState) addRandom(rng *rand.Rand) bool {
	p := s.target.Params()
	for range maxAddTries {
		if r := core.RandomRow(p.N, p.K, rng); !s.keys.Contains(r) {
			s.add(r)
			return true
		}
	}
	return false
}

func (s *annealState) removeAt(i int) {
	r := s.rows[i]
	last := len(s.rows) - 1
	s.rows[i] = s.rows[last]
	s.rows = s.rows[:last]
	s.keys.Remove(r)
	s.counter.Remove(r)
}

// result reports the best covering set, or the current set if none has
// been found.
func (s *annealState) result() *Result {
	res := &Result{Steps: s.steps, LowerBound: s.lb}
	if s.best != nil {
		res.Rows = s.best
		res.Coverage = 1.0
		res.Complete = true
		return res
	}
	res.Rows = append([]core.Row(nil), s.rows...)
	res.Coverage = s.counter.Fraction()
	res.Complete = s.counter.Uncovered() == 0
	return res
}
