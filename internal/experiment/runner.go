package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/generator"
	"lvcagen/internal/serial"
	"lvcagen/internal/util"
	"lvcagen/internal/verify"
)

// GeneratorFactory builds the generator for an algorithm name and seed.
type GeneratorFactory func(name string, seed int64) (generator.Generator, error)

// Runner drives every (case, algorithm) unit of an experiment. Each unit
// runs in its own goroutine under a deadline; its record is appended to the
// result store before the checkpoint is replaced.
type Runner struct {
	cfg         Config
	results     *ResultStore
	checkpoints *CheckpointStore
	logger      *zap.Logger
	factory     GeneratorFactory
}

// Option customizes a Runner.
type Option func(*Runner)

// WithGeneratorFactory replaces the factory used to build generators.
func WithGeneratorFactory(f GeneratorFactory) Option {
	return func(r *Runner) { r.factory = f }
}

// NewRunner creates a runner over the given stores.
func NewRunner(cfg Config, results *ResultStore, checkpoints *CheckpointStore, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:         cfg,
		results:     results,
		checkpoints: checkpoints,
		logger:      util.OrNop(logger),
	}
	r.factory = r.defaultFactory
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Runner) defaultFactory(name string, seed int64) (generator.Generator, error) {
	gc := r.cfg.Generator
	gc.Seed = seed
	return generator.New(name, generator.Options{Config: gc, Acts: r.cfg.Acts, Logger: r.logger})
}

// Run executes every unit of cases that the checkpoint does not mark done.
// Unit failures are recorded as statuses; only store errors are returned.
// Cancelling ctx stops the run after the current unit without recording it.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Summary, error) {
	cp, err := r.checkpoints.Load()
	if err != nil {
		return nil, err
	}
	sum := &Summary{}
	prior, err := r.reconcile(cp, sum)
	if err != nil {
		return nil, err
	}

	for _, c := range cases {
		for _, alg := range r.cfg.Algorithms {
			id := c.ID()
			if cp.Done(id, alg, r.cfg.RetryFailed) {
				sum.Skipped++
				continue
			}
			if ctx.Err() != nil {
				sum.Interrupted = true
				return sum.finish(prior, cases), nil
			}

			rec, errMsg, ok := r.runUnit(ctx, c, alg)
			if !ok {
				sum.Interrupted = true
				r.logger.Warn("interrupted, unit not recorded", zap.String("case", id), zap.String("algorithm", alg))
				return sum.finish(prior, cases), nil
			}
			if err := r.results.Append(rec); err != nil {
				return nil, err
			}
			cp.Mark(id, alg, AlgorithmEntry{Status: rec.Status, FinishedAt: time.Now().UTC(), Error: errMsg})
			if err := r.checkpoints.Save(cp); err != nil {
				return nil, err
			}
			sum.Records = append(sum.Records, rec)
		}
	}
	return sum.finish(prior, cases), nil
}

// reconcile adopts result records that the checkpoint does not know about,
// which happens when a crash lands between the two writes of a unit.
func (r *Runner) reconcile(cp *Checkpoint, sum *Summary) ([]Record, error) {
	records, skipped, err := LoadRecords(r.results.Path())
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		r.logger.Warn("skipped unreadable result lines", zap.Int("count", skipped))
	}
	for _, rec := range records {
		id := rec.Case().ID()
		if _, ok := cp.Entry(id, rec.Algorithm); ok {
			continue
		}
		cp.Mark(id, rec.Algorithm, AlgorithmEntry{Status: rec.Status, FinishedAt: time.Now().UTC()})
		sum.Adopted++
	}
	if sum.Adopted > 0 {
		r.logger.Info("adopted results missing from checkpoint", zap.Int("count", sum.Adopted))
		if err := r.checkpoints.Save(cp); err != nil {
			return nil, err
		}
	}
	return records, nil
}

type unitOutcome struct {
	res *generator.Result
	err error
}

// runUnit runs alg on c under its deadline. ok is false when the parent
// context was cancelled, in which case nothing must be recorded.
func (r *Runner) runUnit(ctx context.Context, c Case, alg string) (rec Record, errMsg string, ok bool) {
	logger := r.logger.With(zap.String("case", c.ID()), zap.String("algorithm", alg))
	rec = Record{N: c.N, Tau: c.Tau, K: c.K, Seed: c.Seed, Algorithm: alg}

	gen, err := r.factory(alg, c.Seed)
	if err != nil {
		rec.Status = StatusFailed
		logger.Error("failed to create generator", zap.Error(err))
		return rec, err.Error(), true
	}

	unitCtx, cancel := ctx, context.CancelFunc(func() {})
	if d := r.cfg.TimeoutFor(alg); d > 0 {
		unitCtx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	logger.Info("unit start")
	start := time.Now()
	done := make(chan unitOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- unitOutcome{err: fmt.Errorf("generator panicked: %v", p)}
			}
		}()
		res, err := gen.Generate(unitCtx, c.Params())
		done <- unitOutcome{res: res, err: err}
	}()

	var out unitOutcome
	select {
	case out = <-done:
	case <-unitCtx.Done():
		grace := time.NewTimer(r.cfg.KillGrace)
		select {
		case out = <-done:
		case <-grace.C:
			logger.Warn("unit did not stop within grace period", zap.Duration("grace", r.cfg.KillGrace))
			out = unitOutcome{err: fmt.Errorf("%w: abandoned after grace period", core.ErrGenerationTimeout)}
		}
		grace.Stop()
	}
	rec.ElapsedSeconds = time.Since(start).Seconds()
	if ctx.Err() != nil {
		return Record{}, "", false
	}

	if out.res != nil {
		rec.RowsGenerated = len(out.res.Rows)
	}
	switch {
	case out.err == nil:
		rec.Status, errMsg = r.check(c, out.res, &rec)
	case errors.Is(out.err, core.ErrGenerationTimeout) || unitCtx.Err() != nil:
		rec.Status, errMsg = StatusTimedOut, out.err.Error()
		r.measure(c, out.res, &rec)
	default:
		rec.Status, errMsg = StatusFailed, out.err.Error()
		r.measure(c, out.res, &rec)
	}

	fields := []zap.Field{
		zap.String("status", string(rec.Status)),
		zap.Int("rows", rec.RowsGenerated),
		zap.Float64("seconds", rec.ElapsedSeconds),
		zap.Float64("coverage", rec.CoverageFraction),
	}
	if errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
	}
	logger.Info("unit finished", fields...)

	if rec.Status == StatusCompleted && r.cfg.ArraysDir != "" {
		if err := r.dumpArray(c, alg, out.res.Rows); err != nil {
			logger.Warn("failed to write array", zap.Error(err))
		}
	}
	return rec, errMsg, true
}

// check verifies a finished result. Only a verified full covering array
// counts as completed.
func (r *Runner) check(c Case, res *generator.Result, rec *Record) (Status, string) {
	if res == nil {
		return StatusFailed, "generator returned no result"
	}
	rep, err := verify.Verify(res.Rows, c.Params())
	if err != nil {
		return StatusFailed, err.Error()
	}
	rec.CoverageFraction = rep.CoverageFraction
	if !rep.Valid {
		return StatusFailed, "verification failed: " + rep.Summary()
	}
	return StatusCompleted, ""
}

// measure records the verified coverage of a partial result.
func (r *Runner) measure(c Case, res *generator.Result, rec *Record) {
	if res == nil {
		return
	}
	if rep, err := verify.Verify(res.Rows, c.Params()); err == nil {
		rec.CoverageFraction = rep.CoverageFraction
	}
}

func (r *Runner) dumpArray(c Case, alg string, rows []core.Row) error {
	if err := os.MkdirAll(r.cfg.ArraysDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(r.cfg.ArraysDir, fmt.Sprintf("%s_%s.csv", c.ID(), alg))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := serial.WriteRows(f, c.N, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
