package experiment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/generator"
)

type fakeGenerator struct {
	name string
	fn   func(ctx context.Context, p core.Params) (*generator.Result, error)
}

func (g fakeGenerator) Name() string { return g.name }

func (g fakeGenerator) Generate(ctx context.Context, p core.Params) (*generator.Result, error) {
	return g.fn(ctx, p)
}

// fakeFactory serves fns by algorithm name and counts calls.
func fakeFactory(calls *atomic.Int32, fns map[string]func(context.Context, core.Params) (*generator.Result, error)) GeneratorFactory {
	return func(name string, seed int64) (generator.Generator, error) {
		fn, ok := fns[name]
		if !ok {
			return nil, errors.New("no fake for " + name)
		}
		return fakeGenerator{name: name, fn: func(ctx context.Context, p core.Params) (*generator.Result, error) {
			calls.Add(1)
			return fn(ctx, p)
		}}, nil
	}
}

// singleRow covers n=3, tau=3, k=0 with its only valid row.
func singleRow(context.Context, core.Params) (*generator.Result, error) {
	return &generator.Result{Rows: []core.Row{core.NewRow(3, nil)}, Coverage: 1, Complete: true}, nil
}

var zeroCase = Case{N: 3, Tau: 3, K: 0, Seed: 42}

type testEnv struct {
	cfg         Config
	results     *ResultStore
	checkpoints *CheckpointStore
}

func newTestEnv(t *testing.T, algorithms ...string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ResultsPath = filepath.Join(dir, "results.csv")
	cfg.CheckpointPath = filepath.Join(dir, "checkpoint.json")
	cfg.Algorithms = algorithms
	cfg.Timeout = 10 * time.Second
	cfg.KillGrace = time.Second
	cfg.Generator.Workers = 1
	cfg.Generator.PoolSize = 64
	cfg.Generator.NeighborSamples = 16
	return &testEnv{cfg: cfg}
}

func (e *testEnv) run(t *testing.T, ctx context.Context, cases []Case, opts ...Option) *Summary {
	t.Helper()
	results, err := OpenResultStore(e.cfg.ResultsPath)
	require.NoError(t, err)
	defer results.Close()
	checkpoints := NewCheckpointStore(e.cfg.CheckpointPath, zap.NewNop())

	r, err := NewRunner(e.cfg, results, checkpoints, zap.NewNop(), opts...)
	require.NoError(t, err)
	sum, err := r.Run(ctx, cases)
	require.NoError(t, err)
	return sum
}

func (e *testEnv) records(t *testing.T) []Record {
	t.Helper()
	recs, skipped, err := LoadRecords(e.cfg.ResultsPath)
	require.NoError(t, err)
	require.Zero(t, skipped)
	return recs
}

func TestRunWithRealGenerators(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmAdaptive, generator.AlgorithmGreedy, generator.AlgorithmAnnealing)
	cases := []Case{
		{N: 10, Tau: 2, K: 3, Seed: 42},
		zeroCase,
	}
	sum := env.run(t, context.Background(), cases)

	require.Len(t, sum.Records, 6)
	for _, rec := range sum.Records {
		assert.Equal(t, StatusCompleted, rec.Status, "%s %s", rec.Case().ID(), rec.Algorithm)
		assert.Equal(t, 1.0, rec.CoverageFraction)
		assert.Positive(t, rec.RowsGenerated)
	}
	assert.Len(t, env.records(t), 6)

	cp, err := NewCheckpointStore(env.cfg.CheckpointPath, nil).Load()
	require.NoError(t, err)
	for _, c := range cases {
		for _, alg := range env.cfg.Algorithms {
			assert.True(t, cp.Done(c.ID(), alg, false), "%s %s", c.ID(), alg)
		}
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmAdaptive, generator.AlgorithmGreedy)
	cases := []Case{{N: 6, Tau: 2, K: 2, Seed: 1}, {N: 5, Tau: 2, K: 1, Seed: 1}}

	env.run(t, context.Background(), cases)
	first := env.records(t)

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){})
	sum := env.run(t, context.Background(), cases, WithGeneratorFactory(factory))

	assert.Zero(t, calls.Load(), "no unit should run again")
	assert.Equal(t, 4, sum.Skipped)
	assert.Len(t, sum.Records, 4)
	if diff := cmp.Diff(first, env.records(t)); diff != "" {
		t.Errorf("result store changed on resume (-first +second):\n%s", diff)
	}
}

func TestResumeAdoptsRecordsMissingFromCheckpoint(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmAdaptive, generator.AlgorithmGreedy)

	// Simulate a crash after the result append but before the checkpoint.
	results, err := OpenResultStore(env.cfg.ResultsPath)
	require.NoError(t, err)
	require.NoError(t, results.Append(Record{
		N: 3, Tau: 3, K: 0, Seed: 42, Algorithm: generator.AlgorithmAdaptive,
		RowsGenerated: 1, ElapsedSeconds: 0.01, Status: StatusCompleted, CoverageFraction: 1,
	}))
	require.NoError(t, results.Close())

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmAdaptive: singleRow,
		generator.AlgorithmGreedy:   singleRow,
	})
	sum := env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(factory))

	assert.Equal(t, 1, sum.Adopted)
	assert.EqualValues(t, 1, calls.Load(), "only the greedy unit should run")
	recs := env.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, generator.AlgorithmAdaptive, recs[0].Algorithm)
	assert.Equal(t, generator.AlgorithmGreedy, recs[1].Algorithm)
}

func TestTimeoutIsEnforced(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t, generator.AlgorithmGreedy, generator.AlgorithmAdaptive)
	env.cfg.AlgoTimeouts = map[string]time.Duration{generator.AlgorithmGreedy: 50 * time.Millisecond}

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmGreedy: func(ctx context.Context, p core.Params) (*generator.Result, error) {
			<-ctx.Done()
			return &generator.Result{}, core.ErrGenerationTimeout
		},
		generator.AlgorithmAdaptive: singleRow,
	})

	start := time.Now()
	sum := env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(factory))
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, sum.Records, 2)
	assert.Equal(t, StatusTimedOut, sum.Records[0].Status)
	assert.GreaterOrEqual(t, sum.Records[0].ElapsedSeconds, 0.05)
	assert.Equal(t, StatusCompleted, sum.Records[1].Status, "later units still run")
}

func TestStuckUnitIsAbandonedAfterGrace(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmGreedy)
	env.cfg.Timeout = 20 * time.Millisecond
	env.cfg.KillGrace = 20 * time.Millisecond

	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmGreedy: func(context.Context, core.Params) (*generator.Result, error) {
			<-release // ignores its context
			return nil, nil
		},
	})

	start := time.Now()
	sum := env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(factory))
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, sum.Records, 1)
	assert.Equal(t, StatusTimedOut, sum.Records[0].Status)
}

func TestNoTimeoutDisablesDeadlines(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmGreedy)
	env.cfg.Timeout = time.Nanosecond
	env.cfg.NoTimeout = true

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmGreedy: func(ctx context.Context, p core.Params) (*generator.Result, error) {
			if _, ok := ctx.Deadline(); ok {
				return nil, errors.New("unexpected deadline")
			}
			return singleRow(ctx, p)
		},
	})
	sum := env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(factory))
	require.Len(t, sum.Records, 1)
	assert.Equal(t, StatusCompleted, sum.Records[0].Status)
}

func TestFaultsAreIsolated(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmAdaptive, generator.AlgorithmGreedy, generator.AlgorithmAnnealing, generator.AlgorithmActs)

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmAdaptive: func(context.Context, core.Params) (*generator.Result, error) {
			panic("index out of range")
		},
		generator.AlgorithmGreedy: func(context.Context, core.Params) (*generator.Result, error) {
			return nil, core.ErrExternalToolUnavailable
		},
		generator.AlgorithmAnnealing: func(context.Context, core.Params) (*generator.Result, error) {
			// Complete claim, but the row has the wrong number of ones.
			return &generator.Result{Rows: []core.Row{core.NewRow(3, []int{0})}, Complete: true, Coverage: 1}, nil
		},
		generator.AlgorithmActs: singleRow,
	})
	sum := env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(factory))

	got := map[string]Status{}
	for _, rec := range sum.Records {
		got[rec.Algorithm] = rec.Status
	}
	assert.Equal(t, map[string]Status{
		generator.AlgorithmAdaptive:  StatusFailed,
		generator.AlgorithmGreedy:    StatusFailed,
		generator.AlgorithmAnnealing: StatusFailed,
		generator.AlgorithmActs:      StatusCompleted,
	}, got)

	cp, err := NewCheckpointStore(env.cfg.CheckpointPath, nil).Load()
	require.NoError(t, err)
	e, ok := cp.Entry(zeroCase.ID(), generator.AlgorithmAdaptive)
	require.True(t, ok)
	assert.Contains(t, e.Error, "panicked")
}

func TestPartialResultIsRecordedAsFailed(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmGreedy)
	c := Case{N: 4, Tau: 2, K: 1, Seed: 42}

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmGreedy: func(context.Context, core.Params) (*generator.Result, error) {
			rows := []core.Row{core.NewRow(4, []int{0}), core.NewRow(4, []int{1})}
			return &generator.Result{Rows: rows}, core.ErrBudgetExhausted
		},
	})
	sum := env.run(t, context.Background(), []Case{c}, WithGeneratorFactory(factory))

	require.Len(t, sum.Records, 1)
	rec := sum.Records[0]
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 2, rec.RowsGenerated)
	assert.Greater(t, rec.CoverageFraction, 0.0)
	assert.Less(t, rec.CoverageFraction, 1.0)
}

func TestRetryFailedRerunsUnfinishedUnits(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmGreedy, generator.AlgorithmAdaptive)

	var calls atomic.Int32
	failing := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmGreedy: func(context.Context, core.Params) (*generator.Result, error) {
			return nil, errors.New("boom")
		},
		generator.AlgorithmAdaptive: singleRow,
	})
	env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(failing))
	require.EqualValues(t, 2, calls.Load())

	// Without retry nothing runs again.
	env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(failing))
	require.EqualValues(t, 2, calls.Load())

	env.cfg.RetryFailed = true
	working := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmGreedy:   singleRow,
		generator.AlgorithmAdaptive: singleRow,
	})
	sum := env.run(t, context.Background(), []Case{zeroCase}, WithGeneratorFactory(working))
	assert.EqualValues(t, 3, calls.Load(), "only the failed unit reruns")

	require.Len(t, sum.Records, 2)
	for _, rec := range sum.Records {
		assert.Equal(t, StatusCompleted, rec.Status, rec.Algorithm)
	}
	assert.Len(t, env.records(t), 3, "the failed record stays in the append-only store")
}

func TestInterruptLeavesUnitUnrecorded(t *testing.T) {
	defer goleak.VerifyNone(t)

	env := newTestEnv(t, generator.AlgorithmAdaptive, generator.AlgorithmGreedy)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	factory := fakeFactory(&calls, map[string]func(context.Context, core.Params) (*generator.Result, error){
		generator.AlgorithmAdaptive: func(uctx context.Context, p core.Params) (*generator.Result, error) {
			cancel()
			<-uctx.Done()
			return &generator.Result{}, core.ErrGenerationTimeout
		},
		generator.AlgorithmGreedy: singleRow,
	})
	sum := env.run(t, ctx, []Case{zeroCase}, WithGeneratorFactory(factory))

	assert.True(t, sum.Interrupted)
	assert.Empty(t, sum.Records)
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, env.records(t))
}

func TestCompletedArraysAreDumped(t *testing.T) {
	env := newTestEnv(t, generator.AlgorithmGreedy)
	env.cfg.ArraysDir = filepath.Join(t.TempDir(), "arrays")
	env.run(t, context.Background(), []Case{{N: 5, Tau: 2, K: 2, Seed: 7}})

	data, err := os.ReadFile(filepath.Join(env.cfg.ArraysDir, "n5_t2_k2_s7_heuristic_greedy.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "p1,p2,p3,p4,p5\n")
}

func TestNewRunnerRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t, "hill_climbing")
	_, err := NewRunner(env.cfg, nil, nil, nil)
	assert.Error(t, err)
}

func TestSummaryKeepsLatestRecordPerUnit(t *testing.T) {
	old := Record{N: 3, Tau: 3, K: 0, Seed: 42, Algorithm: generator.AlgorithmGreedy, Status: StatusFailed}
	other := Record{N: 9, Tau: 2, K: 2, Seed: 42, Algorithm: generator.AlgorithmGreedy, Status: StatusCompleted}
	fresh := old
	fresh.Status = StatusCompleted
	fresh.RowsGenerated = 1

	sum := (&Summary{Records: []Record{fresh}}).finish([]Record{old, other}, []Case{zeroCase})
	if diff := cmp.Diff([]Record{fresh}, sum.Records, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("summary records (-want +got):\n%s", diff)
	}
}
