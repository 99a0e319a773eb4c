package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/experiment"
	"lvcagen/internal/generator"
)

type runOptions struct {
	casesPath      string
	resultsPath    string
	checkpointPath string
	arraysDir      string
	timeoutSecs    int
	algoTimeouts   []string
	noTimeout      bool
	skipAdaptive   bool
	skipGreedy     bool
	skipAnnealing  bool
	skipActs       bool
	seed           int64
	retryFailed    bool
	workers        int
	actsJar        string
	java           string
	actsDir        string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every algorithm over a case file, resuming from the checkpoint",
		Long: `Run executes each selected algorithm on each case of the case file. Each
unit runs under its own timeout. Results are appended to the result CSV and
progress is checkpointed after every unit, so an interrupted run resumes
where it stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.casesPath, "cases", "", "JSON case file (required)")
	f.StringVar(&o.resultsPath, "results", experiment.DefaultResultsPath, "Result CSV file")
	f.StringVar(&o.checkpointPath, "checkpoint", experiment.DefaultCheckpointPath, "Checkpoint JSON file")
	f.StringVar(&o.arraysDir, "arrays-dir", "", "Directory to write completed arrays to")
	f.IntVar(&o.timeoutSecs, "timeout", int(experiment.DefaultTimeout.Seconds()), "Per-unit timeout in seconds")
	f.StringSliceVar(&o.algoTimeouts, "algo-timeout", nil, "Per-algorithm timeout as algorithm=seconds (repeatable)")
	f.BoolVar(&o.noTimeout, "no-timeout", false, "Disable all timeouts")
	f.BoolVar(&o.skipAdaptive, "skip-adaptive", false, "Skip adaptive sampling")
	f.BoolVar(&o.skipGreedy, "skip-greedy", false, "Skip heuristic greedy")
	f.BoolVar(&o.skipAnnealing, "skip-annealing", false, "Skip simulated annealing")
	f.BoolVar(&o.skipActs, "skip-acts", false, "Skip ACTS")
	f.Int64Var(&o.seed, "seed", core.DefaultSeed, "Seed for cases that do not set one")
	f.BoolVar(&o.retryFailed, "retry-failed", false, "Re-run units that failed or timed out")
	f.IntVar(&o.workers, "workers", 0, "Goroutines for greedy pool scoring (0 keeps the config value)")
	f.StringVar(&o.actsJar, "acts-jar", generator.DefaultActsJar, "Path to the ACTS jar")
	f.StringVar(&o.java, "java", generator.DefaultJava, "Java executable")
	f.StringVar(&o.actsDir, "acts-dir", "", "Keep ACTS input and output files in this directory")
	_ = cmd.MarkFlagRequired("cases")
	return cmd
}

// buildRunConfig layers explicitly set flags over the config file.
func buildRunConfig(cmd *cobra.Command, g *globalOptions, o *runOptions) (experiment.Config, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("results") {
		cfg.ResultsPath = o.resultsPath
	}
	if f.Changed("checkpoint") {
		cfg.CheckpointPath = o.checkpointPath
	}
	if f.Changed("arrays-dir") {
		cfg.ArraysDir = o.arraysDir
	}
	if f.Changed("timeout") {
		if o.timeoutSecs < 0 {
			return cfg, fmt.Errorf("--timeout must be non-negative")
		}
		cfg.Timeout = time.Duration(o.timeoutSecs) * time.Second
	}
	overrides, err := parseAlgoTimeouts(o.algoTimeouts)
	if err != nil {
		return cfg, err
	}
	if cfg.AlgoTimeouts == nil {
		cfg.AlgoTimeouts = make(map[string]time.Duration)
	}
	for alg, d := range overrides {
		cfg.AlgoTimeouts[alg] = d
	}
	if o.noTimeout {
		cfg.NoTimeout = true
	}
	if o.retryFailed {
		cfg.RetryFailed = true
	}
	if f.Changed("seed") {
		cfg.DefaultSeed = o.seed
	}
	if o.workers > 0 {
		cfg.Generator.Workers = o.workers
	}
	if f.Changed("acts-jar") {
		cfg.Acts.JarPath = o.actsJar
	}
	if f.Changed("java") {
		cfg.Acts.Java = o.java
	}
	if f.Changed("acts-dir") {
		cfg.Acts.WorkDir = o.actsDir
	}
	cfg.Generator.Verbose = g.verbose

	skips := map[string]bool{
		generator.AlgorithmAdaptive:  o.skipAdaptive,
		generator.AlgorithmGreedy:    o.skipGreedy,
		generator.AlgorithmAnnealing: o.skipAnnealing,
		generator.AlgorithmActs:      o.skipActs,
	}
	for alg, skip := range skips {
		if skip {
			cfg.Skip(alg)
		}
	}
	return cfg, cfg.Validate()
}

// parseAlgoTimeouts parses algorithm=seconds pairs.
func parseAlgoTimeouts(entries []string) (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(entries))
	for _, entry := range entries {
		alg, secs, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --algo-timeout %q, want algorithm=seconds", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(secs))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid --algo-timeout %q: seconds must be a non-negative integer", entry)
		}
		out[strings.TrimSpace(alg)] = time.Duration(n) * time.Second
	}
	return out, nil
}

func runExperiment(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	cfg, err := buildRunConfig(cmd, g, o)
	if err != nil {
		return err
	}
	cases, err := experiment.LoadCases(o.casesPath, cfg.DefaultSeed)
	if err != nil {
		return err
	}

	results, err := experiment.OpenResultStore(cfg.ResultsPath)
	if err != nil {
		return err
	}
	defer results.Close()
	checkpoints := experiment.NewCheckpointStore(cfg.CheckpointPath, g.logger)

	runner, err := experiment.NewRunner(cfg, results, checkpoints, g.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g.logger.Info("experiment start",
		zap.Int("cases", len(cases)),
		zap.Strings("algorithms", cfg.Algorithms),
		zap.String("results", cfg.ResultsPath),
		zap.String("checkpoint", cfg.CheckpointPath))
	sum, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}
	if sum.Interrupted {
		g.logger.Warn("experiment interrupted; rerun the same command to resume")
	}
	return sum.Render(cmd.OutOrStdout())
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
