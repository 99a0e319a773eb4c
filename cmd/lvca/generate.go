package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/generator"
	"lvcagen/internal/serial"
	"lvcagen/internal/verify"
)

type generateOptions struct {
	params    core.Params
	seed      int64
	algorithm string
	print     bool
	out       string
	timeout   time.Duration
	actsJar   string
	java      string
}

func newGenerateCmd(g *globalOptions) *cobra.Command {
	o := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and verify one covering array",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateArray(cmd, g, o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.params.N, "n", 0, "Number of parameters")
	f.IntVar(&o.params.Tau, "tau", 2, "Coverage strength")
	f.IntVar(&o.params.K, "k", 0, "Ones per row")
	f.Int64Var(&o.seed, "seed", core.DefaultSeed, "Random seed")
	f.StringVarP(&o.algorithm, "algorithm", "a", generator.AlgorithmGreedy, "Algorithm to run")
	f.BoolVar(&o.print, "print", false, "Print the array as CSV")
	f.StringVarP(&o.out, "out", "o", "", "Write the array as CSV to this file")
	f.DurationVar(&o.timeout, "timeout", 0, "Stop after this long (0 for no limit)")
	f.StringVar(&o.actsJar, "acts-jar", "", "Path to the ACTS jar")
	f.StringVar(&o.java, "java", "", "Java executable")
	_ = cmd.MarkFlagRequired("n")
	return cmd
}

func generateArray(cmd *cobra.Command, g *globalOptions, o *generateOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	gc := cfg.Generator
	gc.Seed = o.seed
	gc.Verbose = g.verbose
	acts := cfg.Acts
	if o.actsJar != "" {
		acts.JarPath = o.actsJar
	}
	if o.java != "" {
		acts.Java = o.java
	}
	gen, err := generator.New(o.algorithm, generator.Options{Config: gc, Acts: acts, Logger: g.logger})
	if err != nil {
		return err
	}

	ctx := contextOf(cmd)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	res, genErr := gen.Generate(ctx, o.params)
	if genErr != nil && !generator.IsPartial(genErr) {
		return genErr
	}
	elapsed := time.Since(start)

	rep, err := verify.Verify(res.Rows, o.params)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s: %d rows (lower bound %d) in %s\n",
		o.algorithm, o.params, len(res.Rows), core.LowerBound(o.params), elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "verification: %s\n", rep.Summary())
	if o.print {
		if err := serial.WriteRows(w, o.params.N, res.Rows); err != nil {
			return err
		}
	}
	if o.out != "" {
		if err := writeArrayFile(o.out, o.params.N, res.Rows); err != nil {
			return err
		}
		g.logger.Info("array written", zap.String("path", o.out))
	}
	if genErr != nil {
		return genErr
	}
	if !rep.Valid {
		return fmt.Errorf("generated array failed verification")
	}
	return nil
}

func writeArrayFile(path string, n int, rows []core.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := serial.WriteRows(f, n, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
