// Command lvca generates k-constrained covering arrays and runs experiments
// comparing the generators.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lvcagen/internal/experiment"
	"lvcagen/internal/util"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	verbose    bool
	configPath string
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "lvca",
		Short: "Generate and compare k-constrained covering arrays",
		Long: `lvca builds binary covering arrays in which every row has exactly k ones,
using adaptive sampling, heuristic greedy search, simulated annealing or the
external ACTS tool, and runs resumable experiments over grids of cases.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := util.NewLogger(g.verbose)
			if err != nil {
				return err
			}
			g.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")

	root.AddCommand(
		newRunCmd(g),
		newGenerateCmd(g),
		newCasesCmd(g),
		newVerifyCmd(g),
	)
	return root
}

// loadConfig returns the defaults overlaid with the --config file, if any.
func (g *globalOptions) loadConfig() (experiment.Config, error) {
	cfg := experiment.DefaultConfig()
	if g.configPath != "" {
		if err := experiment.LoadConfigFile(g.configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
