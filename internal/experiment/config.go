package experiment

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"lvcagen/internal/core"
	"lvcagen/internal/generator"
)

// Defaults for an experiment run.
const (
	DefaultResultsPath    = "results.csv"
	DefaultCheckpointPath = "checkpoint.json"
	DefaultTimeout        = time.Hour
	DefaultKillGrace      = 5 * time.Second
)

// Config holds everything a Runner needs besides its stores.
type Config struct {
	ResultsPath    string `yaml:"results"`
	CheckpointPath string `yaml:"checkpoint"`
	ArraysDir      string `yaml:"arrays_dir"` // Completed arrays are dumped here when set

	Algorithms   []string                 `yaml:"algorithms"`
	Timeout      time.Duration            `yaml:"timeout"`
	AlgoTimeouts map[string]time.Duration `yaml:"algorithm_timeouts"`
	NoTimeout    bool                     `yaml:"no_timeout"`
	KillGrace    time.Duration            `yaml:"kill_grace"`

	DefaultSeed int64 `yaml:"default_seed"`
	RetryFailed bool  `yaml:"retry_failed"`

	Generator core.GenConfig       `yaml:"generator"`
	Acts      generator.ActsConfig `yaml:"acts"`
}

// DefaultConfig returns a configuration that runs every algorithm with a
// one hour timeout.
func DefaultConfig() Config {
	return Config{
		ResultsPath:    DefaultResultsPath,
		CheckpointPath: DefaultCheckpointPath,
		Algorithms:     generator.Algorithms(),
		Timeout:        DefaultTimeout,
		AlgoTimeouts:   map[string]time.Duration{},
		KillGrace:      DefaultKillGrace,
		DefaultSeed:    core.DefaultSeed,
		Generator:      core.DefaultGenConfig(),
		Acts:           generator.DefaultActsConfig(),
	}
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations a Runner cannot start with.
func (c Config) Validate() error {
	if c.ResultsPath == "" || c.CheckpointPath == "" {
		return fmt.Errorf("results and checkpoint paths are required")
	}
	if len(c.Algorithms) == 0 {
		return fmt.Errorf("no algorithms selected")
	}
	known := generator.Algorithms()
	for _, alg := range c.Algorithms {
		if !slices.Contains(known, alg) {
			return fmt.Errorf("unknown algorithm %q", alg)
		}
	}
	if c.Timeout < 0 || c.KillGrace < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	for alg, d := range c.AlgoTimeouts {
		if !slices.Contains(known, alg) {
			return fmt.Errorf("timeout given for unknown algorithm %q", alg)
		}
		if d < 0 {
			return fmt.Errorf("timeout for %s must be non-negative", alg)
		}
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	return nil
}

// Skip removes alg from the algorithms to run.
func (c *Config) Skip(alg string) {
	c.Algorithms = slices.DeleteFunc(slices.Clone(c.Algorithms), func(a string) bool { return a == alg })
}

// TimeoutFor returns the deadline for one unit of alg, or 0 for none.
func (c Config) TimeoutFor(alg string) time.Duration {
	if c.NoTimeout {
		return 0
	}
	if d, ok := c.AlgoTimeouts[alg]; ok {
		return d
	}
	return c.Timeout
}
