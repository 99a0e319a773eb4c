// Package experiment runs every requested generator over a grid of cases,
// with per-unit timeouts, crash-safe checkpointing and an append-only
// result store.
package experiment

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"lvcagen/internal/core"
)

// Case is one (n, tau, k) instance together with the seed every algorithm
// receives for it.
type Case struct {
	N    int   `json:"n"`
	Tau  int   `json:"tau"`
	K    int   `json:"k"`
	Seed int64 `json:"seed"`
}

// Params returns the covering problem of the case.
func (c Case) Params() core.Params {
	return core.Params{N: c.N, Tau: c.Tau, K: c.K}
}

// ID identifies the case in checkpoints and array dumps.
func (c Case) ID() string {
	return fmt.Sprintf("n%d_t%d_k%d_s%d", c.N, c.Tau, c.K, c.Seed)
}

type caseFileEntry struct {
	N    int    `json:"n"`
	Tau  int    `json:"tau"`
	K    int    `json:"k"`
	Seed *int64 `json:"seed,omitempty"`
}

// LoadCases reads a JSON array of {n, tau, k[, seed]} objects. Entries
// without a seed get defaultSeed. Every case is validated.
func LoadCases(path string, defaultSeed int64) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	var entries []caseFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse case file %s: %w", path, err)
	}
	cases := make([]Case, 0, len(entries))
	for i, e := range entries {
		c := Case{N: e.N, Tau: e.Tau, K: e.K, Seed: defaultSeed}
		if e.Seed != nil {
			c.Seed = *e.Seed
		}
		if err := c.Params().Validate(); err != nil {
			return nil, fmt.Errorf("case %d in %s: %w", i, path, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// WriteCases writes cases as an indented JSON array.
func WriteCases(path string, cases []Case) error {
	data, err := json.MarshalIndent(cases, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// GridConfig controls random case generation.
type GridConfig struct {
	Count  int   `yaml:"count"`
	TauMin int   `yaml:"tau_min"`
	TauMax int   `yaml:"tau_max"`
	NMax   int   `yaml:"n_max"`
	Seed   int64 `yaml:"seed"` // Seed written into every generated case
}

// DefaultGridConfig returns ten cases with tau in [2,4] and n up to 10.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Count:  10,
		TauMin: 2,
		TauMax: 4,
		NMax:   10,
		Seed:   core.DefaultSeed,
	}
}

// GenerateCases draws cfg.Count cases with tau in [TauMin,TauMax],
// n in [2*tau,NMax] and k in [tau,n-tau].
func GenerateCases(cfg GridConfig, rng *rand.Rand) ([]Case, error) {
	switch {
	case cfg.Count < 0:
		return nil, fmt.Errorf("count must be >= 0, got %d", cfg.Count)
	case cfg.TauMin < 1 || cfg.TauMax < cfg.TauMin:
		return nil, fmt.Errorf("invalid tau range [%d,%d]", cfg.TauMin, cfg.TauMax)
	case cfg.NMax < 2*cfg.TauMax:
		return nil, fmt.Errorf("n_max %d is below 2*tau_max=%d", cfg.NMax, 2*cfg.TauMax)
	}
	cases := make([]Case, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		tau := cfg.TauMin + rng.Intn(cfg.TauMax-cfg.TauMin+1)
		n := 2*tau + rng.Intn(cfg.NMax-2*tau+1)
		k := tau + rng.Intn(n-2*tau+1)
		cases = append(cases, Case{N: n, Tau: tau, K: k, Seed: cfg.Seed})
	}
	return cases, nil
}
