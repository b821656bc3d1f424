// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package model implements the SDSD model configuration: the state
// space's rate matrix plus the per-state birth, death, and burst
// furcation parameters, read from a YAML document and validated before
// use by sdsdsim.
package model

import (
	"fmt"
	"io"
	"slices"

	"github.com/phyletica/SDSDsim/ctmc"
	"gopkg.in/yaml.v3"
)

// ConfigError reports a configuration validation failure: an invalid
// rate matrix, a mismatched vector length, or an out-of-range
// parameter. Callers may test for it with errors.As.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return "model: " + e.msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// Config is the YAML-facing shape of a model configuration: required
// keys exactly as named in the configuration file, per spec.md §6.
// Callers that embed a model section inside a larger document (such as
// the sim_SDSD_trees command) can decode straight into a Config field
// and hand it to New.
type Config struct {
	Q                           [][]float64 `yaml:"q"`
	BirthRates                  []float64   `yaml:"birth_rates"`
	DeathRates                  []float64   `yaml:"death_rates"`
	BurstRate                   float64     `yaml:"burst_rate"`
	BurstProbs                  []float64   `yaml:"burst_probs"`
	BurstFurcationPoissonMeans  []float64   `yaml:"burst_furcation_poisson_means"`
	BurstFurcationPoissonShifts []int       `yaml:"burst_furcation_poisson_shifts"`
	OnlyBifurcate               bool        `yaml:"only_bifurcate"`
}

// Model is a validated SDSD model configuration.
type Model struct {
	CTMC *ctmc.CTMC

	BirthRates                  []float64
	DeathRates                  []float64
	BurstRate                   float64
	BurstProbs                  []float64
	BurstFurcationPoissonMeans  []float64
	BurstFurcationPoissonShifts []int
	OnlyBifurcate               bool
}

// NStates returns the size of the model's state space.
func (m *Model) NStates() int {
	return m.CTMC.NStates()
}

// requiredKeys are the exact keys a model section must carry; any
// missing or extra key is a fatal configuration error.
var requiredKeys = []string{
	"q", "birth_rates", "death_rates", "burst_rate", "burst_probs",
	"burst_furcation_poisson_means", "burst_furcation_poisson_shifts",
	"only_bifurcate",
}

// Load reads and validates a model configuration from r.
func Load(r io.Reader) (*Model, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		return nil, configErrorf("decoding model: %v", err)
	}
	return LoadNode(&node)
}

// LoadNode validates and builds a Model from an already-parsed YAML
// node, for callers (such as the sim_SDSD_trees command) that decode a
// model section embedded in a larger document.
func LoadNode(node *yaml.Node) (*Model, error) {
	if err := checkExactKeys(node, requiredKeys); err != nil {
		return nil, err
	}

	var cfg Config
	if err := node.Decode(&cfg); err != nil {
		return nil, configErrorf("decoding model: %v", err)
	}
	return New(cfg)
}

// checkExactKeys reports an error if node (a YAML mapping) carries any
// key outside want, or is missing any key in want.
func checkExactKeys(node *yaml.Node, want []string) error {
	doc := node
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return configErrorf("model section is empty")
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return configErrorf("model section must be a mapping")
	}

	seen := make(map[string]bool, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		seen[key] = true
		if !slices.Contains(want, key) {
			return configErrorf("unknown model key %q", key)
		}
	}
	for _, k := range want {
		if !seen[k] {
			return configErrorf("missing required model key %q", k)
		}
	}
	return nil
}

// New builds and validates a Model from an already-decoded Config.
func New(cfg Config) (*Model, error) {
	q, err := ctmc.New(cfg.Q, ctmc.DefaultTolerance)
	if err != nil {
		return nil, configErrorf("%v", err)
	}

	m := &Model{
		CTMC:                        q,
		BirthRates:                  cfg.BirthRates,
		DeathRates:                  cfg.DeathRates,
		BurstRate:                   cfg.BurstRate,
		BurstProbs:                  cfg.BurstProbs,
		BurstFurcationPoissonMeans:  cfg.BurstFurcationPoissonMeans,
		BurstFurcationPoissonShifts: cfg.BurstFurcationPoissonShifts,
		OnlyBifurcate:               cfg.OnlyBifurcate,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks every vector is sized to the state space and every
// rate/probability is within its valid range.
func (m *Model) Validate() error {
	n := m.NStates()

	if len(m.BirthRates) != n {
		return configErrorf("birth_rates has length %d, want %d", len(m.BirthRates), n)
	}
	if len(m.DeathRates) != n {
		return configErrorf("death_rates has length %d, want %d", len(m.DeathRates), n)
	}
	if len(m.BurstProbs) != n {
		return configErrorf("burst_probs has length %d, want %d", len(m.BurstProbs), n)
	}
	if len(m.BurstFurcationPoissonMeans) != n {
		return configErrorf("burst_furcation_poisson_means has length %d, want %d", len(m.BurstFurcationPoissonMeans), n)
	}
	if len(m.BurstFurcationPoissonShifts) != n {
		return configErrorf("burst_furcation_poisson_shifts has length %d, want %d", len(m.BurstFurcationPoissonShifts), n)
	}

	if m.BurstRate < 0 {
		return configErrorf("burst_rate must be non-negative, got %g", m.BurstRate)
	}
	for i, v := range m.BirthRates {
		if v < 0 {
			return configErrorf("birth_rates[%d] = %g is negative", i, v)
		}
	}
	for i, v := range m.DeathRates {
		if v < 0 {
			return configErrorf("death_rates[%d] = %g is negative", i, v)
		}
	}
	for i, v := range m.BurstProbs {
		if v < 0 || v > 1 {
			return configErrorf("burst_probs[%d] = %g is not a probability", i, v)
		}
	}
	for i, v := range m.BurstFurcationPoissonMeans {
		if m.BurstRate > 0 && !m.OnlyBifurcate && v <= 0 {
			return configErrorf("burst_furcation_poisson_means[%d] = %g must be positive", i, v)
		}
	}
	for i, v := range m.BurstFurcationPoissonShifts {
		if v < 0 {
			return configErrorf("burst_furcation_poisson_shifts[%d] = %d is negative", i, v)
		}
	}
	return nil
}
