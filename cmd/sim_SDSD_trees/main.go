// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Command sim_SDSD_trees simulates phylogenetic trees under a
// state-dependent speciation and diversification model with tree-wide
// burst events, reading its model and run settings from a single YAML
// configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/js-arias/command"
	"github.com/phyletica/SDSDsim/model"
	"github.com/phyletica/SDSDsim/numeric"
	"github.com/phyletica/SDSDsim/sdsdsim"
	"github.com/phyletica/SDSDsim/tree"
	"gopkg.in/yaml.v3"
)

// version identifies the output format produced by this command.
const version = "0.1.0"

var app = &command.Command{
	Usage: `sim_SDSD_trees [-n|--number-of-samples <number>]
	[-s|--seed <value>] <config_path>`,
	Short: "simulate phylogenetic trees under a state-dependent model",
	Long: `
Command sim_SDSD_trees reads a state-dependent speciation and diversification
model, plus the run settings, from a YAML configuration file, and simulates
one or more replicate trees under a forward-time Gillespie process.

The argument is the path to the configuration file. The file must define a
'model' section (the rate matrix and the per-state birth, death, and burst
parameters) and a 'settings' section (the stopping conditions and the
post-simulation policies). Any missing or unrecognized key in the model
section is a fatal configuration error. In the settings section, an absent
policy flag defaults to false, an absent stopping condition is unset, and
unrecognized keys are ignored.

By default, 10 replicates are simulated. Use the flag --number-of-samples, or
-n, to simulate a different number.

By default, a random seed is drawn for the run and reported in the output. Use
the flag --seed, or -s, to fix the seed of a run, for a reproducible replicate
set.

The result is written to standard output, as a YAML document with the
simulator version, the seed used, the model and settings that were applied,
and the list of simulated trees, each given in parenthetical (SimMap) form
together with the times of every burst event it experienced.
	`,
	SetFlags: setFlags,
	Run:      run,
}

func main() {
	app.Main()
}

var numSamples int
var seedFlag int64

func setFlags(c *command.Command) {
	c.Flags().IntVar(&numSamples, "number-of-samples", 10, "")
	c.Flags().IntVar(&numSamples, "n", 10, "")
	c.Flags().Int64Var(&seedFlag, "seed", 0, "")
	c.Flags().Int64Var(&seedFlag, "s", 0, "")
}

// stoppingConfig is the YAML-facing shape of
// settings.stopping_conditions. Every field is a pointer so that
// "absent" and "zero" are distinguishable.
type stoppingConfig struct {
	MaxExtantLeaves  *int     `yaml:"max_extant_leaves"`
	MaxExtinctLeaves *int     `yaml:"max_extinct_leaves"`
	MaxTotalLeaves   *int     `yaml:"max_total_leaves"`
	MaxTime          *float64 `yaml:"max_time"`
}

// settingsConfig is the YAML-facing shape of the settings section.
type settingsConfig struct {
	StoppingConditions stoppingConfig `yaml:"stopping_conditions"`
	KeepExtinctTrees   bool           `yaml:"keep_extinct_trees"`
	PruneExtinctLeaves bool           `yaml:"prune_extinct_leaves"`
	MaxLeavesStrict    bool           `yaml:"max_leaves_strict"`
}

// configDoc is the top-level shape of the configuration file: a model
// section, decoded independently by the model package so it can apply
// its own exact-key validation, and a settings section.
type configDoc struct {
	Model    yaml.Node      `yaml:"model"`
	Settings settingsConfig `yaml:"settings"`
}

func (sc stoppingConfig) toSim() sdsdsim.StoppingConditions {
	return sdsdsim.StoppingConditions{
		MaxExtantLeaves:  sc.MaxExtantLeaves,
		MaxExtinctLeaves: sc.MaxExtinctLeaves,
		MaxTotalLeaves:   sc.MaxTotalLeaves,
		MaxTime:          sc.MaxTime,
	}
}

// treeOutput is one simulated replicate, in the output document.
type treeOutput struct {
	Tree       string    `yaml:"tree"`
	BurstTimes []float64 `yaml:"burst_times"`
}

// output is the full result document written to standard output.
type output struct {
	Version  string       `yaml:"SDSDsim_version"`
	Seed     int64        `yaml:"seed"`
	Model    yaml.Node    `yaml:"model"`
	Settings yaml.Node    `yaml:"settings"`
	Trees    []treeOutput `yaml:"trees"`
}

func run(c *command.Command, args []string) error {
	if len(args) < 1 {
		return c.UsageError("expecting path to the configuration file")
	}
	if numSamples <= 0 {
		return c.UsageError(fmt.Sprintf("number of samples must be positive, got %d", numSamples))
	}
	cfgPath := args[0]

	f, err := os.Open(cfgPath)
	if err != nil {
		return fmt.Errorf("sim_SDSD_trees: %v", err)
	}
	defer f.Close()

	var raw yaml.Node
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		return fmt.Errorf("sim_SDSD_trees: reading %q: %v", cfgPath, err)
	}

	var doc configDoc
	if err := raw.Decode(&doc); err != nil {
		return fmt.Errorf("sim_SDSD_trees: decoding %q: %v", cfgPath, err)
	}

	m, err := model.LoadNode(&doc.Model)
	if err != nil {
		return fmt.Errorf("sim_SDSD_trees: %v", err)
	}

	sc := doc.Settings.StoppingConditions.toSim()
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("sim_SDSD_trees: %v", err)
	}

	seed := seedFlag
	var rng numeric.Rng
	if seed > 0 {
		rng = numeric.NewRng(uint64(seed))
	} else {
		seed, rng = numeric.DefaultRng()
	}

	trees := make([]treeOutput, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		res, err := sdsdsim.Run(m, sc, rng)
		if err != nil {
			return fmt.Errorf("sim_SDSD_trees: replicate %d: %v", i, err)
		}

		if !res.Survived && !doc.Settings.KeepExtinctTrees {
			continue
		}
		if doc.Settings.MaxLeavesStrict && overshoots(sc, res.Tree) {
			continue
		}

		rt := res.Tree
		if doc.Settings.PruneExtinctLeaves {
			pruned, ok := rt.PruneExtinctLeaves()
			if !ok {
				continue
			}
			rt = pruned
		}

		trees = append(trees, treeOutput{
			Tree:       rt.Newick(tree.NewickOpts{SimMap: true}),
			BurstTimes: res.BurstTimes,
		})
	}

	out := output{
		Version:  version,
		Seed:     seed,
		Model:    doc.Model,
		Settings: toNode(doc.Settings),
		Trees:    trees,
	}
	enc := yaml.NewEncoder(c.Stdout())
	defer enc.Close()
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("sim_SDSD_trees: writing output: %v", err)
	}
	return nil
}

// overshoots reports whether t's leaf counts exceed any threshold in
// sc, which a burst event can cause even though bursts are only
// checked against thresholds between iterations.
func overshoots(sc sdsdsim.StoppingConditions, t *tree.Tree) bool {
	root := t.Root()
	extant := root.NumberOfExtantLeaves()
	total := root.NumberOfLeaves()
	extinct := total - extant

	if sc.MaxExtantLeaves != nil && extant > *sc.MaxExtantLeaves {
		return true
	}
	if sc.MaxExtinctLeaves != nil && extinct > *sc.MaxExtinctLeaves {
		return true
	}
	if sc.MaxTotalLeaves != nil && total > *sc.MaxTotalLeaves {
		return true
	}
	return false
}

// toNode re-encodes v as a yaml.Node, so the settings section can be
// echoed back in the output document exactly as a nested value.
func toNode(v any) yaml.Node {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		panic(fmt.Sprintf("sim_SDSD_trees: encoding settings: %v", err))
	}
	return n
}
