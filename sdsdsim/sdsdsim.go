// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package sdsdsim implements the forward-time Gillespie simulation
// loop: per-lineage birth, death, and state-transition clocks racing
// against one tree-wide burst clock, under a family of composite
// stopping conditions and a final-extension policy that freezes
// diversification once a threshold has been met exactly.
package sdsdsim

import (
	"fmt"

	"github.com/phyletica/SDSDsim/model"
	"github.com/phyletica/SDSDsim/numeric"
	"github.com/phyletica/SDSDsim/tree"
)

// StoppingConditions is the set of thresholds that can terminate a
// replicate. At least one field must be non-nil; every non-nil value
// must be strictly positive.
type StoppingConditions struct {
	MaxExtantLeaves  *int
	MaxExtinctLeaves *int
	MaxTotalLeaves   *int
	MaxTime          *float64
}

// Validate checks that at least one threshold is set and every set
// threshold is strictly positive.
func (sc StoppingConditions) Validate() error {
	if sc.MaxExtantLeaves == nil && sc.MaxExtinctLeaves == nil && sc.MaxTotalLeaves == nil && sc.MaxTime == nil {
		return fmt.Errorf("sdsdsim: at least one stopping condition must be set")
	}
	if sc.MaxExtantLeaves != nil && *sc.MaxExtantLeaves <= 0 {
		return fmt.Errorf("sdsdsim: max_extant_leaves must be positive, got %d", *sc.MaxExtantLeaves)
	}
	if sc.MaxExtinctLeaves != nil && *sc.MaxExtinctLeaves <= 0 {
		return fmt.Errorf("sdsdsim: max_extinct_leaves must be positive, got %d", *sc.MaxExtinctLeaves)
	}
	if sc.MaxTotalLeaves != nil && *sc.MaxTotalLeaves <= 0 {
		return fmt.Errorf("sdsdsim: max_total_leaves must be positive, got %d", *sc.MaxTotalLeaves)
	}
	if sc.MaxTime != nil && *sc.MaxTime <= 0 {
		return fmt.Errorf("sdsdsim: max_time must be positive, got %g", *sc.MaxTime)
	}
	return nil
}

// Result is the outcome of one replicate.
type Result struct {
	Survived   bool
	Tree       *tree.Tree
	BurstTimes []float64
}

// Run simulates a single replicate of m under sc, using rng as the
// sole source of randomness. RNG draws are consumed in a fixed,
// deterministic order (rate-vector construction order, lineage order
// in the live list, weighted-index scans, burst loop order), so a
// fixed seed and fixed configuration reproduce a byte-identical
// result.
func Run(m *model.Model, sc StoppingConditions, rng numeric.Rng) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	rootState, err := m.CTMC.DrawRandomState(rng)
	if err != nil {
		return nil, fmt.Errorf("sdsdsim: drawing root state: %w", err)
	}
	t := tree.New(rootState)

	live := []tree.Node{t.Root()}
	dead := []tree.Node{}
	var burstTimes []float64
	clock := 0.0

	for {
		finalExtension := stoppingThresholdMetExactly(sc, len(live), len(dead))

		totals := make([]float64, 0, len(live)+1)
		origIdx := make([]int, 0, len(live)+1)
		for i, l := range live {
			s := l.LeafwardState()
			total := m.BirthRates[s] + m.DeathRates[s] + m.CTMC.GetRateFrom(s)
			if total > 0 {
				totals = append(totals, total)
				origIdx = append(origIdx, i)
			}
		}
		burstSlot := len(live)
		if m.BurstRate > 0 {
			totals = append(totals, m.BurstRate)
			origIdx = append(origIdx, burstSlot)
		}
		if len(totals) == 0 {
			return nil, fmt.Errorf("sdsdsim: no lineage or burst has a positive event rate; simulation would never terminate")
		}

		dt, kStar, err := minExponential(totals, origIdx, rng)
		if err != nil {
			return nil, err
		}

		if sc.MaxTime != nil && clock+dt > *sc.MaxTime {
			clock = *sc.MaxTime
			if err := finalizeTree(t, clock); err != nil {
				return nil, err
			}
			return &Result{Survived: true, Tree: t, BurstTimes: burstTimes}, nil
		}
		clock += dt

		if kStar == burstSlot {
			if finalExtension {
				if err := finalizeTree(t, clock); err != nil {
					return nil, err
				}
				return &Result{Survived: true, Tree: t, BurstTimes: burstTimes}, nil
			}
			burstTimes = append(burstTimes, clock)
			live, err = processBurst(t, m, live, clock, rng)
			if err != nil {
				return nil, err
			}
			continue
		}

		l := live[kStar]
		s := l.LeafwardState()
		eventIdx, err := numeric.GetWeightedIndex([]float64{m.BirthRates[s], m.DeathRates[s], m.CTMC.GetRateFrom(s)}, rng)
		if err != nil {
			return nil, fmt.Errorf("sdsdsim: sampling event type: %w", err)
		}

		if (eventIdx == 0 || eventIdx == 1) && finalExtension {
			if err := finalizeTree(t, clock); err != nil {
				return nil, err
			}
			return &Result{Survived: true, Tree: t, BurstTimes: burstTimes}, nil
		}

		switch eventIdx {
		case 0: // birth
			if err := t.SetTime(l, clock); err != nil {
				return nil, fmt.Errorf("sdsdsim: birth event: %w", err)
			}
			live = removeAt(live, kStar)
			c1 := t.AddChild(l, s)
			c2 := t.AddChild(l, s)
			live = append(live, c1, c2)

		case 1: // death
			if err := t.SetTime(l, clock); err != nil {
				return nil, fmt.Errorf("sdsdsim: death event: %w", err)
			}
			t.SetExtinct(l)
			live = removeAt(live, kStar)
			dead = append(dead, l)
			if len(live) == 0 {
				if err := finalizeTree(t, clock); err != nil {
					return nil, err
				}
				return &Result{Survived: false, Tree: t, BurstTimes: burstTimes}, nil
			}

		case 2: // state transition
			sNext, err := m.CTMC.DrawTransition(s, rng)
			if err != nil {
				return nil, fmt.Errorf("sdsdsim: state transition: %w", err)
			}
			if err := t.RecordStateChange(l, s, sNext, clock); err != nil {
				return nil, fmt.Errorf("sdsdsim: recording state change: %w", err)
			}
		}
	}
}

// stoppingThresholdMetExactly reports whether any max-leaves threshold
// is met exactly by the current extant/extinct counts.
func stoppingThresholdMetExactly(sc StoppingConditions, numExtant, numExtinct int) bool {
	if sc.MaxExtantLeaves != nil && numExtant == *sc.MaxExtantLeaves {
		return true
	}
	if sc.MaxExtinctLeaves != nil && numExtinct == *sc.MaxExtinctLeaves {
		return true
	}
	if sc.MaxTotalLeaves != nil && numExtant+numExtinct == *sc.MaxTotalLeaves {
		return true
	}
	return false
}

// minExponential draws one Exp(totals[i]) wait for every entry, in
// order, and returns the minimum wait together with its index in the
// original (pre-filter) index space given by origIdx.
func minExponential(totals []float64, origIdx []int, rng numeric.Rng) (float64, int, error) {
	best := -1.0
	bestOrig := -1
	for i, total := range totals {
		w, err := numeric.Exponential(total, rng)
		if err != nil {
			return 0, 0, fmt.Errorf("sdsdsim: drawing wait time: %w", err)
		}
		if bestOrig == -1 || w < best {
			best = w
			bestOrig = origIdx[i]
		}
	}
	return best, bestOrig, nil
}

// removeAt removes the element at index i from live, preserving the
// relative order of the remaining lineages.
func removeAt(live []tree.Node, i int) []tree.Node {
	out := make([]tree.Node, 0, len(live)-1)
	out = append(out, live[:i]...)
	out = append(out, live[i+1:]...)
	return out
}

// processBurst applies a burst event to the current snapshot of live
// lineages: each independently diverges with probability
// burst_probs[s], producing a shifted-Poisson (or, under
// OnlyBifurcate, exactly 2) number of children. Lineages created by
// this burst are not themselves considered for divergence.
func processBurst(t *tree.Tree, m *model.Model, live []tree.Node, clock float64, rng numeric.Rng) ([]tree.Node, error) {
	snapshot := append([]tree.Node(nil), live...)

	survivors := make([]tree.Node, 0, len(snapshot))
	var newChildren []tree.Node

	for _, l := range snapshot {
		s := l.LeafwardState()
		u := rng.Float64()
		if u > m.BurstProbs[s] {
			survivors = append(survivors, l)
			continue
		}

		var c int64
		if m.OnlyBifurcate {
			c = 2
		} else {
			draw, err := numeric.PoissonRV(m.BurstFurcationPoissonMeans[s], rng)
			if err != nil {
				return nil, fmt.Errorf("sdsdsim: burst furcation count: %w", err)
			}
			c = draw + int64(m.BurstFurcationPoissonShifts[s])
		}

		if c == 0 {
			panic("sdsdsim: burst furcation count is zero, which must be unreachable by construction")
		}
		if c <= 1 {
			survivors = append(survivors, l)
			continue
		}

		if err := t.SetTime(l, clock); err != nil {
			return nil, fmt.Errorf("sdsdsim: burst event: %w", err)
		}
		t.SetBurstNode(l)
		for i := int64(0); i < c; i++ {
			newChildren = append(newChildren, t.AddChild(l, s))
		}
	}

	return append(survivors, newChildren...), nil
}

// finalizeTree sets the terminal time of every still-live leaf (a node
// with no time set) to clock. Height, which is derived from
// root.MaxTime() minus a node's own time, then automatically satisfies
// clock - time for every node once every leaf time is fixed.
func finalizeTree(t *tree.Tree, clock float64) error {
	for n := range t.Root().PreOrder() {
		if _, ok := n.Time(); ok {
			continue
		}
		if err := t.SetTime(n, clock); err != nil {
			return fmt.Errorf("sdsdsim: finalizing leaf time: %w", err)
		}
	}
	return nil
}
