// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package sdsdsim

import (
	"math"
	"testing"

	"github.com/phyletica/SDSDsim/ctmc"
	"github.com/phyletica/SDSDsim/model"
	"github.com/phyletica/SDSDsim/numeric"
	"github.com/phyletica/SDSDsim/tree"
)

func yuleModel(t *testing.T) *model.Model {
	t.Helper()
	q, err := ctmc.New([][]float64{{-1, 1}, {1, -1}}, ctmc.DefaultTolerance)
	if err != nil {
		t.Fatalf("ctmc.New: %v", err)
	}
	return &model.Model{
		CTMC:                        q,
		BirthRates:                  []float64{1, 1},
		DeathRates:                  []float64{0, 0},
		BurstRate:                   0,
		BurstProbs:                  []float64{0, 0},
		BurstFurcationPoissonMeans:  []float64{1, 1},
		BurstFurcationPoissonShifts: []int{0, 0},
		OnlyBifurcate:               true,
	}
}

// transitionOnlyModel has no births, deaths, or bursts, only state
// transitions, so every iteration still has a positive total rate
// (mu_s > 0) even though birth/death/burst rates are all zero.
func transitionOnlyModel(t *testing.T) *model.Model {
	t.Helper()
	q, err := ctmc.New([][]float64{{-1, 1}, {1, -1}}, ctmc.DefaultTolerance)
	if err != nil {
		t.Fatalf("ctmc.New: %v", err)
	}
	return &model.Model{
		CTMC:                        q,
		BirthRates:                  []float64{0, 0},
		DeathRates:                  []float64{0, 0},
		BurstRate:                   0,
		BurstProbs:                  []float64{0, 0},
		BurstFurcationPoissonMeans:  []float64{1, 1},
		BurstFurcationPoissonShifts: []int{0, 0},
	}
}

func intPtr(v int) *int { return &v }

func TestRunYuleReachesExactExtantLeaves(t *testing.T) {
	m := yuleModel(t)
	sc := StoppingConditions{MaxExtantLeaves: intPtr(10)}
	rng := numeric.NewRng(1)

	res, err := Run(m, sc, rng)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Survived {
		t.Fatalf("expected a surviving replicate")
	}
	if n := res.Tree.Root().NumberOfExtantLeaves(); n != 10 {
		t.Errorf("NumberOfExtantLeaves() = %d, want 10", n)
	}
	for l := range res.Tree.Root().PreOrder() {
		if l.IsBurstNode() {
			t.Errorf("pure Yule run with burst_rate = 0 must have no burst nodes")
		}
	}
}

func TestRunSeededDeterminism(t *testing.T) {
	m := yuleModel(t)
	sc := StoppingConditions{MaxExtantLeaves: intPtr(20)}

	r1, err := Run(m, sc, numeric.NewRng(42))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r2, err := Run(m, sc, numeric.NewRng(42))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	n1 := r1.Tree.Newick(tree.NewickOpts{})
	n2 := r2.Tree.Newick(tree.NewickOpts{})
	if n1 != n2 {
		t.Errorf("identical seeds produced different trees:\n%s\n%s", n1, n2)
	}
	if r1.Survived != r2.Survived {
		t.Errorf("identical seeds produced different survival outcomes")
	}
	if len(r1.BurstTimes) != len(r2.BurstTimes) {
		t.Errorf("identical seeds produced different burst-time counts")
	}
}

func TestStoppingConditionsRejectsEmpty(t *testing.T) {
	var sc StoppingConditions
	if err := sc.Validate(); err == nil {
		t.Fatalf("expected error when no stopping condition is set")
	}
}

func TestStoppingConditionsRejectsNonPositive(t *testing.T) {
	sc := StoppingConditions{MaxExtantLeaves: intPtr(0)}
	if err := sc.Validate(); err == nil {
		t.Fatalf("expected error for non-positive max_extant_leaves")
	}
}

func TestRunMaxTimeBoundedHeightMatchesClock(t *testing.T) {
	m := yuleModel(t)
	maxTime := 2.0
	sc := StoppingConditions{MaxTime: &maxTime}
	rng := numeric.NewRng(7)

	res, err := Run(m, sc, rng)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	root := res.Tree.Root()
	rootTime, _ := root.Time()
	got := root.Height() + rootTime
	if math.Abs(got-maxTime) > 1e-9 {
		t.Errorf("root.Height() + root.Time() = %v, want %v", got, maxTime)
	}
}

func TestRunWithTransitionOnlyModelReachesMaxTime(t *testing.T) {
	m := transitionOnlyModel(t)
	maxTime := 1.0
	sc := StoppingConditions{MaxTime: &maxTime}

	res, err := Run(m, sc, numeric.NewRng(3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Survived {
		t.Fatalf("expected a surviving replicate (no births or deaths ever fire)")
	}
	if n := res.Tree.Root().NumberOfLeaves(); n != 1 {
		t.Errorf("NumberOfLeaves() = %d, want 1 (no diversification occurred)", n)
	}
	if got := res.Tree.Newick(tree.NewickOpts{SimMap: true}); got == ";" {
		t.Errorf("Newick(SimMap) = %q, a root-only replicate must still carry its own annotation", got)
	}
}

// TestRunYulePureBirthStatistics exercises a pure-birth (Yule) process
// (birth_rate = 1, death and burst rates 0, only_bifurcate = true) up
// to 50 extant leaves, and checks the mean root height and mean tree
// length over many replicates against their known closed forms: for n
// tips and unit birth rate, E[height] = sum_{i=2}^{n} 1/i and
// E[tree_length] = n - 1.
func TestRunYulePureBirthStatistics(t *testing.T) {
	m := yuleModel(t)
	sc := StoppingConditions{MaxExtantLeaves: intPtr(50)}
	rng := numeric.NewRng(2024)

	const reps = 2000
	var sumHeight, sumLength float64
	for i := 0; i < reps; i++ {
		res, err := Run(m, sc, rng)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		root := res.Tree.Root()
		sumHeight += root.Height()
		sumLength += root.TreeLength()
	}

	wantHeight := 0.0
	for i := 2; i <= 50; i++ {
		wantHeight += 1.0 / float64(i)
	}
	gotHeight := sumHeight / reps
	if math.Abs(gotHeight-wantHeight) > 0.05 {
		t.Errorf("mean root height = %v, want within 0.05 of %v", gotHeight, wantHeight)
	}

	const wantLength = 49.0
	gotLength := sumLength / reps
	if math.Abs(gotLength-wantLength) > 0.5 {
		t.Errorf("mean tree length = %v, want within 0.5 of %v", gotLength, wantLength)
	}
}

// TestRunRateConsistencyUnderTimeBound runs a balanced 2-state model
// with births, deaths, transitions, and bursts all active to a fixed
// max_time, and checks that the observed per-unit-tree-length event
// rates (and per-unit-clock-time burst rate) match the input rates,
// and that state-0 and state-1 event counts are balanced, as the two
// states are symmetric in this configuration.
func TestRunRateConsistencyUnderTimeBound(t *testing.T) {
	q, err := ctmc.New([][]float64{{-1.5, 1.5}, {1.5, -1.5}}, ctmc.DefaultTolerance)
	if err != nil {
		t.Fatalf("ctmc.New: %v", err)
	}
	m := &model.Model{
		CTMC:                        q,
		BirthRates:                  []float64{2.0, 2.0},
		DeathRates:                  []float64{1.0, 1.0},
		BurstRate:                   1.2,
		BurstProbs:                  []float64{0.5, 0.5},
		BurstFurcationPoissonMeans:  []float64{1.0, 1.0},
		BurstFurcationPoissonShifts: []int{2, 2},
	}
	maxTime := 2.0
	sc := StoppingConditions{MaxTime: &maxTime}
	rng := numeric.NewRng(99)

	const reps = 200
	var totalClock, totalTreeLength, totalBursts float64
	var totalBirths, totalDeaths, totalTransitions float64
	var stateCount [2]float64

	for i := 0; i < reps; i++ {
		res, err := Run(m, sc, rng)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		root := res.Tree.Root()
		totalClock += root.MaxTime()
		totalTreeLength += root.TreeLength()
		totalBursts += float64(len(res.BurstTimes))

		for n := range root.PreOrder() {
			segs := n.LeafwardStateHistory()
			for j := 0; j+1 < len(segs); j++ {
				totalTransitions++
				stateCount[segs[j].State]++
			}
			if len(segs) == 0 {
				continue
			}
			final := segs[len(segs)-1].State
			switch {
			case n.IsLeaf() && n.IsExtinct():
				totalDeaths++
				stateCount[final]++
			case !n.IsLeaf() && !n.IsBurstNode():
				totalBirths++
				stateCount[final]++
			}
		}
	}

	check := func(name string, got, want float64) {
		if math.Abs(got-want) > 0.1 {
			t.Errorf("%s rate = %v, want within 0.1 of %v", name, got, want)
		}
	}
	check("birth", totalBirths/totalTreeLength, 2.0)
	check("death", totalDeaths/totalTreeLength, 1.0)
	check("transition", totalTransitions/totalTreeLength, 1.5)
	check("burst", totalBursts/totalClock, 1.2)

	total := stateCount[0] + stateCount[1]
	if balance := math.Abs(stateCount[0]-stateCount[1]) / total; balance > 0.1 {
		t.Errorf("state balance = %v, want <= 0.1 (state0=%v, state1=%v)", balance, stateCount[0], stateCount[1])
	}
}
