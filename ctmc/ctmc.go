// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package ctmc implements a validated continuous-time Markov chain over
// a finite, integer-indexed state space: rate-matrix validation, the
// steady-state distribution, weighted transition sampling, and an
// independent simulation-based estimator used to cross-check the
// solver.
package ctmc

import (
	"fmt"

	"github.com/phyletica/SDSDsim/numeric"
	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the row-sum tolerance used when validating Q.
const DefaultTolerance = 1e-10

// CTMC is a validated continuous-time Markov chain rate matrix.
type CTMC struct {
	q []([]float64)
}

// New validates q and returns a CTMC over it. q must be square; every
// diagonal entry must be strictly negative; every off-diagonal entry
// must be non-negative; every row must sum to zero within tol.
func New(q [][]float64, tol float64) (*CTMC, error) {
	n := len(q)
	if n == 0 {
		return nil, fmt.Errorf("ctmc: empty rate matrix")
	}
	for i, row := range q {
		if len(row) != n {
			return nil, fmt.Errorf("ctmc: row %d has length %d, want %d", i, len(row), n)
		}
	}
	for i, row := range q {
		if row[i] >= 0 {
			return nil, fmt.Errorf("ctmc: diagonal entry Q[%d][%d] = %g is not strictly negative", i, i, row[i])
		}
		var sum float64
		for j, v := range row {
			if j == i {
				sum += v
				continue
			}
			if v < 0 {
				return nil, fmt.Errorf("ctmc: off-diagonal entry Q[%d][%d] = %g is negative", i, j, v)
			}
			sum += v
		}
		if !numeric.IsZero(sum, tol) {
			return nil, fmt.Errorf("ctmc: row %d sums to %g, want 0 within tolerance %g", i, sum, tol)
		}
	}

	qc := make([][]float64, n)
	for i, row := range q {
		qc[i] = append([]float64(nil), row...)
	}
	return &CTMC{q: qc}, nil
}

// NStates returns the number of states of the chain.
func (c *CTMC) NStates() int {
	return len(c.q)
}

// GetRateFrom returns the total outgoing rate from state i, i.e. the
// sum of positive off-diagonal entries in row i (equivalently -Q[i][i]).
func (c *CTMC) GetRateFrom(i int) float64 {
	return -c.q[i][i]
}

// Rate returns Q[i][j].
func (c *CTMC) Rate(i, j int) float64 {
	return c.q[i][j]
}

// DrawTransition samples a destination state from state i, weighted by
// the positive off-diagonal rates in row i.
func (c *CTMC) DrawTransition(i int, rng numeric.Rng) (int, error) {
	row := c.q[i]
	cols := make([]int, 0, len(row)-1)
	weights := make([]float64, 0, len(row)-1)
	for j, v := range row {
		if j == i {
			continue
		}
		if v > 0 {
			cols = append(cols, j)
			weights = append(weights, v)
		}
	}
	if len(cols) == 0 {
		return 0, fmt.Errorf("ctmc: state %d has no outgoing transitions", i)
	}
	k, err := numeric.GetWeightedIndex(weights, rng)
	if err != nil {
		return 0, fmt.Errorf("ctmc: drawing transition from state %d: %w", i, err)
	}
	return cols[k], nil
}

// GetSteadyStateProbs solves pi*Q = 0 subject to sum(pi) = 1 by
// replacing the last row of Q^T (the last column of Q) with a row of
// ones, and the right-hand side's last entry with one, then performing
// a single linear solve.
func (c *CTMC) GetSteadyStateProbs() ([]float64, error) {
	n := c.NStates()

	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// a is Q^T with its last row replaced by ones.
			if i == n-1 {
				a.Set(i, j, 1)
				continue
			}
			a.Set(i, j, c.q[j][i])
		}
	}

	b := mat.NewVecDense(n, nil)
	b.SetVec(n-1, 1)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("ctmc: unable to solve for steady-state probabilities: %w", err)
	}

	pi := make([]float64, n)
	for i := 0; i < n; i++ {
		pi[i] = x.AtVec(i)
	}
	return pi, nil
}

// AreSteadyStateProbs reports whether pi satisfies pi*Q = 0 within a
// tolerance of 1e-8 componentwise.
func (c *CTMC) AreSteadyStateProbs(pi []float64) bool {
	n := c.NStates()
	if len(pi) != n {
		return false
	}
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += pi[i] * c.q[i][j]
		}
		if !numeric.IsZero(sum, 1e-8) {
			return false
		}
	}
	return true
}

// DrawRandomState samples a state from the steady-state distribution.
func (c *CTMC) DrawRandomState(rng numeric.Rng) (int, error) {
	pi, err := c.GetSteadyStateProbs()
	if err != nil {
		return 0, err
	}
	// Clamp tiny negative round-off before treating pi as weights.
	for i, p := range pi {
		if p < 0 {
			pi[i] = 0
		}
	}
	idx, err := numeric.GetWeightedIndex(pi, rng)
	if err != nil {
		return 0, fmt.Errorf("ctmc: drawing random state: %w", err)
	}
	return idx, nil
}

// SimSteadyStateProbs is an independent, simulation-based estimator of
// the steady-state occupancy probabilities, used to cross-validate
// GetSteadyStateProbs. Starting from state 0 and clock 0, it repeatedly
// samples the next event as the minimum of exponential waits across the
// row's positive rates, accumulating time-in-state from warmupTime to
// maxTime. warmupTime must be strictly less than maxTime.
func (c *CTMC) SimSteadyStateProbs(maxTime, warmupTime float64, rng numeric.Rng) ([]float64, error) {
	if warmupTime >= maxTime {
		return nil, fmt.Errorf("ctmc: warmup time %g must be less than max time %g", warmupTime, maxTime)
	}

	n := c.NStates()
	occupancy := make([]float64, n)

	state := 0
	clock := 0.0
	for clock < maxTime {
		row := c.q[state]
		nextCols := make([]int, 0, n-1)
		waits := make([]float64, 0, n-1)
		for j, v := range row {
			if j == state || v <= 0 {
				continue
			}
			w, err := numeric.Exponential(v, rng)
			if err != nil {
				return nil, err
			}
			nextCols = append(nextCols, j)
			waits = append(waits, w)
		}
		if len(waits) == 0 {
			// absorbing state: remain until maxTime.
			dt := maxTime - clock
			accumulate(occupancy, state, clock, clock+dt, warmupTime, maxTime)
			clock = maxTime
			break
		}

		minIdx := 0
		for i := 1; i < len(waits); i++ {
			if waits[i] < waits[minIdx] {
				minIdx = i
			}
		}
		dt := waits[minIdx]
		end := clock + dt
		if end > maxTime {
			end = maxTime
		}
		accumulate(occupancy, state, clock, end, warmupTime, maxTime)
		clock = end
		state = nextCols[minIdx]
	}

	span := maxTime - warmupTime
	for i := range occupancy {
		occupancy[i] /= span
	}
	return occupancy, nil
}

// accumulate adds the portion of [start, end) that falls within
// [warmup, maxTime) to occupancy[state].
func accumulate(occupancy []float64, state int, start, end, warmup, maxTime float64) {
	if end <= warmup {
		return
	}
	if start < warmup {
		start = warmup
	}
	if end > maxTime {
		end = maxTime
	}
	if end <= start {
		return
	}
	occupancy[state] += end - start
}
