// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Package numeric implements the small numerical and random-sampling
// primitives shared by the ctmc and sdsdsim packages and the
// sim_SDSD_trees command: tolerant
// float comparison, weighted and probability-vector index sampling,
// exponential and shifted-Poisson draws, and safe integer seeds.
package numeric

import (
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultTolerance is the default absolute tolerance used by IsZero.
const DefaultTolerance = 1e-10

// Rng is the pseudo-random source used by every draw in this module.
// It is passed explicitly by callers; there is no package-level default
// source. DefaultRng builds a fresh one for callers without a seed.
type Rng = *rand.Rand

// NewRng returns a new seeded random source.
func NewRng(seed uint64) Rng {
	return rand.New(rand.NewSource(seed))
}

// DefaultRng builds a process-entropy-seeded source and immediately
// draws a GetSafeSeed-style reportable seed from it, returning both the
// seed (so a caller can echo it back to the user) and a source
// constructed from that seed. It exists only for callers, such as the
// sim_SDSD_trees command, that must report the seed a run used even
// when the user never supplied one; the core packages never call it.
func DefaultRng() (int64, Rng) {
	entropy := rand.New(rand.NewSource(uint64(time.Now().UnixNano()) ^ uint64(os.Getpid())))
	seed := GetSafeSeed(entropy)
	return seed, NewRng(uint64(seed))
}

// IsZero reports whether x is within tol of zero.
func IsZero(x, tol float64) bool {
	return math.Abs(x) <= tol
}

// IsZeroDefault reports whether x is within DefaultTolerance of zero.
func IsZeroDefault(x float64) bool {
	return IsZero(x, DefaultTolerance)
}

// GetWeightedIndex draws an index from weights with probability
// proportional to its weight. Weights must be non-negative and sum to
// a strictly positive value. A zero-weight index is never returned.
func GetWeightedIndex(weights []float64, rng Rng) (int, error) {
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("numeric: negative weight %g", w)
		}
		sum += w
	}
	if sum <= 0 {
		return 0, fmt.Errorf("numeric: weights must sum to a positive value, got %g", sum)
	}

	u := rng.Float64()
	var cum float64
	for i, w := range weights {
		cum += w / sum
		if u-cum < 0 {
			return i, nil
		}
	}
	// floating point round-off: return the last non-zero weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("numeric: no positive weight found")
}

// GetProbIndex is GetWeightedIndex asserting that probs already sums to
// one within DefaultTolerance.
func GetProbIndex(probs []float64, rng Rng) (int, error) {
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if !IsZeroDefault(1 - sum) {
		return 0, fmt.Errorf("numeric: probabilities sum to %g, want 1", sum)
	}
	return GetWeightedIndex(probs, rng)
}

// Exponential draws a waiting time from an exponential distribution
// with the given rate. Rate must be strictly positive; a zero rate must
// be filtered out by the caller before this is called, per spec.
func Exponential(rate float64, rng Rng) (float64, error) {
	if rate <= 0 {
		return 0, fmt.Errorf("numeric: exponential rate must be positive, got %g", rate)
	}
	e := distuv.Exponential{
		Rate: rate,
		Src:  rng,
	}
	return e.Rand(), nil
}

// maxSafeInt is the largest integer PoissonRV will return without
// reporting a numerical-limit failure, matching the platform's safe
// integer range for float64 mantissas.
const maxSafeInt = 1 << 53

// PoissonRV draws a Poisson-distributed random variate with the given
// mean, using the shifted Knuth algorithm. For means large enough that
// exp(-mean) underflows to zero, the draw is split into d independent
// draws of mean mean/d, where d is the smallest integer keeping -mean/d
// at or above -700, inside float64's normal exponent range.
func PoissonRV(mean float64, rng Rng) (int64, error) {
	if mean <= 0 {
		return 0, fmt.Errorf("numeric: poisson mean must be positive, got %g", mean)
	}

	// math.Exp(x) underflows to zero for x below about -745 and is
	// subnormal below about -708; -700 keeps exp(-mean/d) a normal float64.
	const minExpArg = -700.0

	d := 1
	for -mean/float64(d) < minExpArg {
		d++
	}

	var total int64
	for i := 0; i < d; i++ {
		k, err := poissonKnuth(mean/float64(d), rng)
		if err != nil {
			return 0, err
		}
		total += k
		if total < 0 || total > maxSafeInt {
			return 0, fmt.Errorf("numeric: poisson draw exceeds safe integer range")
		}
	}
	return total, nil
}

// poissonKnuth is the classic Knuth algorithm for a single Poisson
// variate, valid for means small enough that exp(-mean) does not
// underflow.
func poissonKnuth(mean float64, rng Rng) (int64, error) {
	l := math.Exp(-mean)
	p := 1.0
	var k int64
	for p >= l {
		u := rng.Float64()
		p *= u
		k++
		if k > maxSafeInt {
			return 0, fmt.Errorf("numeric: poisson draw exceeds safe integer range")
		}
	}
	return k - 1, nil
}

// GetSafeSeed returns a uniform integer in [1, 2^31-1], suitable for
// seeding another random source.
func GetSafeSeed(rng Rng) int64 {
	const maxSeed = 1<<31 - 1
	return rng.Int63n(maxSeed) + 1
}
