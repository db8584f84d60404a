// Package util provides utility functions for the BodyControl application.
package util

import (
	"math/rand/v2"
	"time"
)

// Random is the source of randomness injected into the simulation so runs
// can be reproduced from a seed.
type Random interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// SeededRandom is a Random backed by a PCG generator.
type SeededRandom struct {
	seed uint64
	rng  *rand.Rand
}

// NewSeededRandom creates a deterministic Random for the given seed.
func NewSeededRandom(seed uint64) *SeededRandom {
	return &SeededRandom{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// NewSeed derives a seed from the wall clock for unseeded sessions.
func NewSeed() uint64 {
	return uint64(time.Now().UnixNano()) ^ rand.Uint64()
}

// Seed returns the seed the generator was created with.
func (r *SeededRandom) Seed() uint64 { return r.seed }

// Float64 returns a value in [0.0, 1.0).
func (r *SeededRandom) Float64() float64 { return r.rng.Float64() }

// IntN returns a value in [0, n).
func (r *SeededRandom) IntN(n int) int { return r.rng.IntN(n) }

// Between returns a value in [lo, lo+span).
func Between(r Random, lo, span float64) float64 {
	return lo + r.Float64()*span
}

// Pick returns a random element of items, or the zero value for an empty slice.
func Pick[T any](r Random, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[r.IntN(len(items))]
}
