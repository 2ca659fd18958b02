/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package numeric

import "golang.org/x/exp/rand"

// RNG is the narrow random-source contract the engine depends on, so tests
// can substitute a seeded or deterministic source. *rand.Rand from
// golang.org/x/exp/rand (the teacher's evolutionary code imports the same
// package) satisfies it directly.
type RNG interface {
	Float64() float64
	Intn(n int) int
}

// NewSeeded returns an *rand.Rand seeded deterministically. The allocator's
// hash enumeration draws from NewSeeded(1) on every run; multi-seed runs
// (allocator.Options.MultiSeed) do not reseed it, so each seed index sees
// the same stream.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// RouletteWheel picks an index into weights proportional to each weight's
// share of the total, using r for randomness. Used by stratification's
// probability-split partitioner to sample a partition per soft-clause term.
func RouletteWheel(r RNG, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return r.Intn(len(weights))
	}
	target := r.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}
