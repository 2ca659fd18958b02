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

// Package stratify implements weight-based partitioning of soft clauses
// (spec.md §4.4): group soft units by coefficient weight into ordered
// partitions, run the MCS core on the heaviest partition alone, then merge
// partitions one at a time, retaining the solver's hardened state between
// merges so earlier work is never redone from scratch.
package stratify

import (
	"sort"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/numeric"
)

// SoftUnit is one weighted soft literal: the term a Pareto-MCS core treats
// as a candidate for relaxation, paired with the coefficient weight
// stratification partitions by.
type SoftUnit struct {
	Lit    constraint.Literal
	Weight int64
}

// Strategy selects how units are assigned to partitions.
type Strategy int

const (
	// MergedReduction bands units into contiguous, weight-sorted groups --
	// appropriate once any ratio objective has already been folded into a
	// single weighted sum upstream (spec.md §4.4's "merged reduction").
	MergedReduction Strategy = iota
	// ProbabilitySplit samples each unit's partition stochastically,
	// biased toward the partition its weight share quantile falls nearest.
	ProbabilitySplit
)

// PartitionCount derives the largest partition count p satisfying both of
// spec.md §4.4's bounds: distinctWeights/p ≥ ratio and
// totalLiterals/(p·distinctWeights) ≥ ratio. Both bounds are upper limits on
// p, so the largest count still honoring them is the floor of the smaller
// one. ratio ≤ 0 or distinctWeights == 0 degenerates to a single
// partition.
func PartitionCount(ratio float64, distinctWeights, totalLiterals int) int {
	if ratio <= 0 || distinctWeights <= 0 {
		return 1
	}
	byWeights := float64(distinctWeights) / ratio
	byLiterals := float64(totalLiterals) / (ratio * float64(distinctWeights))
	bound := byWeights
	if byLiterals < bound {
		bound = byLiterals
	}
	p := int(bound)
	if p < 1 {
		p = 1
	}
	return p
}

// Partition splits units into count ordered groups, heaviest first, per
// strategy. rng is only consulted by ProbabilitySplit; MergedReduction
// ignores it and may be called with a nil RNG.
func Partition(strategy Strategy, units []SoftUnit, count int, rng numeric.RNG) [][]SoftUnit {
	if count < 1 {
		count = 1
	}
	sorted := append([]SoftUnit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })

	switch strategy {
	case ProbabilitySplit:
		return probabilitySplit(sorted, count, rng)
	default:
		return mergedReduction(sorted, count)
	}
}

// mergedReduction bands the weight-sorted units into count contiguous,
// roughly equal-sized chunks; chunk 0 is the heaviest.
func mergedReduction(sorted []SoftUnit, count int) [][]SoftUnit {
	groups := make([][]SoftUnit, count)
	if len(sorted) == 0 {
		return groups
	}
	chunk := (len(sorted) + count - 1) / count
	for i := 0; i < count; i++ {
		lo := i * chunk
		if lo >= len(sorted) {
			break
		}
		hi := lo + chunk
		if hi > len(sorted) {
			hi = len(sorted)
		}
		groups[i] = append(groups[i], sorted[lo:hi]...)
	}
	return groups
}

// probabilitySplit places each unit at its deterministic weight-rank
// quantile position among count partitions, then uses rng to round that
// fractional position up or down, weighted by how close it sits to each
// neighbor -- a stochastic analogue of mergedReduction's hard cut points,
// per spec.md §4.4's "sample partition assignment per term proportional to
// weight share".
func probabilitySplit(sorted []SoftUnit, count int, rng numeric.RNG) [][]SoftUnit {
	groups := make([][]SoftUnit, count)
	n := len(sorted)
	if n == 0 {
		return groups
	}
	for i, u := range sorted {
		pos := float64(i) / float64(n) * float64(count)
		lower := int(pos)
		if lower >= count {
			lower = count - 1
		}
		upper := lower + 1
		if upper >= count {
			upper = count - 1
		}
		frac := pos - float64(lower)
		idx := lower
		if upper != lower {
			// weights{lower, upper}: the closer pos sits to upper, the more
			// likely rng picks it.
			if numeric.RouletteWheel(rng, []float64{1 - frac, frac}) == 1 {
				idx = upper
			}
		}
		groups[idx] = append(groups[idx], u)
	}
	return groups
}
