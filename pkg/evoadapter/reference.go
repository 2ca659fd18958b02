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

package evoadapter

import (
	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/numeric"
)

// scored pairs a Solution with its already-evaluated objective vector, the
// same association the teacher's NSGAIISolution makes between a
// framework.Solution and its framework.ObjectiveSpacePoint.
type scored struct {
	sol   Solution
	value []float64
}

// Dominates reports whether a is no worse than b in every objective and
// strictly better in at least one, mirroring the teacher's
// algorithms.Dominates over NSGAIISolution.Value.
func dominates(a, b []float64) bool {
	strictlyBetter := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

// ParetoFront extracts the non-dominated subset of a scored population,
// grounded on the teacher's NonDominatedSort/GetParetoFront pair but
// trimmed to only the first front -- this reference driver has no need
// for NSGA-II's full rank/crowding machinery.
func paretoFront(pop []scored) []scored {
	var front []scored
	for i, s := range pop {
		dominated := false
		for j, other := range pop {
			if i != j && dominates(other.value, s.value) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, s)
		}
	}
	return front
}

// Run drives Problem p through generations generations of a deliberately
// minimal generational loop: evaluate, keep the non-dominated front,
// mutate front members drawn at random from rng to refill the population
// back to populationSize, repeat. There is no crossover and no tournament
// selection -- this exists only to prove evoadapter's contract
// (VariableCount/ObjectiveCount/Evaluate/Normalize/Mutate/Initialize) is
// sufficient to drive an evolutionary search, not to be a competitive
// optimizer in its own right.
func Run(inst domain.Instance, p *Problem, mode InitMode, populationSize, generations int, rng numeric.RNG) []Solution {
	pop := Initialize(inst, p, mode, populationSize, rng)

	var front []scored
	for g := 0; g < generations; g++ {
		scoredPop := make([]scored, len(pop))
		for i, sol := range pop {
			scoredPop[i] = scored{sol: sol, value: p.Evaluate(sol)}
		}
		front = paretoFront(scoredPop)

		next := make([]Solution, 0, populationSize)
		for _, s := range front {
			next = append(next, s.sol)
		}
		for len(next) < populationSize {
			parent := front[rng.Intn(len(front))]
			next = append(next, p.Mutate(parent.sol, rng))
		}
		pop = next
	}

	out := make([]Solution, len(front))
	for i, s := range front {
		out[i] = s.sol
	}
	return out
}
