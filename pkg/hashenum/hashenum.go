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

// Package hashenum implements hash-based enumeration (spec.md §4.6):
// within a fixed objective bound region, add random XOR parity constraints
// over the placement variables to partition the solution space into 2^k
// cells, then solve for one representative. k halves on unsat, doubles on
// repeated sat without novelty. Coverage is probabilistic; there is no
// completeness guarantee.
package hashenum

import (
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/numeric"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// Sample is one representative model, as the truth value of each of vars
// (in the same order), aligned with the vars slice Enumerate was given.
type Sample struct {
	Values []bool
}

// key turns a Sample into a comparable value so Enumerate can recognize a
// repeated (non-novel) draw.
func (s Sample) key() string {
	b := make([]byte, len(s.Values))
	for i, v := range s.Values {
		if v {
			b[i] = 1
		}
	}
	return string(b)
}

// Enumerate repeatedly draws representatives from within the region where
// every objective in objectives is ≤ its bound, target times or until
// timeout. It starts with k random XOR parity constraints over vars
// (initialK), halving k whenever the hashed region goes unsat and doubling
// it whenever a draw repeats a sample already seen, then tries again.
func Enumerate(s *satsolver.Solver, vars []constraint.Literal, objectives []pbopt.Objective, bounds []int64, initialK int, target int, rng numeric.RNG, assumptions []constraint.Literal, timeout time.Duration) ([]Sample, error) {
	deadline := time.Now().Add(timeout)

	boundIDs := make([]satsolver.ConstraintID, len(objectives))
	for i, obj := range objectives {
		id, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, bounds[i]-obj.Constant)
		if err != nil {
			return nil, err
		}
		boundIDs[i] = id
	}
	defer func() {
		for _, id := range boundIDs {
			_ = s.Remove(id)
		}
	}()
	boundAssume := append(append([]constraint.Literal(nil), assumptions...), activatorsOf(s, boundIDs)...)

	k := initialK
	if k < 0 {
		k = 0
	}
	seen := make(map[string]bool)
	var samples []Sample

	for len(samples) < target {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		xorIDs, err := addRandomXORs(s, vars, k, rng)
		if err != nil {
			return nil, err
		}
		assume := append(append([]constraint.Literal(nil), boundAssume...), activatorsOf(s, xorIDs)...)

		status, err := s.Solve(assume, remaining, 0)
		for _, id := range xorIDs {
			_ = s.Remove(id)
		}
		if err != nil {
			return nil, err
		}

		switch status {
		case satsolver.StatusSat:
			sample := readSample(s, vars)
			kk := sample.key()
			if seen[kk] {
				// repeated draw without novelty: double k to shrink cells
				// further (from zero, step to one)
				if k == 0 {
					k = 1
				} else {
					k *= 2
				}
				continue
			}
			seen[kk] = true
			samples = append(samples, sample)
		case satsolver.StatusUnsat:
			if k == 0 {
				// the bounded region itself is unsat with no hashing at
				// all; no amount of halving will help.
				return samples, nil
			}
			k /= 2
		default: // StatusUnknown: treat like a failed draw, keep k as-is
		}
	}
	return samples, nil
}

func addRandomXORs(s *satsolver.Solver, vars []constraint.Literal, k int, rng numeric.RNG) ([]satsolver.ConstraintID, error) {
	ids := make([]satsolver.ConstraintID, 0, k)
	for i := 0; i < k; i++ {
		lits, parity := randomXOR(vars, rng)
		if len(lits) == 0 {
			continue
		}
		id, err := s.AddRemovableXOR(lits, parity)
		if err != nil {
			for _, rid := range ids {
				_ = s.Remove(rid)
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// randomXOR picks each variable into the constraint independently with
// probability 1/2 and a random parity bit, the standard construction for a
// pairwise-independent hash family over the Boolean cube. A degenerate
// empty draw (no variable selected) is not redrawn: the first variable is
// forced in instead, since an XOR over zero literals is a constant, not a
// partitioning hash.
func randomXOR(vars []constraint.Literal, rng numeric.RNG) ([]constraint.Literal, bool) {
	var lits []constraint.Literal
	for _, v := range vars {
		if rng.Float64() < 0.5 {
			lits = append(lits, v)
		}
	}
	if len(lits) == 0 && len(vars) > 0 {
		lits = append(lits, vars[0])
	}
	return lits, rng.Intn(2) == 1
}

func readSample(s *satsolver.Solver, vars []constraint.Literal) Sample {
	values := make([]bool, len(vars))
	for i, v := range vars {
		values[i] = s.Value(v)
	}
	return Sample{Values: values}
}

func activatorsOf(s *satsolver.Solver, ids []satsolver.ConstraintID) []constraint.Literal {
	lits := make([]constraint.Literal, len(ids))
	for i, id := range ids {
		lits[i] = s.Activator(id)
	}
	return lits
}
