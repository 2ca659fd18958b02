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

// Package gia implements the Guided Improvement Algorithm (spec.md §4.5): a
// dominance-tightening loop around the PB solver, distinct from paretomcs in
// that it drives toward each Pareto point by repeatedly asserting a single
// combined "no worse everywhere, strictly better somewhere" constraint and
// resolving, rather than extracting a correction set over per-objective
// goal literals.
package gia

import (
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// Point is one Pareto-optimal model found by Run: its objective vector.
type Point struct {
	Values []int64
}

// Run drives the outer/inner loop of spec.md §4.5 to completion: find any
// feasible model; while a strictly dominating model exists, replace the
// incumbent with it; when none does, the incumbent is Pareto-optimal --
// emit it, add a blocking clause ruling out every model it dominates, and
// look for the next incumbent. Run stops when the outer loop goes unsat
// (the blocking clauses have excluded every remaining model) or the
// deadline passes, returning whatever points were found so far.
//
// onPoint, if non-nil, is invoked with each Pareto point as soon as it is
// confirmed, mirroring pbopt.Minimize's onNewBest streaming callback.
func Run(s *satsolver.Solver, objectives []pbopt.Objective, assumptions []constraint.Literal, timeout time.Duration, onPoint func(Point)) ([]Point, error) {
	deadline := time.Now().Add(timeout)
	var points []Point

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return points, nil
		}
		status, err := s.Solve(assumptions, remaining, 0)
		if err != nil {
			return nil, err
		}
		if status != satsolver.StatusSat {
			return points, nil
		}

		incumbent := readValues(s, objectives)

		for {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return points, nil
			}
			dominated, err := tryDominate(s, objectives, incumbent, assumptions, remaining)
			if err != nil {
				return nil, err
			}
			if dominated == nil {
				break // incumbent is Pareto-optimal
			}
			incumbent = dominated
		}

		if err := blockDominated(s, objectives, incumbent); err != nil {
			return nil, err
		}
		point := Point{Values: incumbent}
		points = append(points, point)
		if onPoint != nil {
			onPoint(point)
		}
	}
}

// tryDominate looks for a model with objᵢ(x) ≤ incumbent[i] for every i and
// strictly < for at least one, by asserting that whole disjunction as one
// removable constraint and solving. It returns the new, strictly dominating
// objective vector, or nil if no such model exists.
func tryDominate(s *satsolver.Solver, objectives []pbopt.Objective, incumbent []int64, assumptions []constraint.Literal, timeout time.Duration) ([]int64, error) {
	ids := make([]satsolver.ConstraintID, 0, len(objectives)+1)
	defer func() {
		for _, id := range ids {
			_ = s.Remove(id)
		}
	}()

	for k, obj := range objectives {
		id, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, incumbent[k]-obj.Constant)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	strict := make([]constraint.Literal, len(objectives))
	for k, obj := range objectives {
		id, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, incumbent[k]-1-obj.Constant)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		strict[k] = s.Activator(id)
	}
	disjunctionID, err := s.AddRemovableClause(strict...)
	if err != nil {
		return nil, err
	}
	ids = append(ids, disjunctionID)

	assume := append(append([]constraint.Literal(nil), assumptions...), s.Activator(disjunctionID))
	for _, id := range ids[:len(objectives)] {
		assume = append(assume, s.Activator(id))
	}

	status, err := s.Solve(assume, timeout, 0)
	if err != nil {
		return nil, err
	}
	if status != satsolver.StatusSat {
		return nil, nil
	}
	return readValues(s, objectives), nil
}

// blockDominated asserts a hard clause forbidding every model m dominates:
// future solves must have objᵢ(x) ≤ m[i]-1 for at least one i, i.e. at
// least one objective strictly better than m's. Each per-objective
// "strictly better" constraint is added removable so it stays vacuous unless
// its own activator is chosen true, then the hard clause over those
// activators is the only permanent assertion -- exactly one (or more) of
// them must hold from then on, in every future solve.
func blockDominated(s *satsolver.Solver, objectives []pbopt.Objective, m []int64) error {
	better := make([]constraint.Literal, len(objectives))
	for k, obj := range objectives {
		id, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, m[k]-1-obj.Constant)
		if err != nil {
			return err
		}
		better[k] = s.Activator(id)
	}
	return s.AddClause(better...)
}

func readValues(s *satsolver.Solver, objectives []pbopt.Objective) []int64 {
	values := make([]int64, len(objectives))
	for k, obj := range objectives {
		values[k] = pbopt.Evaluate(s, obj)
	}
	return values
}
