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

// Package pbopt implements single-objective pseudo-Boolean optimization by
// linear search: solve, read the objective's value off the model, tighten
// with "objective <= best-1", solve again, until unsat. This is the same
// strategy gophersat's own Solver.Minimize uses internally; pbopt
// reimplements it on top of satsolver.Solver instead of calling Minimize
// directly so the tightening constraint can be removable (letting a caller
// reuse the same Solver for a follow-up, differently-weighted objective
// without rebuilding the hard constraints from scratch).
package pbopt

import (
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/satsolver"
	"github.com/vmcwm/allocator/pkg/vmerr"
)

// Objective is Constant + sum(Coeffs[i] * Lits[i]), the quantity Minimize
// drives down. Constant carries the part of a linearized objective that
// does not depend on any placement literal (e.g. encoder's migration
// objective, whose variable part is a negative sum and whose constant is
// the total migratable memory).
type Objective struct {
	Lits     []constraint.Literal
	Coeffs   []int64
	Constant int64
}

// Result is the outcome of a Minimize run.
type Result struct {
	Status   satsolver.Status
	BestCost int64 // meaningful only when Status == StatusSat
}

// Minimize repeatedly solves s, tightening the objective after every
// improving model, until the tightened problem goes unsat or the deadline
// passes. onNewBest, if non-nil, is invoked with each strictly improving
// cost as soon as its model is found -- callers use this to stream
// incumbent solutions out rather than waiting for the final one.
//
// assumptions must be empty: PBO does not support assumption inputs, so a
// caller wanting them must drive satsolver.Solver directly; Minimize
// rejects a non-empty assumptions slice with vmerr.ErrNotSupported instead
// of silently applying it.
func Minimize(s *satsolver.Solver, obj Objective, assumptions []constraint.Literal, timeout time.Duration, onNewBest func(cost int64)) (Result, error) {
	if len(assumptions) > 0 {
		return Result{}, vmerr.NotSupported("pbopt: assumptions")
	}
	if len(obj.Lits) != len(obj.Coeffs) {
		return Result{}, vmerr.NotSupported("pbopt: mismatched objective literal/coefficient count")
	}

	deadline := time.Now().Add(timeout)
	var (
		best       int64
		haveModel  bool
		tightenID  satsolver.ConstraintID
		hasTighten bool
	)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if haveModel {
				return Result{Status: satsolver.StatusSat, BestCost: best}, nil
			}
			return Result{Status: satsolver.StatusUnknown}, nil
		}

		status, err := s.Solve(assumptions, remaining, 0)
		if err != nil {
			return Result{}, err
		}
		if status != satsolver.StatusSat {
			if haveModel {
				return Result{Status: satsolver.StatusSat, BestCost: best}, nil
			}
			return Result{Status: status}, nil
		}

		cost := Evaluate(s, obj)
		if !haveModel || cost < best {
			best = cost
			haveModel = true
			if onNewBest != nil {
				onNewBest(best)
			}
		}
		if best == lowerBound(obj) {
			return Result{Status: satsolver.StatusSat, BestCost: best}, nil
		}

		if hasTighten {
			if err := s.Remove(tightenID); err != nil {
				return Result{}, err
			}
		}
		id, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, best-1-obj.Constant)
		if err != nil {
			return Result{}, err
		}
		tightenID, hasTighten = id, true
	}
}

// Evaluate reads obj's value off s's most recent Sat model. Exported so
// paretomcs and gia, which drive satsolver.Solver directly rather than
// through Minimize, can read the same objectives consistently.
func Evaluate(s *satsolver.Solver, obj Objective) int64 {
	cost := obj.Constant
	for i, l := range obj.Lits {
		if s.Value(l) {
			cost += obj.Coeffs[i]
		}
	}
	return cost
}

// lowerBound is the minimum conceivable cost of obj: Constant plus the sum
// of its negative coefficients, reachable by setting every
// positive-weighted literal false and every negative-weighted one true.
// Hitting it early lets Minimize stop without one final, certainly-unsat
// solve.
func lowerBound(obj Objective) int64 {
	lb := obj.Constant
	for _, c := range obj.Coeffs {
		if c < 0 {
			lb += c
		}
	}
	return lb
}
