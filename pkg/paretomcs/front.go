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

package paretomcs

import (
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// Step is the outcome of one ImproveStep call.
type Step struct {
	Improved []int   // indices into the objectives slice that got strictly better
	Point    []int64 // the new point's value per objective, aligned with objectives
	OK       bool    // false means current was already Pareto-optimal
}

// ImproveStep looks for a point that is no worse than current in every
// objective and strictly better in at least one, returning which
// objectives improved. It does so by holding every objective at its
// current value (a hard "no worse" bound for the duration of the call),
// giving each one a soft "strictly better" goal literal, and running MCS
// to find the maximal subset of those goals that can be jointly
// satisfied. If none can -- the MCS covers every goal literal -- current
// is already Pareto-optimal and OK is false.
func ImproveStep(s *satsolver.Solver, objectives []pbopt.Objective, current []int64, assumptions []constraint.Literal, strategy CoreStrategy, timeout time.Duration) (Step, error) {
	deadline := time.Now().Add(timeout)

	noWorseIDs := make([]satsolver.ConstraintID, len(objectives))
	goalIDs := make([]satsolver.ConstraintID, len(objectives))
	goals := make([]constraint.Literal, len(objectives))
	defer func() {
		for _, id := range noWorseIDs {
			_ = s.Remove(id)
		}
		for _, id := range goalIDs {
			_ = s.Remove(id)
		}
	}()

	for k, obj := range objectives {
		id, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, current[k]-obj.Constant)
		if err != nil {
			return Step{}, err
		}
		noWorseIDs[k] = id

		gid, err := s.AddRemovablePB(constraint.OpLE, obj.Coeffs, obj.Lits, current[k]-1-obj.Constant)
		if err != nil {
			return Step{}, err
		}
		goalIDs[k] = gid
		goals[k] = s.Activator(gid)
	}

	// The no-worse bounds must hold for every probe MCS performs; fold
	// them into the fixed assumption set passed alongside the goal
	// literals it is testing.
	noWorseAssume := append([]constraint.Literal(nil), assumptions...)
	for _, id := range noWorseIDs {
		noWorseAssume = append(noWorseAssume, s.Activator(id))
	}

	mcs, err := MCS(s, goals, noWorseAssume, strategy, time.Until(deadline))
	if err != nil {
		return Step{}, err
	}
	if len(mcs) == len(goals) {
		return Step{OK: false}, nil
	}

	failed := make(map[constraint.Literal]bool, len(mcs))
	for _, l := range mcs {
		failed[l] = true
	}
	finalAssume := append([]constraint.Literal(nil), noWorseAssume...)
	var improved []int
	for k, g := range goals {
		if !failed[g] {
			finalAssume = append(finalAssume, g)
			improved = append(improved, k)
		}
	}

	remaining := time.Until(deadline)
	status, err := s.Solve(finalAssume, remaining, 0)
	if err != nil {
		return Step{}, err
	}
	if status != satsolver.StatusSat {
		// The improving subset MCS reported as jointly satisfiable no
		// longer solves (e.g. the deadline forced an early StatusUnknown
		// read during MCS extraction); report no improvement this round
		// rather than returning a point with no backing model.
		return Step{OK: false}, nil
	}

	point := make([]int64, len(objectives))
	for k, obj := range objectives {
		point[k] = pbopt.Evaluate(s, obj)
	}
	return Step{Improved: improved, Point: point, OK: true}, nil
}

// BlockAssignment implements spec.md §4.3's path diversification: given the
// literals of the model s currently holds (read via s.Value, so this must be
// called only right after a Sat solve), it adds a hard clause forbidding
// exactly that placement vector -- at least one of vars must flip before the
// solver can return this same assignment again. This is a distinct
// mechanism from the objective-value dominance blocking runParetoFront
// already does in pkg/allocator's blockPoint: that excludes every point
// dominated-or-equal by the objective vector just found, this excludes only
// the one exact placement, forcing the next iteration to explore a
// different assignment even when it would score the same.
func BlockAssignment(s *satsolver.Solver, vars []constraint.Literal) error {
	clause := make([]constraint.Literal, len(vars))
	for i, v := range vars {
		if s.Value(v) {
			clause[i] = v.Negate()
		} else {
			clause[i] = v
		}
	}
	return s.AddClause(clause...)
}
