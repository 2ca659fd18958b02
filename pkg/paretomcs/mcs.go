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

// Package paretomcs finds Pareto-optimal placements by Minimal Correction
// Set (MCS) extraction over per-objective "did this objective improve"
// literals (spec.md §4.4): each step holds every objective at "no worse
// than the current point" as a hard bound and asks, via MCS, which subset
// of objectives can simultaneously improve. An empty complement means the
// current point is already Pareto-optimal.
package paretomcs

import (
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/satsolver"
	"github.com/vmcwm/allocator/pkg/vmerr"
)

// CoreStrategy selects how an unsatisfiable soft-literal set is whittled
// down to a minimal correction set.
type CoreStrategy int

const (
	// LBX tests each soft literal for removal one at a time, in order.
	LBX CoreStrategy = iota
	// CLD ("iterative disjunction") first probes whether an entire
	// remaining suffix of soft literals can stay satisfied together,
	// skipping individual tests for all of them when that probe succeeds.
	// It is a batched refinement of the same deletion-based procedure
	// LBX uses, not the core-reuse algorithm the name denotes in the
	// MaxSAT literature -- see DESIGN.md.
	CLD
)

// MCS computes a subset-minimal correction set of soft: the literals that
// must be relaxed (left out) because holding every one of soft true,
// together with assumptions and whatever hard constraints s already
// carries, is unsatisfiable. A nil return means soft was already jointly
// satisfiable -- no correction needed.
func MCS(s *satsolver.Solver, soft []constraint.Literal, assumptions []constraint.Literal, strategy CoreStrategy, timeout time.Duration) ([]constraint.Literal, error) {
	deadline := time.Now().Add(timeout)
	kept := make([]bool, len(soft))
	for i := range kept {
		kept[i] = true
	}
	batchProbe := strategy == CLD

	solve := func(remaining time.Duration) (satsolver.Status, error) {
		assume := make([]constraint.Literal, 0, len(assumptions)+len(soft))
		assume = append(assume, assumptions...)
		for i, l := range soft {
			if kept[i] {
				assume = append(assume, l)
			}
		}
		return s.Solve(assume, remaining, 0)
	}

	for i := 0; i < len(soft); i++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, vmerr.ErrTimeout
		}
		if batchProbe {
			status, err := solve(remaining)
			if err != nil {
				return nil, err
			}
			if status == satsolver.StatusSat {
				break // every literal from i onward can stay kept as-is
			}
		}

		kept[i] = false
		remaining = time.Until(deadline)
		if remaining <= 0 {
			return nil, vmerr.ErrTimeout
		}
		status, err := solve(remaining)
		if err != nil {
			return nil, err
		}
		if status == satsolver.StatusSat {
			kept[i] = true // i wasn't the problem; restore it
		}
	}

	var mcs []constraint.Literal
	for i, k := range kept {
		if !k {
			mcs = append(mcs, soft[i])
		}
	}
	return mcs, nil
}
