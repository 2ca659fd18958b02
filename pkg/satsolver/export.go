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

package satsolver

import "github.com/vmcwm/allocator/pkg/constraint"

// Constraint is a flattened, export-ready view of one PB constraint:
// sum(Coeffs[i]*Lits[i]) >= RHS.
type Constraint struct {
	Coeffs []int64
	Lits   []constraint.Literal
	RHS    int64
}

// Constraints snapshots every currently live constraint -- every hard
// constraint plus every removable constraint whose ID has not been
// retired -- in insertion order, for OPB export (vmio.ExportOPB). This is
// the same term set Solve itself compiles into a gophersat problem, minus
// the caller's own per-call assumptions.
func (s *Solver) Constraints() []Constraint {
	out := make([]Constraint, 0, len(s.hard))
	for _, t := range s.hard {
		out = append(out, flatten(t))
	}
	for _, id := range s.order {
		if s.dead[id] {
			continue
		}
		for _, t := range s.byID[id] {
			out = append(out, flatten(t))
		}
	}
	return out
}

// VarCount returns the number of Boolean variables allocated so far.
func (s *Solver) VarCount() int {
	return int(s.nextVar)
}

// flatten reverses the removable-constraint big-M swamping (see
// removable.go's expandOpRemovable) for a still-live term, recovering the
// ungated constraint a caller originally asked for -- exporting the raw
// swamped form would leak the encoding trick and, worse, would silently
// allow the activator itself to be set false in whatever external solver
// reads the OPB file, which is not a valid model of the live constraint.
func flatten(t pbTerm) Constraint {
	coeffs := t.coeffs
	lits := t.lits
	rhs := t.rhs
	if coeffs == nil {
		coeffs = make([]int64, len(lits))
		for i := range coeffs {
			coeffs[i] = 1
		}
	}
	if t.activator != 0 && len(lits) > 0 && lits[len(lits)-1] == t.activator {
		bigM := -coeffs[len(coeffs)-1]
		rhs += bigM
		lits = lits[:len(lits)-1]
		coeffs = coeffs[:len(coeffs)-1]
	}
	return Constraint{Coeffs: append([]int64(nil), coeffs...), Lits: append([]constraint.Literal(nil), lits...), RHS: rhs}
}
