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

import (
	"fmt"

	"github.com/vmcwm/allocator/pkg/constraint"
)

// AddRemovablePB asserts op(sum(coeffs[i]*lits[i]), rhs) gated by a fresh
// activator literal: the constraint only binds while its ConstraintID has
// not been passed to Remove. Vacuity is achieved by giving the activator a
// coefficient large enough to swamp the constraint's own range, so forcing
// it false can never be contradicted by the rest of the term (strategy 2
// of spec.md §4.1 -- gophersat has no native removable-constraint handle
// to fall back to strategy 1).
func (s *Solver) AddRemovablePB(op constraint.Op, coeffs []int64, lits []constraint.Literal, rhs int64) (ConstraintID, error) {
	if len(coeffs) != len(lits) {
		return 0, fmt.Errorf("satsolver: %d coeffs for %d literals", len(coeffs), len(lits))
	}
	a := s.NewVar()
	bigM := bigEnoughM(coeffs, rhs)
	terms, err := expandOpRemovable(op, coeffs, lits, rhs, bigM, a)
	if err != nil {
		return 0, err
	}
	return s.register(terms), nil
}

// AddRemovableCardinality is AddRemovablePB with all-unit coefficients.
func (s *Solver) AddRemovableCardinality(op constraint.Op, lits []constraint.Literal, k int) (ConstraintID, error) {
	coeffs := make([]int64, len(lits))
	for i := range coeffs {
		coeffs[i] = 1
	}
	return s.AddRemovablePB(op, coeffs, lits, int64(k))
}

// AddRemovableClause asserts the disjunction of lits only while the
// returned ConstraintID stays live.
func (s *Solver) AddRemovableClause(lits ...constraint.Literal) (ConstraintID, error) {
	return s.AddRemovableCardinality(constraint.OpGE, lits, 1)
}

// AddRemovableConjunction asserts every lit only while the returned
// ConstraintID stays live: each lit becomes its own unit term, all sharing
// one activator so a single Remove call retracts the whole conjunction.
func (s *Solver) AddRemovableConjunction(lits ...constraint.Literal) (ConstraintID, error) {
	a := s.NewVar()
	bigM := bigEnoughM([]int64{1}, 1)
	terms := make([]pbTerm, len(lits))
	for i, l := range lits {
		terms[i] = pbTerm{lits: []constraint.Literal{l, a}, coeffs: []int64{1, -bigM}, rhs: 1 - bigM, activator: a}
	}
	return s.register(terms), nil
}

// AddRemovableXOR asserts lits[0] xor ... xor lits[n-1] == parity only
// while the returned ConstraintID stays live. The parity-gate tree itself
// (the auxiliary variable definitions) stays hard: only the final
// root-equals-parity assertion is gated, since the gates are unconditional
// equivalences that do no harm left behind after removal.
func (s *Solver) AddRemovableXOR(lits []constraint.Literal, parity bool) (ConstraintID, error) {
	root, err := constraint.ComputeXORRoot(s, lits)
	if err != nil {
		return 0, err
	}
	want := root
	if !parity {
		want = root.Negate()
	}
	return s.AddRemovableClause(want)
}

// Activator returns the Boolean literal gating a removable constraint: true
// forces it live, false (the state Remove leaves it in) makes it vacuous.
// Algorithms that need to treat a removable constraint as a soft goal
// (paretomcs' per-objective improvement literals, stratify's partitioned
// soft clauses) use this to get a handle to assume or to feed into an MCS
// extraction, rather than re-deriving it.
func (s *Solver) Activator(id ConstraintID) constraint.Literal {
	ts := s.byID[id]
	if len(ts) == 0 {
		return 0
	}
	return ts[0].activator
}

// Remove permanently retracts a removable constraint: its activator is
// hardened false on every subsequent Solve call. Removal is irreversible
// by design (spec.md §4.1); callers that need to reinstate a constraint
// add it again under a fresh ConstraintID.
func (s *Solver) Remove(id ConstraintID) error {
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("satsolver: unknown constraint id %d", id)
	}
	s.dead[id] = true
	return nil
}

func (s *Solver) register(terms []pbTerm) ConstraintID {
	s.nextID++
	id := ConstraintID(s.nextID)
	s.byID[id] = terms
	s.order = append(s.order, id)
	return id
}

// expandOpRemovable mirrors expandOp but appends the activator literal to
// the term itself, with whatever sign makes "activator == false" vacuous:
// a GtEq (>=) term is swamped by subtracting bigM*activator, an LE term
// (first negated into GtEq form) the same way.
func expandOpRemovable(op constraint.Op, coeffs []int64, lits []constraint.Literal, rhs int64, bigM int64, activator constraint.Literal) ([]pbTerm, error) {
	op, rhs = constraint.AdjustedRHS(op, rhs)
	switch op {
	case constraint.OpGE:
		gatedLits := append(append([]constraint.Literal(nil), lits...), activator)
		gatedCoeffs := append(append([]int64(nil), coeffs...), -bigM)
		return []pbTerm{{lits: gatedLits, coeffs: gatedCoeffs, rhs: rhs - bigM, activator: activator}}, nil
	case constraint.OpLE:
		gatedLits := append(append([]constraint.Literal(nil), lits...), activator)
		gatedCoeffs := append(negate(coeffs), -bigM)
		return []pbTerm{{lits: gatedLits, coeffs: gatedCoeffs, rhs: -rhs - bigM, activator: activator}}, nil
	case constraint.OpEQ:
		ge, err := expandOpRemovable(constraint.OpGE, coeffs, lits, rhs, bigM, activator)
		if err != nil {
			return nil, err
		}
		le, err := expandOpRemovable(constraint.OpLE, coeffs, lits, rhs, bigM, activator)
		if err != nil {
			return nil, err
		}
		return append(ge, le...), nil
	default:
		return nil, fmt.Errorf("satsolver: unexpected op %v after AdjustedRHS", op)
	}
}

// bigEnoughM returns a coefficient magnitude guaranteed to swamp the
// constraint's own possible range, so forcing the activator false always
// makes the gated term vacuous regardless of the other literals' binding.
func bigEnoughM(coeffs []int64, rhs int64) int64 {
	var sum int64
	for _, c := range coeffs {
		if c < 0 {
			sum -= c
		} else {
			sum += c
		}
	}
	if rhs < 0 {
		sum -= rhs
	} else {
		sum += rhs
	}
	return sum + 1
}
