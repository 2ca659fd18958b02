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

// Package constraint defines the abstract sink every PB-SAT producer writes
// to: Boolean variable creation, clauses, cardinality constraints,
// pseudo-Boolean constraints (integer and rational coefficients), plain
// conjunctions and XOR constraints. satsolver.Solver is the concrete,
// removable-constraint-capable implementation; this package stays solver
// agnostic so the encoder and algorithms only ever depend on the interface.
package constraint

import (
	"fmt"
	"math"
	"math/big"

	"github.com/vmcwm/allocator/pkg/numeric"
)

// Literal is a signed reference to a Boolean variable: Literal(v) is the
// positive occurrence of variable v (v >= 1), Literal(-v) its negation.
// Literal(0) is invalid and adding it is a programming error (spec.md §4.1).
type Literal int32

// Var returns the unsigned variable number of a literal.
func (l Literal) Var() int32 {
	if l < 0 {
		return int32(-l)
	}
	return int32(l)
}

// Negate returns the complementary literal.
func (l Literal) Negate() Literal { return -l }

// Positive reports whether l is an unnegated occurrence of its variable.
func (l Literal) Positive() bool { return l > 0 }

// Op is the relational operator of a cardinality or PB constraint.
type Op int

const (
	OpLE Op = iota // <=
	OpGE           // >=
	OpEQ           // =
	OpLT           // strict <, encoded as <= (rhs-1)
	OpGT           // strict >, encoded as >= (rhs+1)
)

// Aggregator is the abstract constraint sink of spec.md §4.1.
type Aggregator interface {
	// NewVar allocates and returns a fresh, unconstrained Boolean variable
	// as its positive literal.
	NewVar() Literal

	// AddClause asserts the disjunction of lits.
	AddClause(lits ...Literal) error

	// AddCardinality asserts op(sum(lits), k): a cardinality constraint is a
	// PB constraint whose coefficients are all 1.
	AddCardinality(op Op, lits []Literal, k int) error

	// AddPB asserts op(sum(coeffs[i]*lits[i]), rhs) over integer
	// coefficients. len(coeffs) must equal len(lits).
	AddPB(op Op, coeffs []int64, lits []Literal, rhs int64) error

	// AddRationalPB asserts the same relation over rational coefficients,
	// scaled to the smallest integer multiple that preserves the model set
	// (factor = 10^max(scale), spec.md §4.1) before delegating to AddPB.
	AddRationalPB(op Op, coeffs []*big.Rat, lits []Literal, rhs *big.Rat) error

	// AddConjunction asserts that every lit holds, decomposed into one unit
	// clause per literal.
	AddConjunction(lits ...Literal) error

	// AddXOR asserts lits[0] xor lits[1] xor ... xor lits[n-1] == parity,
	// encoded via a balanced binary tree of parity gates (see xor.go).
	AddXOR(lits []Literal, parity bool) error
}

// AddRationalPBDefault is the shared implementation AddRationalPB
// delegates to: it is exported so alternative Aggregator implementations
// (e.g. a dry-run validator) can reuse the scaling logic without
// depending on satsolver.
func AddRationalPBDefault(a Aggregator, op Op, coeffs []*big.Rat, lits []Literal, rhs *big.Rat) error {
	if len(coeffs) != len(lits) {
		return fmt.Errorf("constraint: %d coeffs for %d literals", len(coeffs), len(lits))
	}
	intCoeffs, intRHS := numeric.ScaleToInteger(numeric.RationalConstraint{Coeffs: coeffs, RHS: rhs})
	scaled := make([]int64, len(intCoeffs))
	for i, c := range intCoeffs {
		v, err := Int64Checked(c)
		if err != nil {
			return fmt.Errorf("constraint: scaled coefficient %d: %w", i, err)
		}
		scaled[i] = v
	}
	rhsVal, err := Int64Checked(intRHS)
	if err != nil {
		return fmt.Errorf("constraint: scaled rhs: %w", err)
	}
	return a.AddPB(op, scaled, lits, rhsVal)
}

// Int64Checked narrows a big.Int to int64, failing fast instead of silently
// wrapping -- spec.md §9 Open Question (b) requires this explicit overflow
// check for any cardinality/PB right-hand side or coefficient.
func Int64Checked(n *big.Int) (int64, error) {
	if !n.IsInt64() {
		return 0, fmt.Errorf("constraint: %v overflows int64", n)
	}
	v := n.Int64()
	if v > math.MaxInt64 || v < math.MinInt64 {
		return 0, fmt.Errorf("constraint: %v out of int64 range", n)
	}
	return v, nil
}

// AddConjunctionDefault decomposes a conjunction into unit clauses, shared
// by implementations that have nothing smarter to offer.
func AddConjunctionDefault(a Aggregator, lits ...Literal) error {
	for _, l := range lits {
		if err := a.AddClause(l); err != nil {
			return err
		}
	}
	return nil
}

// AdjustedRHS shifts an operator's right-hand side so strict operators
// (OpLT, OpGT) become non-strict, per spec.md §4.1 ("strict < and > via ±1
// on the right-hand side").
func AdjustedRHS(op Op, rhs int64) (Op, int64) {
	switch op {
	case OpLT:
		return OpLE, rhs - 1
	case OpGT:
		return OpGE, rhs + 1
	default:
		return op, rhs
	}
}
