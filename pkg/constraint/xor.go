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

package constraint

import "fmt"

// EncodeXOR asserts, via a, that lits[0] xor ... xor lits[n-1] == parity,
// using a balanced binary tree of 2-input parity gates with auxiliary
// variables, each gate contributing four clauses (spec.md §4.1).
//
// A 2-input parity gate "g == l1 xor l2" is the conjunction of:
//
//	(¬l1 ∨ ¬l2 ∨ ¬g) (l1 ∨ l2 ∨ ¬g) (l1 ∨ ¬l2 ∨ g) (¬l1 ∨ l2 ∨ g)
//
// The tree combines leaves pairwise, introducing one auxiliary gate output
// per internal node, until a single literal representing the whole XOR
// remains; that literal is then asserted equal to parity via a unit clause.
func EncodeXOR(a Aggregator, lits []Literal, parity bool) error {
	root, err := ComputeXORRoot(a, lits)
	if err != nil {
		return err
	}
	if parity {
		return a.AddClause(root)
	}
	return a.AddClause(root.Negate())
}

// ComputeXORRoot builds the parity-gate tree and returns the literal that
// is true iff lits[0] xor ... xor lits[n-1] holds, without yet asserting
// anything about its value. Callers that need the constraint to be
// removable (satsolver's removable XOR) assert the root themselves, ORed
// with an activator's negation.
func ComputeXORRoot(a Aggregator, lits []Literal) (Literal, error) {
	if len(lits) == 0 {
		return 0, fmt.Errorf("constraint: XOR over zero literals is undefined")
	}
	level := append([]Literal(nil), lits...)
	for len(level) > 1 {
		next := make([]Literal, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i]) // odd one out rides to the next level unpaired
				continue
			}
			gate, err := xorGate(a, level[i], level[i+1])
			if err != nil {
				return 0, err
			}
			next = append(next, gate)
		}
		level = next
	}
	return level[0], nil
}

// xorGate introduces a fresh variable g == l1 xor l2 and returns it.
func xorGate(a Aggregator, l1, l2 Literal) (Literal, error) {
	g := a.NewVar()
	clauses := [][]Literal{
		{l1.Negate(), l2.Negate(), g.Negate()},
		{l1, l2, g.Negate()},
		{l1, l2.Negate(), g},
		{l1.Negate(), l2, g},
	}
	for _, c := range clauses {
		if err := a.AddClause(c...); err != nil {
			return 0, err
		}
	}
	return g, nil
}
