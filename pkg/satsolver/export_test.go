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

package satsolver_test

import (
	"testing"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

func TestConstraintsIncludesHardClause(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	if err := s.AddClause(a, b); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	cs := s.Constraints()
	if len(cs) != 1 {
		t.Fatalf("got %d constraints, want 1", len(cs))
	}
	if len(cs[0].Lits) != 2 || cs[0].RHS != 1 {
		t.Fatalf("hard clause flattened wrong: %+v", cs[0])
	}
}

func TestConstraintsReversesRemovableBigM(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	if _, err := s.AddRemovablePB(constraint.OpGE, []int64{2, 3}, []constraint.Literal{a, b}, 4); err != nil {
		t.Fatalf("AddRemovablePB: %v", err)
	}
	cs := s.Constraints()
	if len(cs) != 1 {
		t.Fatalf("got %d constraints, want 1", len(cs))
	}
	c := cs[0]
	if len(c.Lits) != 2 || len(c.Coeffs) != 2 {
		t.Fatalf("expected the activator term stripped, got %+v", c)
	}
	if c.Coeffs[0] != 2 || c.Coeffs[1] != 3 || c.RHS != 4 {
		t.Fatalf("expected the original 2a+3b >= 4 restored, got %+v", c)
	}
}

func TestConstraintsSkipsRemovedConstraints(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	id, err := s.AddRemovablePB(constraint.OpGE, []int64{1, 1}, []constraint.Literal{a, b}, 2)
	if err != nil {
		t.Fatalf("AddRemovablePB: %v", err)
	}
	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if cs := s.Constraints(); len(cs) != 0 {
		t.Fatalf("expected a removed constraint to be excluded, got %+v", cs)
	}
}
