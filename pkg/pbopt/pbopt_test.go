package pbopt_test

import (
	"testing"
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

func TestMinimizePicksCheapestSatisfyingAssignment(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	c := s.NewVar()
	// At least one of a, b, c must hold.
	if err := s.AddClause(a, b, c); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	obj := pbopt.Objective{Lits: []constraint.Literal{a, b, c}, Coeffs: []int64{5, 1, 3}}

	var seen []int64
	res, err := pbopt.Minimize(s, obj, nil, time.Second, func(cost int64) { seen = append(seen, cost) })
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if res.Status != satsolver.StatusSat {
		t.Fatalf("status = %v, want sat", res.Status)
	}
	if res.BestCost != 1 {
		t.Fatalf("BestCost = %d, want 1 (picking b alone)", res.BestCost)
	}
	if len(seen) == 0 || seen[len(seen)-1] != 1 {
		t.Errorf("onNewBest callback never reported the final best cost 1, got %v", seen)
	}
	if !s.Value(b) || s.Value(a) || s.Value(c) {
		t.Errorf("expected model {a=false,b=true,c=false}, got a=%v b=%v c=%v", s.Value(a), s.Value(b), s.Value(c))
	}
}

func TestMinimizeUnsatWhenHardConstraintsContradict(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	if err := s.AddClause(a); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	if err := s.AddClause(a.Negate()); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	obj := pbopt.Objective{Lits: []constraint.Literal{a}, Coeffs: []int64{1}}
	res, err := pbopt.Minimize(s, obj, nil, time.Second, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if res.Status != satsolver.StatusUnsat {
		t.Fatalf("status = %v, want unsat", res.Status)
	}
}
