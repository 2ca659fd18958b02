package gia_test

import (
	"testing"
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/gia"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// TestRunSingleObjectiveFindsMinimum exercises gia.Run on a one-objective
// instance where it must behave like plain minimization: the only Pareto
// point is the cheapest feasible assignment.
func TestRunSingleObjectiveFindsMinimum(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	// exactly one of a, b is true
	if err := s.AddClause(a, b); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	if err := s.AddClause(a.Negate(), b.Negate()); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	// objective: 5 if a, 1 if b
	obj := pbopt.Objective{Lits: []constraint.Literal{a, b}, Coeffs: []int64{5, 1}}

	points, err := gia.Run(s, []pbopt.Objective{obj}, nil, time.Second, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected exactly one Pareto point for a single objective, got %d: %v", len(points), points)
	}
	if points[0].Values[0] != 1 {
		t.Errorf("expected the single Pareto point to be the minimum cost 1, got %v", points[0].Values)
	}
}

// TestRunTwoObjectivesProducesFront exercises a genuine trade-off: two
// mutually exclusive choices each win on a different objective, so both
// should surface as separate Pareto points.
func TestRunTwoObjectivesProducesFront(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	if err := s.AddClause(a, b); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	if err := s.AddClause(a.Negate(), b.Negate()); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	objEnergy := pbopt.Objective{Lits: []constraint.Literal{a, b}, Coeffs: []int64{1, 5}}
	objWastage := pbopt.Objective{Lits: []constraint.Literal{a, b}, Coeffs: []int64{5, 1}}

	points, err := gia.Run(s, []pbopt.Objective{objEnergy, objWastage}, nil, time.Second, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected two incomparable Pareto points, got %d: %v", len(points), points)
	}
	seen := map[[2]int64]bool{}
	for _, p := range points {
		seen[[2]int64{p.Values[0], p.Values[1]}] = true
	}
	if !seen[[2]int64{1, 5}] || !seen[[2]int64{5, 1}] {
		t.Errorf("expected points {1,5} and {5,1}, got %v", points)
	}
}
