package paretomcs_test

import (
	"testing"
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/paretomcs"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

func TestMCSEmptyWhenAlreadySatisfiable(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	if err := s.AddClause(a); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	mcs, err := paretomcs.MCS(s, []constraint.Literal{a, b}, nil, paretomcs.LBX, time.Second)
	if err != nil {
		t.Fatalf("MCS: %v", err)
	}
	if len(mcs) != 0 {
		t.Errorf("expected empty MCS (both a and b are jointly satisfiable), got %v", mcs)
	}
}

func TestMCSFindsConflictingSoftLiteral(t *testing.T) {
	for _, strategy := range []paretomcs.CoreStrategy{paretomcs.LBX, paretomcs.CLD} {
		s := satsolver.New()
		a := s.NewVar()
		b := s.NewVar()
		if err := s.AddClause(a.Negate(), b.Negate()); err != nil { // at most one of a, b
			t.Fatalf("AddClause: %v", err)
		}
		mcs, err := paretomcs.MCS(s, []constraint.Literal{a, b}, nil, strategy, time.Second)
		if err != nil {
			t.Fatalf("MCS (%v): %v", strategy, err)
		}
		if len(mcs) != 1 {
			t.Fatalf("MCS (%v) = %v, want exactly one relaxed literal", strategy, mcs)
		}
	}
}

func TestImproveStepReportsParetoOptimal(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	if err := s.AddClause(a); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	// Single objective: minimize a itself; a is hard-forced true, so its
	// value can never drop below 1 -- current=1 is already optimal.
	obj := pbopt.Objective{Lits: []constraint.Literal{a}, Coeffs: []int64{1}}
	step, err := paretomcs.ImproveStep(s, []pbopt.Objective{obj}, []int64{1}, nil, paretomcs.LBX, time.Second)
	if err != nil {
		t.Fatalf("ImproveStep: %v", err)
	}
	if step.OK {
		t.Errorf("expected OK=false (already Pareto-optimal), got improved=%v point=%v", step.Improved, step.Point)
	}
}

func TestImproveStepFindsBetterPoint(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	obj := pbopt.Objective{Lits: []constraint.Literal{a}, Coeffs: []int64{1}}
	// a is unconstrained (may be true or false); current=1 assumes a=true
	// was the prior point, but a=false (cost 0) is reachable.
	step, err := paretomcs.ImproveStep(s, []pbopt.Objective{obj}, []int64{1}, nil, paretomcs.LBX, time.Second)
	if err != nil {
		t.Fatalf("ImproveStep: %v", err)
	}
	if !step.OK {
		t.Fatalf("expected an improving point to be found")
	}
	if len(step.Improved) != 1 || step.Point[0] != 0 {
		t.Errorf("expected objective 0 to improve to cost 0, got improved=%v point=%v", step.Improved, step.Point)
	}
}
