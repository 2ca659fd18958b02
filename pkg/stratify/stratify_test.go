package stratify_test

import (
	"testing"
	"time"

	"github.com/vmcwm/allocator/pkg/paretomcs"
	"github.com/vmcwm/allocator/pkg/satsolver"
	"github.com/vmcwm/allocator/pkg/stratify"
)

func TestPartitionCountDegeneratesToOne(t *testing.T) {
	if got := stratify.PartitionCount(0, 5, 10); got != 1 {
		t.Errorf("ratio<=0: got %d, want 1", got)
	}
	if got := stratify.PartitionCount(1, 0, 10); got != 1 {
		t.Errorf("distinctWeights==0: got %d, want 1", got)
	}
}

func TestPartitionCountHonorsBothBounds(t *testing.T) {
	got := stratify.PartitionCount(2, 10, 100)
	// byWeights = 10/2 = 5, byLiterals = 100/(2*10) = 5 -> min = 5
	if got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestMergedReductionOrdersHeaviestFirst(t *testing.T) {
	units := []stratify.SoftUnit{
		{Lit: 1, Weight: 1},
		{Lit: 2, Weight: 10},
		{Lit: 3, Weight: 5},
		{Lit: 4, Weight: 8},
	}
	groups := stratify.Partition(stratify.MergedReduction, units, 2, nil)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for _, u := range groups[0] {
		for _, v := range groups[1] {
			if u.Weight < v.Weight {
				t.Errorf("group 0 unit weight %d is lighter than group 1 unit weight %d", u.Weight, v.Weight)
			}
		}
	}
}

func TestRunHardensConfirmedUnitsAcrossMerges(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	// a and b are independently satisfiable together: no conflicting hard
	// constraint, so every soft literal should end up hardened and the
	// correction set empty.
	units := []stratify.SoftUnit{{Lit: a, Weight: 10}, {Lit: b, Weight: 1}}
	partitions := stratify.Partition(stratify.MergedReduction, units, 2, nil)

	mcs, err := stratify.Run(s, partitions, nil, paretomcs.LBX, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mcs) != 0 {
		t.Errorf("expected empty correction set, got %v", mcs)
	}
	if !s.Value(a) || !s.Value(b) {
		t.Errorf("expected both literals hardened true, a=%v b=%v", s.Value(a), s.Value(b))
	}
}

func TestRunFindsConflictAfterMerge(t *testing.T) {
	s := satsolver.New()
	a := s.NewVar()
	b := s.NewVar()
	if err := s.AddClause(a.Negate(), b.Negate()); err != nil {
		t.Fatalf("AddClause: %v", err)
	}
	units := []stratify.SoftUnit{{Lit: a, Weight: 10}, {Lit: b, Weight: 1}}
	partitions := stratify.Partition(stratify.MergedReduction, units, 2, nil)

	mcs, err := stratify.Run(s, partitions, nil, paretomcs.LBX, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mcs) != 1 {
		t.Fatalf("expected exactly one relaxed literal (a and b can't both hold), got %v", mcs)
	}
}
