package domain_test

import (
	"math/big"
	"testing"

	"github.com/vmcwm/allocator/pkg/domain"
)

func bi(n int64) *big.Int { return big.NewInt(n) }

func TestScaleFractionFloor(t *testing.T) {
	cases := []struct {
		name     string
		total    *big.Int
		fraction float64
		want     int64
	}{
		{"zero fraction", bi(10), 0, 0},
		{"whole fraction", bi(10), 1, 10},
		{"budget scenario 5", bi(10), 0.3, 3},
		{"rounds down", bi(7), 0.5, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := domain.ScaleFractionFloor(c.total, c.fraction)
			if got.Cmp(bi(c.want)) != 0 {
				t.Errorf("ScaleFractionFloor(%v, %v) = %v, want %d", c.total, c.fraction, got, c.want)
			}
		})
	}
}

func TestInstanceValidateRejectsInfeasibleVM(t *testing.T) {
	host := domain.NewPhysicalMachine(0, bi(2), bi(2), bi(10), bi(20))
	vm := domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 1}, bi(4), bi(4), false, nil)
	in := domain.Instance{
		Hosts: []domain.PhysicalMachine{host},
		Jobs:  []domain.Job{{ID: 1, VMs: []domain.VirtualMachine{vm}}},
	}
	if err := in.Validate(); err == nil {
		t.Fatal("expected Validate to reject a VM with no feasible host")
	}
}

func TestInstanceValidateAcceptsFeasible(t *testing.T) {
	host := domain.NewPhysicalMachine(0, bi(10), bi(10), bi(10), bi(20))
	vm := domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 1}, bi(4), bi(4), false, nil)
	in := domain.Instance{
		Hosts: []domain.PhysicalMachine{host},
		Jobs:  []domain.Job{{ID: 1, VMs: []domain.VirtualMachine{vm}}},
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("Validate returned unexpected error: %v", err)
	}
}

func TestMigrationBudgetScenario5(t *testing.T) {
	in := domain.Instance{
		Hosts: []domain.PhysicalMachine{
			domain.NewPhysicalMachine(0, bi(1), bi(6), bi(1), bi(1)),
			domain.NewPhysicalMachine(1, bi(1), bi(4), bi(1), bi(1)),
		},
		MigrationBudgetF: 0.3,
	}
	got := in.MigrationBudget()
	if got.Cmp(bi(3)) != 0 {
		t.Errorf("MigrationBudget() = %v, want 3", got)
	}
}

func TestDominates(t *testing.T) {
	a := domain.ObjectiveVector{Energy: big.NewRat(1, 1), Wastage: big.NewRat(0, 1)}
	b := domain.ObjectiveVector{Energy: big.NewRat(2, 1), Wastage: big.NewRat(0, 1)}
	if !domain.Dominates(a, b) {
		t.Error("expected a to dominate b")
	}
	if domain.Dominates(b, a) {
		t.Error("expected b not to dominate a")
	}
	if domain.Dominates(a, a) {
		t.Error("a should not dominate itself")
	}
}
