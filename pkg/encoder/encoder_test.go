package encoder_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/encoder"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

func bi(n int64) *big.Int { return big.NewInt(n) }

func twoHostInstance() domain.Instance {
	hosts := []domain.PhysicalMachine{
		domain.NewPhysicalMachine(1, bi(10), bi(10), bi(50), bi(200)),
		domain.NewPhysicalMachine(2, bi(10), bi(10), bi(50), bi(200)),
	}
	vm1 := domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 0}, bi(6), bi(6), false, nil)
	vm2 := domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 1}, bi(6), bi(6), false, nil)
	return domain.Instance{
		Hosts: hosts,
		Jobs:  []domain.Job{{ID: 1, VMs: []domain.VirtualMachine{vm1, vm2}}},
	}
}

func TestBuildEncodesFeasibleModel(t *testing.T) {
	inst := twoHostInstance()
	m, err := encoder.Build(inst, encoder.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	status, err := m.Solver.Solve(nil, time.Second, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if status != satsolver.StatusSat {
		t.Fatalf("status = %v, want sat (two 6-cpu/6-mem VMs must split across two 10-cpu/10-mem hosts)", status)
	}

	placedHosts := make(map[domain.HostID]int)
	for _, vmID := range m.VMOrder {
		found := false
		for h, l := range m.X[vmID] {
			if m.Solver.Value(l) {
				if found {
					t.Fatalf("vm %+v placed on more than one host", vmID)
				}
				found = true
				placedHosts[h]++
			}
		}
		if !found {
			t.Fatalf("vm %+v not placed anywhere", vmID)
		}
	}
	for h, n := range placedHosts {
		if n > 1 {
			t.Errorf("host %d holds %d VMs but capacity only allows one 6-cpu/6-mem VM out of 10", h, n)
		}
	}
}

func TestEncodeAntiColocationForcesSplit(t *testing.T) {
	hosts := []domain.PhysicalMachine{
		domain.NewPhysicalMachine(1, bi(100), bi(100), bi(50), bi(200)),
		domain.NewPhysicalMachine(2, bi(100), bi(100), bi(50), bi(200)),
	}
	vm1 := domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 0}, bi(1), bi(1), true, nil)
	vm2 := domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 1}, bi(1), bi(1), true, nil)
	inst := domain.Instance{Hosts: hosts, Jobs: []domain.Job{{ID: 1, VMs: []domain.VirtualMachine{vm1, vm2}}}}

	m, err := encoder.Build(inst, encoder.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	status, err := m.Solver.Solve(nil, time.Second, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if status != satsolver.StatusSat {
		t.Fatalf("status = %v, want sat", status)
	}
	h1 := hostOf(m, vm1.ID)
	h2 := hostOf(m, vm2.ID)
	if h1 == h2 {
		t.Errorf("anti-colocatable VMs placed on the same host %d", h1)
	}
}

func TestEnergyObjectiveMinimizesHostCount(t *testing.T) {
	inst := twoHostInstance()
	// Shrink VMs so both fit on a single host, to verify Minimize prefers
	// consolidating onto the cheaper (already-idle-cost-paid) single host.
	inst.Jobs[0].VMs[0] = domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 0}, bi(4), bi(4), false, nil)
	inst.Jobs[0].VMs[1] = domain.NewVirtualMachine(domain.VMID{JobID: 1, Index: 1}, bi(4), bi(4), false, nil)

	m, err := encoder.Build(inst, encoder.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := pbopt.Minimize(m.Solver, m.Energy, nil, 2*time.Second, nil)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if res.Status != satsolver.StatusSat {
		t.Fatalf("status = %v, want sat", res.Status)
	}
	h1 := hostOf(m, inst.Jobs[0].VMs[0].ID)
	h2 := hostOf(m, inst.Jobs[0].VMs[1].ID)
	if h1 != h2 {
		t.Errorf("expected energy-minimal placement to consolidate both VMs onto one host, got hosts %d and %d", h1, h2)
	}
}

func hostOf(m *encoder.Model, vmID domain.VMID) domain.HostID {
	for h, l := range m.X[vmID] {
		if m.Solver.Value(l) {
			return h
		}
	}
	return 0
}
