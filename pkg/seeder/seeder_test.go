package seeder_test

import (
	"math/big"
	"testing"

	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/seeder"
	"github.com/vmcwm/allocator/pkg/vmerr"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func twoHostInstance() domain.Instance {
	return domain.Instance{
		Hosts: []domain.PhysicalMachine{
			domain.NewPhysicalMachine(0, bi(10), bi(10), bi(50), bi(100)),
			domain.NewPhysicalMachine(1, bi(10), bi(10), bi(50), bi(100)),
		},
		Jobs: []domain.Job{{ID: 0, VMs: []domain.VirtualMachine{
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 0}, bi(6), bi(6), false, nil),
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 1}, bi(6), bi(6), false, nil),
		}}},
	}
}

func TestFFDPlacesEveryVM(t *testing.T) {
	inst := twoHostInstance()
	mappings, err := seeder.Pack(inst, seeder.FFD)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(mappings))
	}
	if mappings[0].Host == mappings[1].Host {
		t.Errorf("expected the two 6/6 VMs to land on distinct hosts, got both on %d", mappings[0].Host)
	}
}

func TestBFDPlacesEveryVM(t *testing.T) {
	inst := twoHostInstance()
	mappings, err := seeder.Pack(inst, seeder.BFD)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(mappings))
	}
}

func TestPackRespectsAntiColocation(t *testing.T) {
	inst := domain.Instance{
		Hosts: []domain.PhysicalMachine{
			domain.NewPhysicalMachine(0, bi(10), bi(10), bi(50), bi(100)),
		},
		Jobs: []domain.Job{{ID: 0, VMs: []domain.VirtualMachine{
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 0}, bi(1), bi(1), true, nil),
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 1}, bi(1), bi(1), true, nil),
		}}},
	}
	if _, err := seeder.Pack(inst, seeder.FFD); err != vmerr.ErrHeuristicReductionFailed {
		t.Errorf("expected ErrHeuristicReductionFailed (only one host, two anti-colocatable VMs), got %v", err)
	}
}

func TestPackFailsWhenNoHostFits(t *testing.T) {
	inst := domain.Instance{
		Hosts: []domain.PhysicalMachine{
			domain.NewPhysicalMachine(0, bi(1), bi(1), bi(50), bi(100)),
		},
		Jobs: []domain.Job{{ID: 0, VMs: []domain.VirtualMachine{
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 0}, bi(100), bi(100), false, nil),
		}}},
	}
	if _, err := seeder.Pack(inst, seeder.BFD); err != vmerr.ErrHeuristicReductionFailed {
		t.Errorf("expected ErrHeuristicReductionFailed, got %v", err)
	}
}
