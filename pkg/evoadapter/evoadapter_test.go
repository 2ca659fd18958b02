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

package evoadapter_test

import (
	"math/big"
	"testing"

	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/evoadapter"
	"github.com/vmcwm/allocator/pkg/numeric"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func threeHostInstance() domain.Instance {
	return domain.Instance{
		Hosts: []domain.PhysicalMachine{
			domain.NewPhysicalMachine(0, bi(10), bi(10), bi(50), bi(100)),
			domain.NewPhysicalMachine(1, bi(10), bi(10), bi(50), bi(100)),
			domain.NewPhysicalMachine(2, bi(10), bi(10), bi(50), bi(100)),
		},
		Jobs: []domain.Job{{ID: 0, VMs: []domain.VirtualMachine{
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 0}, bi(4), bi(4), false, nil),
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 1}, bi(4), bi(4), false, nil),
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 2}, bi(4), bi(4), false, []domain.HostID{0}),
		}}},
	}
}

func TestProblemDimensions(t *testing.T) {
	p := evoadapter.NewProblem(threeHostInstance())
	if p.VariableCount() != 3 {
		t.Errorf("VariableCount: got %d want 3", p.VariableCount())
	}
	if p.ObjectiveCount() != 2 {
		t.Errorf("ObjectiveCount: got %d want 2", p.ObjectiveCount())
	}
	if p.HostCount() != 3 {
		t.Errorf("HostCount: got %d want 3", p.HostCount())
	}
}

func TestEvaluateIsZeroWhenNoHostsUsed(t *testing.T) {
	inst := domain.Instance{Hosts: []domain.PhysicalMachine{domain.NewPhysicalMachine(0, bi(10), bi(10), bi(50), bi(100))}}
	p := evoadapter.NewProblem(inst)
	values := p.Evaluate(evoadapter.Solution{})
	if values[0] != 0 || values[1] != 0 {
		t.Errorf("expected zero objectives with no VMs, got %+v", values)
	}
}

func TestEvaluateChargesOnlyUsedHosts(t *testing.T) {
	p := evoadapter.NewProblem(threeHostInstance())
	allOnHostOne := evoadapter.Solution{Assignment: []int{1, 1, 1}}
	values := p.Evaluate(allOnHostOne)
	if values[0] <= 0 {
		t.Errorf("expected positive energy when a host is used, got %v", values[0])
	}
}

func TestMutateRespectsForbiddenHosts(t *testing.T) {
	p := evoadapter.NewProblem(threeHostInstance())
	rng := numeric.NewSeeded(7)
	sol := evoadapter.Solution{Assignment: []int{1, 1, 1}}
	for i := 0; i < 50; i++ {
		sol = p.Mutate(sol, rng)
		if p.Forbidden(2, sol.Assignment[2]) {
			t.Fatalf("mutation placed forbidden-hosted VM 2 on host %d", sol.Assignment[2])
		}
	}
}

func TestNormalizeHandlesDegenerateRange(t *testing.T) {
	n := evoadapter.NewNormalizer([]float64{5, 5}, []float64{5, 5})
	out := n.Normalize([]float64{5, 5})
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("expected zero-range normalize to 0, got %+v", out)
	}
}

func TestNormalizeScalesIntoUnitRange(t *testing.T) {
	n := evoadapter.NewNormalizer([]float64{0}, []float64{10})
	out := n.Normalize([]float64{5})
	if out[0] != 0.5 {
		t.Errorf("expected 0.5, got %v", out[0])
	}
}

func TestInitializeEveryModeProducesFullLengthSolutions(t *testing.T) {
	inst := threeHostInstance()
	p := evoadapter.NewProblem(inst)
	rng := numeric.NewSeeded(3)
	for _, mode := range []evoadapter.InitMode{evoadapter.Random, evoadapter.RandomPacking, evoadapter.ShuffledFirstFit, evoadapter.ShuffledVMCwM, evoadapter.Mixed} {
		pop := evoadapter.Initialize(inst, p, mode, 4, rng)
		if len(pop) != 4 {
			t.Fatalf("mode %d: expected 4 individuals, got %d", mode, len(pop))
		}
		for _, sol := range pop {
			if len(sol.Assignment) != 3 {
				t.Errorf("mode %d: expected 3 genes, got %d", mode, len(sol.Assignment))
			}
		}
	}
}

func TestRunReturnsANonEmptyFront(t *testing.T) {
	inst := threeHostInstance()
	p := evoadapter.NewProblem(inst)
	rng := numeric.NewSeeded(11)
	front := evoadapter.Run(inst, p, evoadapter.Random, 10, 5, rng)
	if len(front) == 0 {
		t.Fatal("expected a non-empty Pareto front after 5 generations")
	}
}
