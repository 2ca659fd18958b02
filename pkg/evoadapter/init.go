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

package evoadapter

import (
	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/numeric"
	"github.com/vmcwm/allocator/pkg/seeder"
)

// InitMode selects one of the §6 contract's five population-seeding
// strategies.
type InitMode int

const (
	// Random assigns every gene to a uniformly random, non-forbidden host.
	Random InitMode = iota
	// RandomPacking places VMs, visited in random order, on the first host
	// of one shared random host order that each VM is not forbidden from.
	// Capacity is not checked, so every VM without forbidden hosts lands on
	// the same host.
	RandomPacking
	// ShuffledFirstFit runs seeder.FFD over a randomly shuffled VM order.
	ShuffledFirstFit
	// ShuffledVMCwM runs seeder.BFD (the engine's own best-fit-decreasing
	// packer) over a randomly shuffled VM order.
	ShuffledVMCwM
	// Mixed draws each individual's mode uniformly from the other four,
	// giving the initial population a blend of seeding strategies.
	Mixed
)

// Initialize builds a population of n Solutions over inst using mode,
// drawing randomness from rng.
func Initialize(inst domain.Instance, p *Problem, mode InitMode, n int, rng numeric.RNG) []Solution {
	pop := make([]Solution, n)
	for i := range pop {
		m := mode
		if mode == Mixed {
			m = InitMode(rng.Intn(int(Mixed)))
		}
		pop[i] = initOne(inst, p, m, rng)
	}
	return pop
}

func initOne(inst domain.Instance, p *Problem, mode InitMode, rng numeric.RNG) Solution {
	switch mode {
	case RandomPacking:
		return randomPacking(inst, p, rng)
	case ShuffledFirstFit:
		return shuffledSeed(inst, p, seeder.FFD, rng)
	case ShuffledVMCwM:
		return shuffledSeed(inst, p, seeder.BFD, rng)
	default:
		return randomSolution(p, rng)
	}
}

func randomSolution(p *Problem, rng numeric.RNG) Solution {
	sol := Solution{Assignment: make([]int, p.VariableCount())}
	for vmIdx := range sol.Assignment {
		const maxAttempts = 8
		host := 0
		for attempt := 0; attempt < maxAttempts && p.HostCount() > 0; attempt++ {
			host = rng.Intn(p.HostCount())
			if !p.Forbidden(vmIdx, host) {
				break
			}
		}
		sol.Assignment[vmIdx] = host
	}
	return sol
}

// randomPacking greedily places each VM, visited in a random order, on the
// first host (in a random order) it is not forbidden from -- ignoring
// capacity, since the evolutionary framework's own fitness function (not
// this seeding step) is what penalizes an overloaded host.
func randomPacking(inst domain.Instance, p *Problem, rng numeric.RNG) Solution {
	sol := Solution{Assignment: make([]int, p.VariableCount())}
	vmOrder := perm(rng, p.VariableCount())
	hostOrder := perm(rng, p.HostCount())
	for _, vmIdx := range vmOrder {
		placed := false
		for _, host := range hostOrder {
			if !p.Forbidden(vmIdx, host) {
				sol.Assignment[vmIdx] = host
				placed = true
				break
			}
		}
		if !placed {
			sol.Assignment[vmIdx] = 0
		}
	}
	return sol
}

// shuffledSeed packs a copy of inst whose job/VM order has been shuffled,
// then reads the resulting mapping back into a Solution. Packing a
// reordered instance, rather than shuffling the mapping result, is what
// makes the "shuffled" seeding modes actually explore different bin
// assignments instead of just relabeling the same deterministic pack.
func shuffledSeed(inst domain.Instance, p *Problem, algo seeder.Algorithm, rng numeric.RNG) Solution {
	shuffled := shuffleInstance(inst, rng)
	mapping, err := seeder.Pack(shuffled, algo)
	sol := Solution{Assignment: make([]int, p.VariableCount())}
	if err != nil {
		return randomSolution(p, rng)
	}
	byVM := make(map[domain.VMID]domain.HostID, len(mapping))
	for _, m := range mapping {
		byVM[m.VM] = m.Host
	}
	for i, vm := range p.vms {
		host, ok := byVM[vm.ID]
		if !ok {
			sol.Assignment[i] = 0
			continue
		}
		sol.Assignment[i] = p.hostIndex[host]
	}
	return sol
}

// perm returns a Fisher-Yates shuffle of 0..n-1 drawn from rng, since
// numeric.RNG's narrow contract (Float64, Intn) has no Perm of its own.
func perm(rng numeric.RNG, n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func shuffleInstance(inst domain.Instance, rng numeric.RNG) domain.Instance {
	vms := append([]domain.VirtualMachine(nil), inst.VMs()...)
	order := perm(rng, len(vms))
	shuffled := make([]domain.VirtualMachine, len(vms))
	for i, idx := range order {
		shuffled[i] = vms[idx]
	}
	return domain.Instance{
		Hosts:            inst.Hosts,
		Jobs:             []domain.Job{{ID: 0, VMs: shuffled}},
		ExistingMapping:  inst.ExistingMapping,
		MigrationBudgetF: inst.MigrationBudgetF,
	}
}
