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

// Package evoadapter exposes the evolutionary-operator contract spec.md §6
// describes for an external optimization framework: the problem's
// dimensionality, objective evaluation, normalization, and bounds-checked
// mutation, over a VMCwM instance encoded for placement search. It does not
// implement an evolutionary algorithm -- no crossover, no selection, no
// NSGA-II outer loop belongs here; those are the external collaborator's
// job. reference.go carries a minimal driver that proves the contract is
// drivable end to end, exercised only by this package's own tests.
package evoadapter

import (
	"math/big"

	"github.com/vmcwm/allocator/pkg/domain"
)

// Solution is one candidate placement: one host index (into Problem.hosts)
// per VM, aligned with Problem.vms. It is the evolutionary framework's
// chromosome representation -- an integer-per-VM encoding, not the
// per-(VM,host) bit vector the SAT encoder uses, since an external GA
// mutates and crosses over a fixed-length integer vector far more
// naturally than a one-hot bit matrix.
type Solution struct {
	Assignment []int
}

// Problem adapts a domain.Instance to the §6 evolutionary-operator
// contract: VariableCount, ObjectiveCount, Evaluate, Normalize, and
// bounds-checked mutation (see Mutate in mutate.go).
type Problem struct {
	vms   []domain.VirtualMachine
	hosts []domain.PhysicalMachine

	hostIndex map[domain.HostID]int
}

// NewProblem builds a Problem over every VM and host of inst, in the same
// job/index and host-ID order the encoder uses, so a Solution's host
// indices line up with inst.Hosts.
func NewProblem(inst domain.Instance) *Problem {
	p := &Problem{
		vms:       inst.VMs(),
		hosts:     append([]domain.PhysicalMachine(nil), inst.Hosts...),
		hostIndex: make(map[domain.HostID]int, len(inst.Hosts)),
	}
	for i, h := range p.hosts {
		p.hostIndex[h.ID] = i
	}
	return p
}

// VariableCount is the chromosome length: one gene per VM.
func (p *Problem) VariableCount() int {
	return len(p.vms)
}

// ObjectiveCount is fixed at 2 (energy, wastage): migration is omitted
// from the evolutionary contract because a GA population has no single
// "previous assignment" to migrate from until one generation is chosen as
// the accepted solution, a decision this thin adapter leaves to its
// caller.
func (p *Problem) ObjectiveCount() int {
	return 2
}

// Evaluate returns (energy, wastage) for sol, computed directly over
// domain's big.Int capacities rather than through the PB encoding -- an
// evolutionary framework evaluates thousands of candidates per generation
// and cannot afford a SAT solve per candidate.
func (p *Problem) Evaluate(sol Solution) []float64 {
	used := make([]bool, len(p.hosts))
	cpuUsed := make([]*big.Int, len(p.hosts))
	memUsed := make([]*big.Int, len(p.hosts))
	for i := range p.hosts {
		cpuUsed[i] = new(big.Int)
		memUsed[i] = new(big.Int)
	}

	for vmIdx, hostIdx := range sol.Assignment {
		if hostIdx < 0 || hostIdx >= len(p.hosts) {
			continue
		}
		used[hostIdx] = true
		vm := p.vms[vmIdx]
		cpuUsed[hostIdx].Add(cpuUsed[hostIdx], vm.CPU)
		memUsed[hostIdx].Add(memUsed[hostIdx], vm.Mem)
	}

	var energy, wastage float64
	for i, h := range p.hosts {
		if !used[i] {
			continue
		}
		idle := bigToFloat(h.IdlePow)
		max := bigToFloat(h.MaxPow)
		cpuCap := bigToFloat(h.CPU)
		cpuLoad := bigToFloat(cpuUsed[i])
		if cpuCap > 0 {
			energy += idle + (max-idle)*(cpuLoad/cpuCap)
		} else {
			energy += idle
		}

		memCap := bigToFloat(h.Mem)
		wastage += (cpuCap + memCap) - (cpuLoad + bigToFloat(memUsed[i]))
	}

	return []float64{energy, wastage}
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// HostCount returns the number of hosts a gene may index into -- the
// bound Mutate and the initialization modes draw from.
func (p *Problem) HostCount() int {
	return len(p.hosts)
}

// Forbidden reports whether placing the vmIdx'th VM on the hostIdx'th
// host violates a forbidden-host constraint.
func (p *Problem) Forbidden(vmIdx, hostIdx int) bool {
	if hostIdx < 0 || hostIdx >= len(p.hosts) {
		return true
	}
	return p.vms[vmIdx].Forbidden(p.hosts[hostIdx].ID)
}
