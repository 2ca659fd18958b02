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

// Package seeder provides deterministic First-Fit/Best-Fit-Decreasing
// bin-packers used as the reducer's heuristic seed (spec.md §4.8) and as
// evolutionary-adapter initialization modes. Both variants pack VMs largest
// first; they differ only in which feasible host a VM lands on.
package seeder

import (
	"math/big"
	"sort"

	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/vmerr"
)

// Algorithm selects the bin-packing heuristic Pack runs.
type Algorithm int

const (
	// FFD (First-Fit Decreasing) places each VM, largest first, on the
	// first host (in ID order) it fits on.
	FFD Algorithm = iota
	// BFD (Best-Fit Decreasing) prefers the already-used host that leaves
	// the least normalized slack, falling back to the cheapest-to-idle
	// unused host only when no used host fits.
	BFD
)

type hostState struct {
	host      domain.PhysicalMachine
	cpuLeft   *big.Int
	memLeft   *big.Int
	used      bool
	antiGroup map[int]bool // job IDs with an anti-colocatable VM already on this host
}

// Pack assigns every VM in inst to a host, returning the full mapping list
// (ExistingMapping is ignored; Pack always starts from scratch). It returns
// vmerr.ErrHeuristicReductionFailed if any VM cannot be placed.
func Pack(inst domain.Instance, algo Algorithm) ([]domain.Mapping, error) {
	states := make([]*hostState, len(inst.Hosts))
	byID := make(map[domain.HostID]*hostState, len(inst.Hosts))
	for i, h := range inst.Hosts {
		st := &hostState{
			host:      h,
			cpuLeft:   new(big.Int).Set(h.CPU),
			memLeft:   new(big.Int).Set(h.Mem),
			antiGroup: make(map[int]bool),
		}
		states[i] = st
		byID[h.ID] = st
	}
	// Ascending order of idle power per unit of capacity: the cheapest host
	// to bring online, consulted by BFD when no active host fits.
	activationOrder := append([]*hostState(nil), states...)
	sort.SliceStable(activationOrder, func(i, j int) bool {
		return idleEfficiency(activationOrder[i].host).Cmp(idleEfficiency(activationOrder[j].host)) < 0
	})

	vms := sortedBySizeDesc(inst.VMs())

	mappings := make([]domain.Mapping, 0, len(vms))
	for _, vm := range vms {
		var target *hostState
		switch algo {
		case BFD:
			target = bestFit(states, activationOrder, vm)
		default:
			target = firstFit(states, vm)
		}
		if target == nil {
			return nil, vmerr.ErrHeuristicReductionFailed
		}
		target.cpuLeft.Sub(target.cpuLeft, vm.CPU)
		target.memLeft.Sub(target.memLeft, vm.Mem)
		target.used = true
		if vm.AntiColocatable {
			target.antiGroup[vm.ID.JobID] = true
		}
		mappings = append(mappings, domain.Mapping{VM: vm.ID, Host: target.host.ID})
	}
	return mappings, nil
}

func fits(st *hostState, vm domain.VirtualMachine) bool {
	if vm.Forbidden(st.host.ID) {
		return false
	}
	if vm.AntiColocatable && st.antiGroup[vm.ID.JobID] {
		return false
	}
	return st.cpuLeft.Cmp(vm.CPU) >= 0 && st.memLeft.Cmp(vm.Mem) >= 0
}

func firstFit(states []*hostState, vm domain.VirtualMachine) *hostState {
	for _, st := range states {
		if fits(st, vm) {
			return st
		}
	}
	return nil
}

// bestFit mirrors bestfit.go's two-phase strategy: prefer an already-used
// host, picking the one with the least normalized leftover capacity; only
// when none fits does it activate a new host, cheapest-to-idle first.
func bestFit(states, activationOrder []*hostState, vm domain.VirtualMachine) *hostState {
	var best *hostState
	var bestSlack *big.Rat
	for _, st := range states {
		if !st.used || !fits(st, vm) {
			continue
		}
		slack := normalizedSlack(st)
		if best == nil || slack.Cmp(bestSlack) < 0 {
			best, bestSlack = st, slack
		}
	}
	if best != nil {
		return best
	}
	for _, st := range activationOrder {
		if !st.used && fits(st, vm) {
			return st
		}
	}
	return nil
}

// normalizedSlack is leftover CPU plus leftover memory, each as a fraction
// of the host's own capacity, so hosts of different sizes compare fairly.
func normalizedSlack(st *hostState) *big.Rat {
	slack := new(big.Rat)
	if st.host.CPU.Sign() > 0 {
		slack.Add(slack, new(big.Rat).SetFrac(st.cpuLeft, st.host.CPU))
	}
	if st.host.Mem.Sign() > 0 {
		slack.Add(slack, new(big.Rat).SetFrac(st.memLeft, st.host.Mem))
	}
	return slack
}

// idleEfficiency is idle power per unit of total capacity: the BFD
// cold-start activation order's cost proxy, in place of bestfit.go's
// dollar cost-per-hour (VMCwM hosts have no cost field, only power).
func idleEfficiency(h domain.PhysicalMachine) *big.Rat {
	capacity := new(big.Int).Add(h.CPU, h.Mem)
	if capacity.Sign() <= 0 {
		return new(big.Rat).SetInt64(0)
	}
	return new(big.Rat).SetFrac(h.IdlePow, capacity)
}

func sortedBySizeDesc(vms []domain.VirtualMachine) []domain.VirtualMachine {
	sorted := append([]domain.VirtualMachine(nil), vms...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si := new(big.Int).Add(sorted[i].CPU, sorted[i].Mem)
		sj := new(big.Int).Add(sorted[j].CPU, sorted[j].Mem)
		return si.Cmp(sj) > 0
	})
	return sorted
}
