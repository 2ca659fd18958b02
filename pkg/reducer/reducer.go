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

// Package reducer implements the heuristic host-set reduction of spec.md
// §4.8: run a fast deterministic bin-packer once to find a feasible
// assignment, shrink the instance down to the hosts it actually used, and
// rescale the migration budget to compensate for hosts that were dropped.
package reducer

import (
	"math/big"

	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/seeder"
)

// Seeder produces an initial feasible assignment for inst, or
// vmerr.ErrHeuristicReductionFailed if it can't place every VM. Satisfied
// by seeder.Pack with either seeder.FFD or seeder.BFD.
type Seeder func(inst domain.Instance) ([]domain.Mapping, error)

// FFD and BFD adapt seeder.Pack's two algorithms to the Seeder contract.
func FFD(inst domain.Instance) ([]domain.Mapping, error) { return seeder.Pack(inst, seeder.FFD) }
func BFD(inst domain.Instance) ([]domain.Mapping, error) { return seeder.Pack(inst, seeder.BFD) }

// Reduce runs seed once, restricts inst to only the hosts it used, and
// rescales the migration budget fraction: for every VM originally on a
// dropped host, its memory share of total host memory is subtracted from
// the fraction; the remainder is then rescaled by
// originalTotalMemory/usedTotalMemory and clipped to [0,1], so the budget's
// meaning (a fraction of the instance it now applies to) is preserved.
func Reduce(inst domain.Instance, seed Seeder) (domain.Instance, error) {
	mappings, err := seed(inst)
	if err != nil {
		return domain.Instance{}, err
	}

	used := make(map[domain.HostID]bool)
	for _, m := range mappings {
		used[m.Host] = true
	}

	reducedHosts := make([]domain.PhysicalMachine, 0, len(used))
	for _, h := range inst.Hosts {
		if used[h.ID] {
			reducedHosts = append(reducedHosts, h)
		}
	}

	originalTotal := inst.TotalHostMemory()
	budget := new(big.Rat).SetFloat64(inst.MigrationBudgetF)
	if budget == nil {
		budget = new(big.Rat)
	}
	if originalTotal.Sign() > 0 {
		for _, h := range inst.Hosts {
			if used[h.ID] {
				continue
			}
			for _, m := range inst.ExistingMapping {
				if m.Host != h.ID {
					continue
				}
				if vm, ok := findVM(inst, m.VM); ok {
					share := new(big.Rat).SetFrac(vm.Mem, originalTotal)
					budget.Sub(budget, share)
				}
			}
		}
	}

	reducedTotal := new(big.Int)
	for _, h := range reducedHosts {
		reducedTotal.Add(reducedTotal, h.Mem)
	}
	if reducedTotal.Sign() > 0 && originalTotal.Sign() > 0 {
		rescale := new(big.Rat).SetFrac(originalTotal, reducedTotal)
		budget.Mul(budget, rescale)
	}
	budget = clip01(budget)

	budgetF, _ := budget.Float64()

	existingReduced := make([]domain.Mapping, 0, len(inst.ExistingMapping))
	for _, m := range inst.ExistingMapping {
		if used[m.Host] {
			existingReduced = append(existingReduced, m)
		}
	}

	return domain.Instance{
		Hosts:            reducedHosts,
		Jobs:             inst.Jobs,
		ExistingMapping:  existingReduced,
		MigrationBudgetF: budgetF,
	}, nil
}

func findVM(inst domain.Instance, id domain.VMID) (domain.VirtualMachine, bool) {
	for _, vm := range inst.VMs() {
		if vm.ID == id {
			return vm, true
		}
	}
	return domain.VirtualMachine{}, false
}

func clip01(r *big.Rat) *big.Rat {
	zero := new(big.Rat)
	one := big.NewRat(1, 1)
	if r.Cmp(zero) < 0 {
		return zero
	}
	if r.Cmp(one) > 0 {
		return one
	}
	return r
}
