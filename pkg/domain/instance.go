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

package domain

import (
	"fmt"
	"math/big"
	"strconv"
)

// Instance is the full tuple the encoder consumes: hosts, jobs, an optional
// pre-existing mapping and a migration-budget fraction in [0,1].
type Instance struct {
	Hosts            []PhysicalMachine
	Jobs             []Job
	ExistingMapping  []Mapping
	MigrationBudgetF float64 // fraction of total host memory, in [0,1]
}

// VMs returns every VM across every job, in job/index order.
func (in Instance) VMs() []VirtualMachine {
	var out []VirtualMachine
	for _, j := range in.Jobs {
		out = append(out, j.VMs...)
	}
	return out
}

// HostByID returns the host with the given ID, or false if absent.
func (in Instance) HostByID(id HostID) (PhysicalMachine, bool) {
	for _, h := range in.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return PhysicalMachine{}, false
}

// TotalHostMemory sums memory capacity across all hosts.
func (in Instance) TotalHostMemory() *big.Int {
	sum := new(big.Int)
	for _, h := range in.Hosts {
		sum.Add(sum, h.Mem)
	}
	return sum
}

// MigrationBudget computes floor(fraction * totalHostMemory), the absolute
// cap on the memory of VMs moved off their original host.
func (in Instance) MigrationBudget() *big.Int {
	total := in.TotalHostMemory()
	return ScaleFractionFloor(total, in.MigrationBudgetF)
}

// OriginalHost returns the host a VM was mapped to in ExistingMapping, if any.
func (in Instance) OriginalHost(vm VMID) (HostID, bool) {
	for _, m := range in.ExistingMapping {
		if m.VM == vm {
			return m.Host, true
		}
	}
	return 0, false
}

// ScaleFractionFloor returns floor(fraction * n) for n a non-negative
// big.Int and fraction a float64 in [0,1], computed exactly: the fraction is
// read as the rational of its shortest decimal representation (0.3 is 3/10,
// not the nearest binary float below it), multiplied into n as a big.Int
// product, then divided back down and floored.
func ScaleFractionFloor(n *big.Int, fraction float64) *big.Int {
	if fraction <= 0 {
		return big.NewInt(0)
	}
	if fraction >= 1 {
		return new(big.Int).Set(n)
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(fraction, 'g', -1, 64))
	if !ok {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(n, r.Num())
	den := r.Denom()
	q := new(big.Int)
	q.Div(num, den) // Div (not Quo) floors for non-negative operands
	return q
}

// Validate checks the invariants spec.md §3 requires of an Instance:
// VM demand must be satisfiable by at least one non-forbidden host, and
// ForbiddenHosts must be a subset of the instance's hosts.
func (in Instance) Validate() error {
	hostSet := make(map[HostID]PhysicalMachine, len(in.Hosts))
	for _, h := range in.Hosts {
		hostSet[h.ID] = h
	}
	for _, vm := range in.VMs() {
		feasible := false
		for hid := range vm.ForbiddenHosts {
			if _, ok := hostSet[hid]; !ok {
				return fmt.Errorf("vm %+v forbids unknown host %d", vm.ID, hid)
			}
		}
		for _, h := range in.Hosts {
			if vm.Forbidden(h.ID) {
				continue
			}
			if vm.CPU.Cmp(h.CPU) <= 0 && vm.Mem.Cmp(h.Mem) <= 0 {
				feasible = true
				break
			}
		}
		if !feasible {
			return fmt.Errorf("vm %+v has no feasible host", vm.ID)
		}
	}
	return nil
}
