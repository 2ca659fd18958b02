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

package allocator

import (
	"fmt"
	"math/big"

	"github.com/vmcwm/allocator/pkg/domain"
)

// Validate re-checks a decoded mapping against every hard constraint of
// spec.md §8's universal invariants, independently of whatever encoding
// produced it. It is the "validity is checked against all hard constraints
// before emission" step of spec.md §4.9 -- a defense against an encoder or
// solver-wrapper bug silently producing an infeasible mapping.
func Validate(inst domain.Instance, mappings []domain.Mapping) error {
	hostByID := make(map[domain.HostID]domain.PhysicalMachine, len(inst.Hosts))
	for _, h := range inst.Hosts {
		hostByID[h.ID] = h
	}

	assigned := make(map[domain.VMID]domain.HostID, len(mappings))
	for _, m := range mappings {
		if _, dup := assigned[m.VM]; dup {
			return fmt.Errorf("allocator: vm %+v appears more than once in the mapping", m.VM)
		}
		assigned[m.VM] = m.Host
	}

	cpuUsed := make(map[domain.HostID]*big.Int, len(inst.Hosts))
	memUsed := make(map[domain.HostID]*big.Int, len(inst.Hosts))
	for _, h := range inst.Hosts {
		cpuUsed[h.ID] = new(big.Int)
		memUsed[h.ID] = new(big.Int)
	}

	antiColocated := make(map[int]map[domain.HostID]domain.VMID)

	for _, job := range inst.Jobs {
		for _, vm := range job.VMs {
			host, ok := assigned[vm.ID]
			if !ok {
				return fmt.Errorf("allocator: vm %+v has no assignment", vm.ID)
			}
			h, ok := hostByID[host]
			if !ok {
				return fmt.Errorf("allocator: vm %+v assigned to unknown host %d", vm.ID, host)
			}
			if vm.Forbidden(host) {
				return fmt.Errorf("allocator: vm %+v assigned to forbidden host %d", vm.ID, host)
			}
			cpuUsed[host].Add(cpuUsed[host], vm.CPU)
			memUsed[host].Add(memUsed[host], vm.Mem)
			if cpuUsed[host].Cmp(h.CPU) > 0 {
				return fmt.Errorf("allocator: host %d CPU capacity exceeded", host)
			}
			if memUsed[host].Cmp(h.Mem) > 0 {
				return fmt.Errorf("allocator: host %d memory capacity exceeded", host)
			}

			if vm.AntiColocatable {
				if antiColocated[job.ID] == nil {
					antiColocated[job.ID] = make(map[domain.HostID]domain.VMID)
				}
				if other, seen := antiColocated[job.ID][host]; seen {
					return fmt.Errorf("allocator: anti-colocatable vms %+v and %+v of job %d share host %d", other, vm.ID, job.ID, host)
				}
				antiColocated[job.ID][host] = vm.ID
			}
		}
	}

	budget := inst.MigrationBudget()
	moved := new(big.Int)
	for _, job := range inst.Jobs {
		for _, vm := range job.VMs {
			orig, ok := inst.OriginalHost(vm.ID)
			if !ok {
				continue
			}
			if assigned[vm.ID] != orig {
				moved.Add(moved, vm.Mem)
			}
		}
	}
	if moved.Cmp(budget) > 0 {
		return fmt.Errorf("allocator: migrated memory %s exceeds budget %s", moved, budget)
	}

	return nil
}
