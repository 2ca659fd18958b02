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

// Package domain holds the immutable VMCwM problem types: physical machines,
// virtual machines, jobs and mappings. Values are constructed once by the
// (external) parser and never mutated afterward; the encoder reads them to
// build the PB model.
package domain

import "math/big"

// HostID identifies a PhysicalMachine. IDs are assigned by the parser in
// input order and are never reused.
type HostID int

// PhysicalMachine is a consolidation target. Capacities are arbitrary
// precision because the input dialect allows decimal CPU/memory figures
// that must not be rounded before constraint generation.
type PhysicalMachine struct {
	ID       HostID
	CPU      *big.Int
	Mem      *big.Int
	IdlePow  *big.Int
	MaxPow   *big.Int
}

// NewPhysicalMachine builds a host, defensively copying the supplied
// big.Ints so later mutation of the caller's values cannot reach back into
// the (supposedly immutable) domain object.
func NewPhysicalMachine(id HostID, cpu, mem, idle, max *big.Int) PhysicalMachine {
	return PhysicalMachine{
		ID:      id,
		CPU:     new(big.Int).Set(cpu),
		Mem:     new(big.Int).Set(mem),
		IdlePow: new(big.Int).Set(idle),
		MaxPow:  new(big.Int).Set(max),
	}
}

// VMID is the (job, index-within-job) composite identifier of a VirtualMachine.
type VMID struct {
	JobID int
	Index int
}

// VirtualMachine is a placement unit. ForbiddenHosts must be a subset of the
// instance's host set; Instance.Validate checks this.
type VirtualMachine struct {
	ID              VMID
	CPU             *big.Int
	Mem             *big.Int
	AntiColocatable bool
	ForbiddenHosts  map[HostID]struct{}
}

// NewVirtualMachine builds a VM, copying demand values and the forbidden set.
func NewVirtualMachine(id VMID, cpu, mem *big.Int, antiColocatable bool, forbidden []HostID) VirtualMachine {
	fh := make(map[HostID]struct{}, len(forbidden))
	for _, h := range forbidden {
		fh[h] = struct{}{}
	}
	return VirtualMachine{
		ID:              id,
		CPU:             new(big.Int).Set(cpu),
		Mem:             new(big.Int).Set(mem),
		AntiColocatable: antiColocatable,
		ForbiddenHosts:  fh,
	}
}

// Forbidden reports whether h is in the VM's forbidden host set.
func (v VirtualMachine) Forbidden(h HostID) bool {
	_, ok := v.ForbiddenHosts[h]
	return ok
}

// Job groups VMs that share anti-colocation scope: two anti-colocatable VMs
// of the same job may never share a host.
type Job struct {
	ID  int
	VMs []VirtualMachine
}

// Mapping is a single VM-to-host decision, used both for the pre-existing
// assignment (input) and for a computed solution (output).
type Mapping struct {
	VM   VMID
	Host HostID
}
