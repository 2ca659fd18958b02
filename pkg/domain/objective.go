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

import "math/big"

// ObjectiveVector is the (energy, wastage, migration) triple reported for a
// Pareto point. Values are exact rationals internally; Round64 truncates to
// float64 only for reporting, per the "no downcast except at
// objective-reporting time" design note.
type ObjectiveVector struct {
	Energy    *big.Rat
	Wastage   *big.Rat
	Migration *big.Rat
}

// Round64 returns the objective vector as float64s, for output formatting
// only: no algorithm may compare these -- comparisons must use the exact
// Less/Dominates helpers below.
func (v ObjectiveVector) Round64() (energy, wastage, migration float64) {
	e, _ := v.Energy.Float64()
	w, _ := v.Wastage.Float64()
	if v.Migration != nil {
		migration, _ = v.Migration.Float64()
	}
	return e, w, migration
}

// HasMigration reports whether the instance carried a pre-existing mapping
// (per §6, the migration column is absent from output otherwise).
func (v ObjectiveVector) HasMigration() bool {
	return v.Migration != nil
}

// Dominates reports whether a dominates b in the Pareto sense: no worse in
// every component and strictly better in at least one. Migration is
// compared only when both sides carry it; if either side's Migration is nil
// it is left out of the comparison.
func Dominates(a, b ObjectiveVector) bool {
	betterOrEqual := true
	strictlyBetter := false
	pairs := [][2]*big.Rat{{a.Energy, b.Energy}, {a.Wastage, b.Wastage}}
	if a.Migration != nil && b.Migration != nil {
		pairs = append(pairs, [2]*big.Rat{a.Migration, b.Migration})
	}
	for _, p := range pairs {
		c := p[0].Cmp(p[1])
		if c > 0 {
			betterOrEqual = false
			break
		}
		if c < 0 {
			strictlyBetter = true
		}
	}
	return betterOrEqual && strictlyBetter
}

// EvaluateObjectives computes the exact (energy, wastage, migration) vector
// spec.md §3's GLOSSARY defines for mapping, a fully decoded placement:
// energy is idle + (usedCPU/capCPU)*(maxPow-idlePow) summed over used hosts;
// wastage is (|leftover_cpu/cap_cpu - leftover_mem/cap_mem| + eps) /
// (usedCPU/cap_cpu + usedMem/cap_mem), eps = 1/|hosts|, summed over used
// hosts only; migration is the total memory of VMs whose mapping differs
// from inst.OriginalHost. This is independent of the PB encoding's wastage
// search proxy (pkg/encoder's buildWastage) -- it is the ratio formula
// itself, not a linear stand-in for it. ignoreDenominators mirrors the "ide"
// CLI flag: when set, every ratio's denominator is dropped and the
// objective becomes a plain sum of numerators.
func EvaluateObjectives(inst Instance, mapping []Mapping, ignoreDenominators bool) ObjectiveVector {
	byID := make(map[HostID]PhysicalMachine, len(inst.Hosts))
	for _, h := range inst.Hosts {
		byID[h.ID] = h
	}
	byVM := make(map[VMID]VirtualMachine, len(inst.VMs()))
	for _, vm := range inst.VMs() {
		byVM[vm.ID] = vm
	}

	usedCPU := make(map[HostID]*big.Int, len(inst.Hosts))
	usedMem := make(map[HostID]*big.Int, len(inst.Hosts))
	for _, mp := range mapping {
		vm, ok := byVM[mp.VM]
		if !ok {
			continue
		}
		if usedCPU[mp.Host] == nil {
			usedCPU[mp.Host] = new(big.Int)
			usedMem[mp.Host] = new(big.Int)
		}
		usedCPU[mp.Host].Add(usedCPU[mp.Host], vm.CPU)
		usedMem[mp.Host].Add(usedMem[mp.Host], vm.Mem)
	}

	eps := big.NewRat(1, int64(len(inst.Hosts)))
	if len(inst.Hosts) == 0 {
		eps = big.NewRat(0, 1)
	}

	energy := new(big.Rat)
	wastage := new(big.Rat)
	for hostID, cpu := range usedCPU {
		mem := usedMem[hostID]
		if cpu.Sign() == 0 && mem.Sign() == 0 {
			continue
		}
		host, ok := byID[hostID]
		if !ok {
			continue
		}

		energy.Add(energy, ratFromInt(host.IdlePow))
		if ignoreDenominators {
			span := new(big.Rat).Sub(ratFromInt(host.MaxPow), ratFromInt(host.IdlePow))
			span.Mul(span, new(big.Rat).SetInt(cpu))
			energy.Add(energy, span)
		} else if host.CPU.Sign() != 0 {
			frac := new(big.Rat).SetInt(cpu)
			frac.Mul(frac, spanRat(host))
			energy.Add(energy, frac)
		}

		leftoverCPU := new(big.Int).Sub(host.CPU, cpu)
		leftoverMem := new(big.Int).Sub(host.Mem, mem)

		var numer, denom *big.Rat
		if ignoreDenominators {
			diff := new(big.Rat).Sub(ratFromInt(leftoverCPU), ratFromInt(leftoverMem))
			diff.Abs(diff)
			numer = new(big.Rat).Add(diff, eps)
			wastage.Add(wastage, numer)
			continue
		}

		cpuRatio := new(big.Rat).SetFrac(leftoverCPU, host.CPU)
		memRatio := new(big.Rat).SetFrac(leftoverMem, host.Mem)
		diff := new(big.Rat).Sub(cpuRatio, memRatio)
		diff.Abs(diff)
		numer = new(big.Rat).Add(diff, eps)

		usedCPURatio := new(big.Rat).SetFrac(cpu, host.CPU)
		usedMemRatio := new(big.Rat).SetFrac(mem, host.Mem)
		denom = new(big.Rat).Add(usedCPURatio, usedMemRatio)
		if denom.Sign() == 0 {
			continue
		}
		wastage.Add(wastage, new(big.Rat).Quo(numer, denom))
	}

	v := ObjectiveVector{Energy: energy, Wastage: wastage}
	if len(inst.ExistingMapping) > 0 {
		migration := new(big.Rat)
		for _, mp := range mapping {
			orig, ok := inst.OriginalHost(mp.VM)
			if !ok || orig == mp.Host {
				continue
			}
			vm, ok := byVM[mp.VM]
			if !ok {
				continue
			}
			migration.Add(migration, ratFromInt(vm.Mem))
		}
		v.Migration = migration
	}
	return v
}

func ratFromInt(n *big.Int) *big.Rat {
	return new(big.Rat).SetInt(n)
}

// spanRat returns (maxPow-idlePow)/capCPU as a rational, the per-unit-CPU
// power slope buildEnergy also derives (see pkg/encoder).
func spanRat(host PhysicalMachine) *big.Rat {
	span := new(big.Int).Sub(host.MaxPow, host.IdlePow)
	return new(big.Rat).SetFrac(span, host.CPU)
}

// Solution is an integer-array encoding of a placement: Assignment[i] is the
// host index (position within Instance.Hosts) chosen for VMs()[i]. This is
// the decoded, "b" form of spec.md §3's Solution; the bit-vector "a" form
// lives only inside the encoder/solver boundary and is converted via
// Decode in package allocator.
type Solution struct {
	Assignment []HostID
}
