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

// Package encoder translates a domain.Instance into a PB-SAT model: one
// placement literal per (VM, feasible host) pair, a host-used indicator per
// host, and the hard constraints (exactly-one placement, capacity,
// anti-colocation, migration budget, symmetry breaking) spec.md §4.2
// requires. Energy and migration are linear in the placement variables and
// fall out of the encoding as plain weighted sums; wastage is a ratio with a
// placement-dependent denominator, so its PB objective is only a linear
// absolute-value proxy (spec.md §4.2's "per-host absolute-value
// linearisation via two ≥ constraints + a minimisation variable") -- the
// exact rational ratio used for reporting is computed separately by
// domain.EvaluateObjectives from the decoded mapping.
package encoder

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/numeric"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// Options controls the encoding-time behavior spec.md §6's CLI flags
// document: which constraints Build actually asserts, and how the wastage
// objective is linearized. It is a small, encoder-local subset of
// allocator.Options (package encoder cannot import package allocator, which
// already imports encoder) -- see allocator.Options.EncoderOptions for the
// conversion.
type Options struct {
	// SymmetryBreaking enables encodeSymmetryBreaking (spec.md §4.2, the
	// "s" CLI flag). Off by default: symmetry breaking only prunes the
	// search, it is never required for correctness.
	SymmetryBreaking bool

	// IgnorePlatform makes every host feasible for every VM regardless of
	// VirtualMachine.Forbidden (the "ip" flag): platform/affinity
	// eligibility is dropped from the row construction entirely.
	IgnorePlatform bool

	// IgnoreAntiColocation skips encodeAntiColocation entirely (the "ic"
	// flag).
	IgnoreAntiColocation bool

	// IgnoreDenominatorsAlloc treats the wastage objective as a plain sum
	// of per-host absolute differences instead of a capacity-normalized
	// ratio proxy (the "ida" flag; spec.md §4.2's "treat the objective as
	// a plain sum").
	IgnoreDenominatorsAlloc bool
}

// Model is the encoded form of a domain.Instance: the solver with every
// hard constraint already loaded, the variable index, and the three
// objectives as integer-coefficient linear expressions over the same
// variables.
type Model struct {
	Solver *satsolver.Solver

	VMOrder   []domain.VMID
	HostOrder []domain.HostID

	X map[domain.VMID]map[domain.HostID]constraint.Literal
	Y map[domain.HostID]constraint.Literal

	Energy       pbopt.Objective
	Wastage      pbopt.Objective
	Migration    pbopt.Objective // zero value (nil Lits) if the instance has no pre-existing mapping
	HasMigration bool
}

// Build encodes inst into a fresh Model according to opts. inst is assumed
// to already satisfy domain.Instance.Validate.
func Build(inst domain.Instance, opts Options) (*Model, error) {
	s := satsolver.New()
	m := &Model{
		Solver: s,
		X:      make(map[domain.VMID]map[domain.HostID]constraint.Literal),
		Y:      make(map[domain.HostID]constraint.Literal),
	}

	for _, h := range inst.Hosts {
		m.HostOrder = append(m.HostOrder, h.ID)
		m.Y[h.ID] = s.NewVar()
	}
	sort.Slice(m.HostOrder, func(i, j int) bool { return m.HostOrder[i] < m.HostOrder[j] })

	vms := inst.VMs()
	for _, vm := range vms {
		m.VMOrder = append(m.VMOrder, vm.ID)
		row := make(map[domain.HostID]constraint.Literal)
		for _, h := range inst.Hosts {
			if !opts.IgnorePlatform && vm.Forbidden(h.ID) {
				continue
			}
			row[h.ID] = s.NewVar()
		}
		m.X[vm.ID] = row
	}

	if err := encodeExactlyOne(m); err != nil {
		return nil, err
	}
	if err := encodeHostUsed(m); err != nil {
		return nil, err
	}
	if err := encodeCapacity(m, inst); err != nil {
		return nil, err
	}
	if !opts.IgnoreAntiColocation {
		encodeAntiColocation(m, inst)
	}
	if err := encodeMigrationBudget(m, inst); err != nil {
		return nil, err
	}
	if opts.SymmetryBreaking {
		encodeSymmetryBreaking(m, inst)
	}

	energy, err := buildEnergy(m, inst)
	if err != nil {
		return nil, err
	}
	m.Energy = energy
	wastage, err := buildWastage(m, inst, opts)
	if err != nil {
		return nil, err
	}
	m.Wastage = wastage
	if mig, ok := buildMigration(m, inst); ok {
		m.Migration = mig
		m.HasMigration = true
	}

	return m, nil
}

// encodeExactlyOne asserts that every VM is placed on exactly one of its
// feasible hosts.
func encodeExactlyOne(m *Model) error {
	for _, vmID := range m.VMOrder {
		row := m.X[vmID]
		lits := make([]constraint.Literal, 0, len(row))
		for _, h := range m.HostOrder {
			if l, ok := row[h]; ok {
				lits = append(lits, l)
			}
		}
		if len(lits) == 0 {
			return fmt.Errorf("encoder: vm %+v has no feasible host", vmID)
		}
		if err := m.Solver.AddCardinality(constraint.OpEQ, lits, 1); err != nil {
			return err
		}
	}
	return nil
}

// encodeHostUsed ties each Y_h to the disjunction of its column of X: any
// placement on h forces Y_h, and Y_h forces some placement to exist.
func encodeHostUsed(m *Model) error {
	col := make(map[domain.HostID][]constraint.Literal)
	for _, vmID := range m.VMOrder {
		for h, l := range m.X[vmID] {
			col[h] = append(col[h], l)
		}
	}
	for _, h := range m.HostOrder {
		y := m.Y[h]
		for _, l := range col[h] {
			if err := m.Solver.AddClause(l.Negate(), y); err != nil {
				return err
			}
		}
		if len(col[h]) == 0 {
			// No VM can ever use this host; force it unused.
			if err := m.Solver.AddClause(y.Negate()); err != nil {
				return err
			}
			continue
		}
		disj := append([]constraint.Literal{y.Negate()}, col[h]...)
		if err := m.Solver.AddClause(disj...); err != nil {
			return err
		}
	}
	return nil
}

// encodeCapacity asserts, per host and per resource, that the sum of
// demand of VMs placed there does not exceed capacity.
func encodeCapacity(m *Model, inst domain.Instance) error {
	for _, h := range inst.Hosts {
		var cpuLits, memLits []constraint.Literal
		var cpuCoeffs, memCoeffs []int64
		for _, vm := range inst.VMs() {
			l, ok := m.X[vm.ID][h.ID]
			if !ok {
				continue
			}
			cpu, err := constraint.Int64Checked(vm.CPU)
			if err != nil {
				return fmt.Errorf("encoder: vm %+v cpu: %w", vm.ID, err)
			}
			mem, err := constraint.Int64Checked(vm.Mem)
			if err != nil {
				return fmt.Errorf("encoder: vm %+v mem: %w", vm.ID, err)
			}
			cpuLits = append(cpuLits, l)
			cpuCoeffs = append(cpuCoeffs, cpu)
			memLits = append(memLits, l)
			memCoeffs = append(memCoeffs, mem)
		}
		hostCPU, err := constraint.Int64Checked(h.CPU)
		if err != nil {
			return fmt.Errorf("encoder: host %d cpu: %w", h.ID, err)
		}
		hostMem, err := constraint.Int64Checked(h.Mem)
		if err != nil {
			return fmt.Errorf("encoder: host %d mem: %w", h.ID, err)
		}
		if len(cpuLits) > 0 {
			if err := m.Solver.AddPB(constraint.OpLE, cpuCoeffs, cpuLits, hostCPU); err != nil {
				return err
			}
		}
		if len(memLits) > 0 {
			if err := m.Solver.AddPB(constraint.OpLE, memCoeffs, memLits, hostMem); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeAntiColocation forbids two anti-colocatable VMs of the same job
// from ever sharing a host.
func encodeAntiColocation(m *Model, inst domain.Instance) {
	for _, job := range inst.Jobs {
		var sensitive []domain.VirtualMachine
		for _, vm := range job.VMs {
			if vm.AntiColocatable {
				sensitive = append(sensitive, vm)
			}
		}
		for i := 0; i < len(sensitive); i++ {
			for j := i + 1; j < len(sensitive); j++ {
				for _, h := range m.HostOrder {
					l1, ok1 := m.X[sensitive[i].ID][h]
					l2, ok2 := m.X[sensitive[j].ID][h]
					if ok1 && ok2 {
						_ = m.Solver.AddClause(l1.Negate(), l2.Negate())
					}
				}
			}
		}
	}
}

// encodeMigrationBudget bounds the total memory of VMs moved off their
// original host: sum(Mem_v * (1 - X[v, orig_v])) <= budget, rewritten as
// sum(-Mem_v * X[v, orig_v]) <= budget - sum(Mem_v) over migratable VMs.
func encodeMigrationBudget(m *Model, inst domain.Instance) error {
	budget, err := constraint.Int64Checked(inst.MigrationBudget())
	if err != nil {
		return fmt.Errorf("encoder: migration budget: %w", err)
	}
	var lits []constraint.Literal
	var coeffs []int64
	var totalMem int64
	for _, vm := range inst.VMs() {
		orig, ok := inst.OriginalHost(vm.ID)
		if !ok {
			continue
		}
		l, ok := m.X[vm.ID][orig]
		if !ok {
			continue // VM's original host is no longer feasible for it; any placement counts as a migration and is unconstrained here
		}
		mem, err := constraint.Int64Checked(vm.Mem)
		if err != nil {
			return fmt.Errorf("encoder: vm %+v mem: %w", vm.ID, err)
		}
		lits = append(lits, l)
		coeffs = append(coeffs, -mem)
		totalMem += mem
	}
	if len(lits) == 0 {
		return nil
	}
	return m.Solver.AddPB(constraint.OpLE, coeffs, lits, budget-totalMem)
}

// encodeSymmetryBreaking forbids using a host before an earlier,
// capacity-identical host: consecutive hosts (in HostOrder) whose
// CPU/Mem/IdlePow/MaxPow tuples match are interchangeable, so only the
// lowest-indexed one of each run may be used first.
func encodeSymmetryBreaking(m *Model, inst domain.Instance) {
	byID := make(map[domain.HostID]domain.PhysicalMachine, len(inst.Hosts))
	for _, h := range inst.Hosts {
		byID[h.ID] = h
	}
	for i := 1; i < len(m.HostOrder); i++ {
		prev, cur := byID[m.HostOrder[i-1]], byID[m.HostOrder[i]]
		if sameCapacity(prev, cur) {
			_ = m.Solver.AddClause(m.Y[cur.ID].Negate(), m.Y[prev.ID])
		}
	}
}

func sameCapacity(a, b domain.PhysicalMachine) bool {
	return a.CPU.Cmp(b.CPU) == 0 && a.Mem.Cmp(b.Mem) == 0 &&
		a.IdlePow.Cmp(b.IdlePow) == 0 && a.MaxPow.Cmp(b.MaxPow) == 0
}

// buildEnergy linearizes energy = sum_h IdlePow_h*Y_h + sum_{v,h}
// (MaxPow_h-IdlePow_h)/CPU_h * CPU_v * X[v,h], the idle-plus-proportional
// power model, scaled from rational to integer coefficients via
// numeric.ScaleToInteger so every downstream algorithm works in plain
// int64 PB arithmetic.
func buildEnergy(m *Model, inst domain.Instance) (pbopt.Objective, error) {
	byID := make(map[domain.HostID]domain.PhysicalMachine, len(inst.Hosts))
	for _, h := range inst.Hosts {
		byID[h.ID] = h
	}
	var lits []constraint.Literal
	var coeffs []*big.Rat
	for _, h := range m.HostOrder {
		lits = append(lits, m.Y[h])
		coeffs = append(coeffs, new(big.Rat).SetInt(byID[h].IdlePow))
	}
	for _, vmID := range m.VMOrder {
		vm := vmOf(inst, vmID)
		for h, l := range m.X[vmID] {
			host := byID[h]
			if host.CPU.Sign() == 0 {
				continue
			}
			span := new(big.Int).Sub(host.MaxPow, host.IdlePow)
			perCPU := new(big.Rat).SetFrac(span, host.CPU)
			coeff := new(big.Rat).Mul(perCPU, new(big.Rat).SetInt(vm.CPU))
			lits = append(lits, l)
			coeffs = append(coeffs, coeff)
		}
	}
	return scaleObjective(lits, coeffs)
}

// buildWastage linearizes a PB *proxy* for spec.md §4.2/GLOSSARY's wastage
// ratio: per used host h, the true value is
// (|leftover_cpu/cap_cpu - leftover_mem/cap_mem| + eps) / (usedCPU/cap_cpu +
// usedMem/cap_mem), eps = 1/|hosts|, summed over used hosts -- a
// linear-fractional expression (the denominator depends on placement), which
// cannot itself be a pbopt.Objective (pbopt.Objective is strictly linear; see
// pkg/pbopt's Minimize/Evaluate). The PB search proxy instead linearizes only
// the numerator's per-host absolute value, via the standard PB technique
// (spec.md line 73): leftover_cpu/cap_cpu - leftover_mem/cap_mem simplifies
// algebraically to usedMem_h/cap_mem_h - usedCPU_h/cap_cpu_h, which scaled by
// D_h = cap_cpu_h*cap_mem_h gives the integer-linear N_h(X) = usedMem_h *
// cap_cpu_h - usedCPU_h * cap_mem_h. A fresh non-negative integer d_h,
// encoded as k = bound.BitLen() binary literals with powers-of-two
// coefficients, is bound to |N_h(X)| by the two PB inequalities d_h -
// N_h(X) >= 0 and d_h + N_h(X) >= 0: any algorithm that minimizes an
// objective containing d_h with a positive coefficient drives d_h down to
// exactly |N_h(X)| at the optimum. The proxy objective is then
// sum_h (d_h/D_h + eps*Y_h), rationals scaled to integers by scaleObjective
// exactly as buildEnergy does; opts.IgnoreDenominatorsAlloc drops the /D_h
// normalization and the eps term, per spec.md §4.2's "treat the objective as
// a plain sum". The exact ratio (including the denominator term this proxy
// cannot represent) is computed separately for reporting by
// domain.EvaluateObjectives, directly from the decoded mapping.
func buildWastage(m *Model, inst domain.Instance, opts Options) (pbopt.Objective, error) {
	byID := make(map[domain.HostID]domain.PhysicalMachine, len(inst.Hosts))
	for _, h := range inst.Hosts {
		byID[h.ID] = h
	}
	numHosts := big.NewRat(1, int64(maxInt(len(inst.Hosts), 1)))

	var lits []constraint.Literal
	var coeffs []*big.Rat
	for _, h := range m.HostOrder {
		host := byID[h]
		rowLits, rowCoeffs, bound, err := wastageRow(m, inst, host)
		if err != nil {
			return pbopt.Objective{}, err
		}
		if bound.Sign() == 0 {
			// No VM can ever use this host with a non-zero net effect; N_h
			// is identically 0, so no aux variable is needed at all.
			continue
		}
		k := bound.BitLen()
		dbits := make([]constraint.Literal, k)
		for i := range dbits {
			dbits[i] = m.Solver.NewVar()
		}

		geLits := append(append([]constraint.Literal(nil), dbits...), rowLits...)
		geCoeffsLow := make([]int64, 0, k+len(rowLits))
		geCoeffsHigh := make([]int64, 0, k+len(rowLits))
		for i := range dbits {
			geCoeffsLow = append(geCoeffsLow, int64(1)<<uint(i))
			geCoeffsHigh = append(geCoeffsHigh, int64(1)<<uint(i))
		}
		for _, c := range rowCoeffs {
			geCoeffsLow = append(geCoeffsLow, -c)
			geCoeffsHigh = append(geCoeffsHigh, c)
		}
		// d_h - N_h(X) >= 0
		if err := m.Solver.AddPB(constraint.OpGE, geCoeffsLow, geLits, 0); err != nil {
			return pbopt.Objective{}, err
		}
		// d_h + N_h(X) >= 0
		if err := m.Solver.AddPB(constraint.OpGE, geCoeffsHigh, geLits, 0); err != nil {
			return pbopt.Objective{}, err
		}

		if opts.IgnoreDenominatorsAlloc {
			for i, b := range dbits {
				lits = append(lits, b)
				coeffs = append(coeffs, new(big.Rat).SetInt64(int64(1)<<uint(i)))
			}
			continue
		}
		capCPU, capMem := host.CPU, host.Mem
		dHost := new(big.Int).Mul(capCPU, capMem)
		for i, b := range dbits {
			weight := new(big.Int).Lsh(big.NewInt(1), uint(i))
			lits = append(lits, b)
			coeffs = append(coeffs, new(big.Rat).SetFrac(weight, dHost))
		}
		lits = append(lits, m.Y[h])
		coeffs = append(coeffs, numHosts)
	}
	return scaleObjective(lits, coeffs)
}

// wastageRow returns N_h(X)'s literal/coefficient pairs (coefficient
// vm.Mem*capCPU - vm.CPU*capMem per VM feasible on host) and an upper bound
// on |N_h(X)| (the sum of the coefficients' absolute values), used to size
// the binary encoding of d_h.
func wastageRow(m *Model, inst domain.Instance, host domain.PhysicalMachine) ([]constraint.Literal, []int64, *big.Int, error) {
	var lits []constraint.Literal
	var coeffs []int64
	bound := new(big.Int)
	for _, vmID := range m.VMOrder {
		l, ok := m.X[vmID][host.ID]
		if !ok {
			continue
		}
		vm := vmOf(inst, vmID)
		term := new(big.Int).Sub(
			new(big.Int).Mul(vm.Mem, host.CPU),
			new(big.Int).Mul(vm.CPU, host.Mem),
		)
		c, err := constraint.Int64Checked(term)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encoder: wastage coefficient for vm %+v on host %d: %w", vmID, host.ID, err)
		}
		lits = append(lits, l)
		coeffs = append(coeffs, c)
		abs := new(big.Int).Abs(term)
		bound.Add(bound, abs)
	}
	return lits, coeffs, bound, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// buildMigration linearizes migration = sum(Mem_v) - sum(Mem_v *
// X[v,orig_v]) over VMs with a pre-existing mapping; ok is false if the
// instance carries no ExistingMapping at all.
func buildMigration(m *Model, inst domain.Instance) (pbopt.Objective, bool) {
	if len(inst.ExistingMapping) == 0 {
		return pbopt.Objective{}, false
	}
	var lits []constraint.Literal
	var coeffs []int64
	var constant int64
	for _, vm := range inst.VMs() {
		orig, ok := inst.OriginalHost(vm.ID)
		if !ok {
			continue
		}
		l, ok := m.X[vm.ID][orig]
		if !ok {
			continue
		}
		mem, err := constraint.Int64Checked(vm.Mem)
		if err != nil {
			continue
		}
		constant += mem
		lits = append(lits, l)
		coeffs = append(coeffs, -mem)
	}
	return pbopt.Objective{Lits: lits, Coeffs: coeffs, Constant: constant}, true
}

func scaleObjective(lits []constraint.Literal, coeffs []*big.Rat) (pbopt.Objective, error) {
	ints, _ := numeric.ScaleToInteger(numeric.RationalConstraint{Coeffs: coeffs, RHS: big.NewRat(0, 1)})
	out := make([]int64, len(ints))
	for i, v := range ints {
		iv, err := constraint.Int64Checked(v)
		if err != nil {
			return pbopt.Objective{}, err
		}
		out[i] = iv
	}
	return pbopt.Objective{Lits: lits, Coeffs: out}, nil
}

func vmOf(inst domain.Instance, id domain.VMID) domain.VirtualMachine {
	for _, vm := range inst.VMs() {
		if vm.ID == id {
			return vm
		}
	}
	return domain.VirtualMachine{}
}
