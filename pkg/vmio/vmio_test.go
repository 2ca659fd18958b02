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

package vmio_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vmcwm/allocator/pkg/allocator"
	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/encoder"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/vmio"
)

const sampleInput = `2
0 10 10 50 100
1 10.5 10 50 100
2
0 0 6 6 false
0 1 4.5 4 true 1
1
0 0 0
`

func TestParseReadsHostsVMsAndMappings(t *testing.T) {
	inst, err := vmio.Parse(strings.NewReader(sampleInput), 0.5)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(inst.Hosts) != 2 {
		t.Fatalf("hosts: got %d, want 2", len(inst.Hosts))
	}
	if len(inst.Jobs) != 1 || len(inst.Jobs[0].VMs) != 2 {
		t.Fatalf("jobs: got %+v", inst.Jobs)
	}
	wantMapping := []domain.Mapping{{VM: domain.VMID{JobID: 0, Index: 0}, Host: 0}}
	if diff := cmp.Diff(wantMapping, inst.ExistingMapping); diff != "" {
		t.Fatalf("existing mapping mismatch (-want +got):\n%s", diff)
	}
	if inst.MigrationBudgetF != 0.5 {
		t.Fatalf("migration budget: got %v, want 0.5", inst.MigrationBudgetF)
	}

	vms := inst.Jobs[0].VMs
	if vms[1].Forbidden(1) != true {
		t.Fatalf("expected vm 1 to forbid host 1")
	}
	if vms[1].AntiColocatable != true {
		t.Fatalf("expected vm 1 to be anti-colocatable")
	}

	// host 1's cpu (10.5) and vm 1's cpu (4.5) must both have been scaled
	// by the same common factor with no rounding: their ratio must be
	// preserved exactly as 10.5/4.5 = 21/9.
	h1cpu := inst.Hosts[1].CPU
	v1cpu := vms[1].CPU
	if h1cpu.Sign() <= 0 || v1cpu.Sign() <= 0 {
		t.Fatalf("expected positive scaled cpu values, got %v and %v", h1cpu, v1cpu)
	}
	if got := new(big.Rat).SetFrac(h1cpu, v1cpu); got.Cmp(big.NewRat(21, 9)) != 0 {
		t.Fatalf("host 1 / vm 1 cpu ratio = %v, want 21/9", got)
	}
}

func TestParseRejectsTruncatedInput(t *testing.T) {
	if _, err := vmio.Parse(strings.NewReader("2\n0 10 10 50 100\n"), 0); err == nil {
		t.Fatal("expected an error for a host table cut short")
	}
}

func TestParseRejectsBadHostCount(t *testing.T) {
	if _, err := vmio.Parse(strings.NewReader("not-a-number\n"), 0); err == nil {
		t.Fatal("expected an error for a non-integer host count")
	}
}

// frontPoints is a two-point front with hand-chosen exact objective
// vectors: point 0 is strictly better in every objective, point 1 strictly
// worse, so Deb reference-point normalization against the front's own
// min/max collapses them to exactly 0.00000 and 1.00000 in every column --
// an easy value to hand-verify, unlike the raw PB-scaled figures the old
// (pre-normalization) fixed5 output used.
func frontPoints() []allocator.Point {
	return []allocator.Point{
		{
			Mapping: []domain.Mapping{
				{VM: domain.VMID{JobID: 0, Index: 0}, Host: 1},
				{VM: domain.VMID{JobID: 0, Index: 1}, Host: 0},
			},
			Objectives: domain.ObjectiveVector{
				Energy:    big.NewRat(100, 1),
				Wastage:   big.NewRat(5, 1),
				Migration: big.NewRat(0, 1),
			},
		},
		{
			Mapping: []domain.Mapping{
				{VM: domain.VMID{JobID: 0, Index: 0}, Host: 0},
				{VM: domain.VMID{JobID: 0, Index: 1}, Host: 1},
			},
			Objectives: domain.ObjectiveVector{
				Energy:    big.NewRat(200, 1),
				Wastage:   big.NewRat(10, 1),
				Migration: big.NewRat(4, 1),
			},
		},
	}
}

func TestWriterSuccessWithMigration(t *testing.T) {
	var buf bytes.Buffer
	w := vmio.NewWriter(&buf)
	if err := w.Success(frontPoints(), true); err != nil {
		t.Fatalf("Success: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"s SUCCESS",
		"s SOLUTION 0",
		"p 0-0 -> 1",
		"p 0-1 -> 0",
		"e 0.00000 w 0.00000 m 0.00000",
		"s SOLUTION 1",
		"e 1.00000 w 1.00000 m 1.00000",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q, got:\n%s", want, out)
		}
	}
}

func TestWriterSuccessWithoutMigration(t *testing.T) {
	var buf bytes.Buffer
	w := vmio.NewWriter(&buf)
	if err := w.Success(frontPoints(), false); err != nil {
		t.Fatalf("Success: %v", err)
	}
	w.Flush()
	if strings.Contains(buf.String(), " m ") {
		t.Fatalf("expected no migration field, got:\n%s", buf.String())
	}
}

func TestWriterFailureNeverWritesASolutionLine(t *testing.T) {
	var buf bytes.Buffer
	w := vmio.NewWriter(&buf)
	if err := w.Failure("no feasible placement within deadline"); err != nil {
		t.Fatalf("Failure: %v", err)
	}
	w.Flush()
	out := buf.String()
	if !strings.Contains(out, "s FAILURE") {
		t.Fatalf("expected s FAILURE, got:\n%s", out)
	}
	if strings.Contains(out, "s SOLUTION") || strings.HasPrefix(out, "p ") || strings.HasPrefix(out, "e ") ||
		strings.Contains(out, "\np ") || strings.Contains(out, "\ne ") {
		t.Fatalf("FAILURE output must not carry a partial front, got:\n%s", out)
	}
}

func twoHostTwoVMInstance() domain.Instance {
	return domain.Instance{
		Hosts: []domain.PhysicalMachine{
			domain.NewPhysicalMachine(0, big.NewInt(10), big.NewInt(10), big.NewInt(50), big.NewInt(100)),
			domain.NewPhysicalMachine(1, big.NewInt(10), big.NewInt(10), big.NewInt(50), big.NewInt(100)),
		},
		Jobs: []domain.Job{{ID: 0, VMs: []domain.VirtualMachine{
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 0}, big.NewInt(6), big.NewInt(6), false, nil),
			domain.NewVirtualMachine(domain.VMID{JobID: 0, Index: 1}, big.NewInt(6), big.NewInt(6), false, nil),
		}}},
		MigrationBudgetF: 1,
	}
}

func TestExportOPBReversesRemovableSwamping(t *testing.T) {
	inst := twoHostTwoVMInstance()
	model, err := encoder.Build(inst, encoder.Options{})
	if err != nil {
		t.Fatalf("encoder.Build: %v", err)
	}

	var buf bytes.Buffer
	objectives := []pbopt.Objective{model.Energy, model.Wastage}
	if err := vmio.ExportOPB(&buf, model.Solver, objectives, false); err != nil {
		t.Fatalf("ExportOPB: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "* #variable=") {
		t.Fatalf("expected a leading variable/constraint comment, got:\n%s", out)
	}
	if !strings.Contains(out, "min: (") {
		t.Fatalf("expected a min: objective line, got:\n%s", out)
	}
	if n := strings.Count(out, ">="); n == 0 {
		t.Fatalf("expected at least one constraint line, got:\n%s", out)
	}
}

func TestExportOPBDecimalCoeffs(t *testing.T) {
	inst := twoHostTwoVMInstance()
	model, err := encoder.Build(inst, encoder.Options{})
	if err != nil {
		t.Fatalf("encoder.Build: %v", err)
	}
	var buf bytes.Buffer
	if err := vmio.ExportOPB(&buf, model.Solver, nil, true); err != nil {
		t.Fatalf("ExportOPB: %v", err)
	}
	if !strings.Contains(buf.String(), ".0 ") {
		t.Fatalf("expected decimal-style coefficients, got:\n%s", buf.String())
	}
}
