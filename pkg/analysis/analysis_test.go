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

package analysis_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vmcwm/allocator/pkg/allocator"
	"github.com/vmcwm/allocator/pkg/analysis"
)

func TestRankOrdersByWeightedTotalAscending(t *testing.T) {
	front := []allocator.Point{
		{Energy: 100, Wastage: 10, Migration: 0},
		{Energy: 10, Wastage: 100, Migration: 0},
		{Energy: 50, Wastage: 50, Migration: 0},
	}
	ranked := analysis.Rank(front, analysis.DefaultWeights())
	if len(ranked) != 3 {
		t.Fatalf("got %d ranked points, want 3", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].WeightedTotal < ranked[i-1].WeightedTotal {
			t.Fatalf("ranked out of order: %+v", ranked)
		}
	}
}

func TestRankEmptyFront(t *testing.T) {
	if ranked := analysis.Rank(nil, analysis.DefaultWeights()); len(ranked) != 0 {
		t.Fatalf("expected no ranked points for an empty front, got %+v", ranked)
	}
}

func TestWriteSummaryListsEveryPoint(t *testing.T) {
	front := []allocator.Point{{Energy: 10, Wastage: 5, Migration: 1}}
	var buf bytes.Buffer
	if err := analysis.WriteSummary(&buf, analysis.Rank(front, analysis.DefaultWeights())); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if !strings.Contains(buf.String(), "energy=10") {
		t.Fatalf("expected the point's objectives in the summary, got:\n%s", buf.String())
	}
}

func TestWriteComparisonHandlesEmptySeed(t *testing.T) {
	var buf bytes.Buffer
	seeds := []analysis.Seeded{
		{Seed: 0, Front: nil},
		{Seed: 1, Front: []allocator.Point{{Energy: 1, Wastage: 1, Migration: 0}}},
	}
	if err := analysis.WriteComparison(&buf, seeds); err != nil {
		t.Fatalf("WriteComparison: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "seed 0: no solutions") {
		t.Fatalf("expected an empty-seed line, got:\n%s", out)
	}
	if !strings.Contains(out, "seed 1: 1 solutions") {
		t.Fatalf("expected seed 1's summary, got:\n%s", out)
	}
}
