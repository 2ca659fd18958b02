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

// Package analysis ranks a finished Pareto front by a weighted,
// normalized combination of its three objectives. It backs the CLI's
// --ap/--pa/--cp flags (spec.md §6), which ask for the population to be
// analyzed, the analysis printed, and multiple seeds' populations
// compared, respectively.
package analysis

import (
	"fmt"
	"io"
	"sort"

	"github.com/vmcwm/allocator/pkg/allocator"
)

// Weights combines the three objectives into a single score for
// ranking. They need not sum to 1; only their ratios matter.
type Weights struct {
	Energy    float64
	Wastage   float64
	Migration float64
}

// DefaultWeights spreads the score evenly across the objectives present.
func DefaultWeights() Weights {
	return Weights{Energy: 1, Wastage: 1, Migration: 1}
}

// Ranked is one point's place in a scored front: its normalized
// objective fractions (each objective divided by the front's own worst
// value for that objective, so 1.0 means "worst in this front") and the
// weighted sum used to sort it.
type Ranked struct {
	Index         int
	Point         allocator.Point
	Normalized    [3]float64
	WeightedTotal float64
}

// Rank scores every point in front against its own worst-case values per
// objective, lowest WeightedTotal first. An empty front yields an empty
// result; a single point is normalized against itself, so each of its
// non-zero objectives scores 1.
func Rank(front []allocator.Point, w Weights) []Ranked {
	ranked := make([]Ranked, len(front))
	if len(front) == 0 {
		return ranked
	}

	var worst [3]int64
	for _, p := range front {
		worst[0] = max64(worst[0], p.Energy)
		worst[1] = max64(worst[1], p.Wastage)
		worst[2] = max64(worst[2], p.Migration)
	}

	for i, p := range front {
		var norm [3]float64
		norm[0] = fraction(p.Energy, worst[0])
		norm[1] = fraction(p.Wastage, worst[1])
		norm[2] = fraction(p.Migration, worst[2])
		total := norm[0]*w.Energy + norm[1]*w.Wastage + norm[2]*w.Migration
		ranked[i] = Ranked{Index: i, Point: p, Normalized: norm, WeightedTotal: total}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].WeightedTotal < ranked[j].WeightedTotal
	})
	return ranked
}

func fraction(v, worst int64) float64 {
	if worst == 0 {
		return 0
	}
	return float64(v) / float64(worst)
}

func max64(a, b int64) int64 {
	if b > a {
		return b
	}
	return a
}

// WriteSummary prints one line per ranked point, best first, followed by
// the raw objective vector it was scored from.
func WriteSummary(w io.Writer, ranked []Ranked) error {
	for rank, r := range ranked {
		_, err := fmt.Fprintf(w, "%d. solution %d: score=%.4f energy=%d wastage=%d migration=%d\n",
			rank+1, r.Index, r.WeightedTotal, r.Point.Energy, r.Point.Wastage, r.Point.Migration)
		if err != nil {
			return err
		}
	}
	return nil
}

// Seeded is one multi-seed run's outcome, labeled by which seed produced
// it, for WriteComparison.
type Seeded struct {
	Seed  int
	Front []allocator.Point
}

// WriteComparison prints each seed's best score (by DefaultWeights) side
// by side, so --cp can show whether more seeds found a better front.
func WriteComparison(w io.Writer, seeds []Seeded) error {
	for _, s := range seeds {
		ranked := Rank(s.Front, DefaultWeights())
		if len(ranked) == 0 {
			if _, err := fmt.Fprintf(w, "seed %d: no solutions\n", s.Seed); err != nil {
				return err
			}
			continue
		}
		best := ranked[0]
		_, err := fmt.Fprintf(w, "seed %d: %d solutions, best score=%.4f (energy=%d wastage=%d migration=%d)\n",
			s.Seed, len(s.Front), best.WeightedTotal, best.Point.Energy, best.Point.Wastage, best.Point.Migration)
		if err != nil {
			return err
		}
	}
	return nil
}
