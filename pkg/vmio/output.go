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

package vmio

import (
	"bufio"
	"fmt"
	"io"
	"math/big"

	"github.com/vmcwm/allocator/pkg/allocator"
	"github.com/vmcwm/allocator/pkg/numeric"
)

// Writer emits the §6 output dialect: one line per diagnostic ('c'),
// the overall result ('s SUCCESS|FAILURE'), a 's SOLUTION i' header plus
// 'p'/'e' lines per emitted Point.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for buffered line emission; callers must call Flush.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Comment writes a 'c' diagnostic line.
func (o *Writer) Comment(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(o.w, "c %s\n", fmt.Sprintf(format, args...))
	return err
}

// Failure writes 's FAILURE' plus an explanatory comment -- no partial
// Pareto front is ever printed alongside it, per spec.md §6.
func (o *Writer) Failure(reason string) error {
	if err := o.Comment("%s", reason); err != nil {
		return err
	}
	_, err := fmt.Fprintln(o.w, "s FAILURE")
	return err
}

// Reference holds the [low, high] pair per objective that every point in a
// front is normalized against (spec.md §3: "reported normalised by
// pre-computed upper/lower reference points"), Deb-style: the front's own
// component-wise min (ideal) and max (nadir) across its points' exact
// ObjectiveVectors. A nil pair (no points, or an objective none of them
// carries, e.g. Migration when the instance has no pre-existing mapping)
// leaves normalization at 0.
type Reference struct {
	Energy    [2]*big.Rat
	Wastage   [2]*big.Rat
	Migration [2]*big.Rat
}

// ReferenceFrom computes the reference points for an entire front at once,
// so every point in it is normalized against the same bounds.
func ReferenceFrom(points []allocator.Point) Reference {
	var ref Reference
	track := func(pair *[2]*big.Rat, v *big.Rat) {
		if v == nil {
			return
		}
		if pair[0] == nil || v.Cmp(pair[0]) < 0 {
			pair[0] = v
		}
		if pair[1] == nil || v.Cmp(pair[1]) > 0 {
			pair[1] = v
		}
	}
	for _, p := range points {
		track(&ref.Energy, p.Objectives.Energy)
		track(&ref.Wastage, p.Objectives.Wastage)
		track(&ref.Migration, p.Objectives.Migration)
	}
	return ref
}

// Success writes 's SUCCESS' followed by one 's SOLUTION i' / 'p' / 'e'
// block per point, in points' discovery order. withMigration controls
// whether 'e' lines carry a trailing 'm' field -- the caller knows this
// from its own encoder.Model (it is present iff the instance carried a
// pre-existing mapping), since a migration value of exactly 0 with a
// tracked mapping is a legitimate "nothing moved" result, not an absent
// field.
func (o *Writer) Success(points []allocator.Point, withMigration bool) error {
	if _, err := fmt.Fprintln(o.w, "s SUCCESS"); err != nil {
		return err
	}
	ref := ReferenceFrom(points)
	for i, p := range points {
		if err := o.WritePoint(i, p, ref, withMigration); err != nil {
			return err
		}
	}
	return nil
}

// WritePoint writes one 's SOLUTION i' / 'p' / 'e' block, with the 'e'
// line's energy/wastage/migration figures normalized against ref.
func (o *Writer) WritePoint(i int, p allocator.Point, ref Reference, withMigration bool) error {
	if _, err := fmt.Fprintf(o.w, "s SOLUTION %d\n", i); err != nil {
		return err
	}
	for _, m := range p.Mapping {
		if _, err := fmt.Fprintf(o.w, "p %d-%d -> %d\n", m.VM.JobID, m.VM.Index, m.Host); err != nil {
			return err
		}
	}
	energy := normalize(p.Objectives.Energy, ref.Energy)
	wastage := normalize(p.Objectives.Wastage, ref.Wastage)
	if withMigration {
		migration := normalize(p.Objectives.Migration, ref.Migration)
		_, err := fmt.Fprintf(o.w, "e %s w %s m %s\n", formatRat5(energy), formatRat5(wastage), formatRat5(migration))
		return err
	}
	_, err := fmt.Fprintf(o.w, "e %s w %s\n", formatRat5(energy), formatRat5(wastage))
	return err
}

// Flush writes any buffered output to the underlying writer.
func (o *Writer) Flush() error {
	return o.w.Flush()
}

// normalize applies numeric.NormalizeByReference, treating a missing value
// or a reference pair with no recorded bounds (empty front) as 0.
func normalize(value *big.Rat, ref [2]*big.Rat) *big.Rat {
	if value == nil || ref[0] == nil || ref[1] == nil {
		return big.NewRat(0, 1)
	}
	return numeric.NormalizeByReference(value, ref[0], ref[1])
}

// formatRat5 renders a normalized objective value as a fixed-point figure
// with 5 decimal places, per spec.md §6's output dialect.
func formatRat5(r *big.Rat) string {
	if r == nil {
		return big.NewRat(0, 1).FloatString(5)
	}
	return r.FloatString(5)
}
