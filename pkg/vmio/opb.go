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
	"fmt"
	"io"
	"strings"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/pbopt"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// ExportOPB writes s's currently live constraints plus objectives (each
// wrapped in its own parenthesized ratio and summed, per spec.md §6's
// "sum-of-ratios" objective line) as a pseudo-Boolean OPB file, grounded on
// gophersat's own Solver.PBString format: a leading
// "* #variable= N #constraint= M" comment, a "min: ... ;" objective line,
// and one "coeff lit + coeff lit ... >= rhs ;" line per constraint.
// decimalCoeffs controls whether coefficients print as plain integers
// (false, the default) or as "N.0"-style decimals (true).
func ExportOPB(w io.Writer, s *satsolver.Solver, objectives []pbopt.Objective, decimalCoeffs bool) error {
	constraints := s.Constraints()
	if _, err := fmt.Fprintf(w, "* #variable= %d #constraint= %d\n", s.VarCount(), len(constraints)); err != nil {
		return err
	}

	if len(objectives) > 0 {
		ratios := make([]string, len(objectives))
		for i, obj := range objectives {
			ratios[i] = "(" + termString(obj.Coeffs, obj.Lits, decimalCoeffs) + ")"
		}
		if _, err := fmt.Fprintf(w, "min: %s ;\n", strings.Join(ratios, " + ")); err != nil {
			return err
		}
	}

	for _, c := range constraints {
		line := fmt.Sprintf("%s >= %s ;\n", termString(c.Coeffs, c.Lits, decimalCoeffs), coeffString(c.RHS, decimalCoeffs))
		if _, err := fmt.Fprint(w, line); err != nil {
			return err
		}
	}
	return nil
}

func termString(coeffs []int64, lits []constraint.Literal, decimal bool) string {
	terms := make([]string, len(lits))
	for i, l := range lits {
		v := int64(l)
		sign := ""
		if v < 0 {
			v = -v
			sign = "~"
		}
		terms[i] = fmt.Sprintf("%s %sx%d", coeffString(coeffs[i], decimal), sign, v)
	}
	return strings.Join(terms, " + ")
}

func coeffString(v int64, decimal bool) string {
	if decimal {
		return fmt.Sprintf("%d.0", v)
	}
	return fmt.Sprintf("%d", v)
}
