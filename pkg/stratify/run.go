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

package stratify

import (
	"time"

	"github.com/vmcwm/allocator/pkg/constraint"
	"github.com/vmcwm/allocator/pkg/paretomcs"
	"github.com/vmcwm/allocator/pkg/satsolver"
)

// Run extracts a minimal correction set over units by processing partitions
// heaviest-first: the MCS core runs on the heaviest partition alone; every
// unit it confirms satisfiable is hardened into s as a permanent clause
// before the next partition is merged in, so later, larger rounds never
// redo a satisfied literal's work from scratch. The final round's
// unsatisfied units -- those that stayed unhardened through every merge --
// are the overall correction set.
func Run(s *satsolver.Solver, partitions [][]SoftUnit, assumptions []constraint.Literal, strategy paretomcs.CoreStrategy, timeout time.Duration) ([]constraint.Literal, error) {
	deadline := time.Now().Add(timeout)
	var active []SoftUnit
	var correction []constraint.Literal

	for _, group := range partitions {
		if len(group) == 0 {
			continue
		}
		active = append(active, group...)

		lits := make([]constraint.Literal, len(active))
		for i, u := range active {
			lits[i] = u.Lit
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return correction, nil
		}
		mcs, err := paretomcs.MCS(s, lits, assumptions, strategy, remaining)
		if err != nil {
			return nil, err
		}
		failed := make(map[constraint.Literal]bool, len(mcs))
		for _, l := range mcs {
			failed[l] = true
		}
		for _, l := range lits {
			if !failed[l] {
				if err := s.AddClause(l); err != nil {
					return nil, err
				}
			}
		}
		correction = mcs
	}
	return correction, nil
}
