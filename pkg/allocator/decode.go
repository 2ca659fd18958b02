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

	"github.com/vmcwm/allocator/pkg/domain"
	"github.com/vmcwm/allocator/pkg/encoder"
)

// Point is one non-dominated solution: its decoded VM→host mapping and
// objective vector, in (energy, wastage, migration) order. Energy/Wastage/
// Migration are the PB search proxy's own integer-scaled values (used by
// the algorithms for dominance comparisons during search); Objectives is
// the exact rational vector computed from Mapping by
// domain.EvaluateObjectives, which is what gets reported (spec.md §3's
// "evaluated in exact rationals internally").
type Point struct {
	Mapping    []domain.Mapping
	Energy     int64
	Wastage    int64
	Migration  int64
	Objectives domain.ObjectiveVector
}

// Decode reads model.Solver's current model into a concrete mapping list,
// one entry per VM in model.VMOrder. It must be called only after a Sat
// solve; behavior is undefined otherwise.
func Decode(model *encoder.Model) ([]domain.Mapping, error) {
	mappings := make([]domain.Mapping, 0, len(model.VMOrder))
	for _, vmID := range model.VMOrder {
		hosts, ok := model.X[vmID]
		if !ok {
			continue
		}
		placed := false
		for _, hostID := range model.HostOrder {
			lit, ok := hosts[hostID]
			if !ok {
				continue
			}
			if model.Solver.Value(lit) {
				mappings = append(mappings, domain.Mapping{VM: vmID, Host: hostID})
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("allocator: vm %+v has no placement literal set true in the model", vmID)
		}
	}
	return mappings, nil
}
