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

package evoadapter

import "github.com/vmcwm/allocator/pkg/numeric"

// Mutate returns a copy of sol with one randomly chosen gene reassigned to
// a uniformly random host, retrying the draw until it lands on a host the
// corresponding VM is not forbidden from (bounds-checked mutation, per the
// §6 contract) or giving up after a bounded number of attempts and leaving
// that gene unchanged -- a VM forbidden from every host cannot be
// legalized by mutation alone and must have been rejected at parse time.
func (p *Problem) Mutate(sol Solution, rng numeric.RNG) Solution {
	out := Solution{Assignment: append([]int(nil), sol.Assignment...)}
	if len(out.Assignment) == 0 || p.HostCount() == 0 {
		return out
	}

	gene := rng.Intn(len(out.Assignment))
	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := rng.Intn(p.HostCount())
		if !p.Forbidden(gene, candidate) {
			out.Assignment[gene] = candidate
			break
		}
	}
	return out
}
