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

// Normalizer rescales raw objective vectors into [0, 1] component-wise,
// given the population's observed min/max per objective. Grounded directly
// on the teacher's algorithms.Normalizer: same min/max-per-component
// shape, same zero-range guard.
type Normalizer struct {
	min []float64
	max []float64
}

// NewNormalizer builds a Normalizer from the min and max observed for each
// objective; min and max must be the same length.
func NewNormalizer(min, max []float64) *Normalizer {
	return &Normalizer{min: append([]float64(nil), min...), max: append([]float64(nil), max...)}
}

// Normalize returns values rescaled into [0,1] per component. A component
// whose min equals its max (every candidate agreed) normalizes to 0 rather
// than dividing by zero.
func (n *Normalizer) Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if n.max[i] == n.min[i] {
			out[i] = 0
			continue
		}
		out[i] = (v - n.min[i]) / (n.max[i] - n.min[i])
	}
	return out
}

// ObserveBounds scans a population's already-evaluated objective vectors
// and returns the per-component min/max a Normalizer should be built from.
func ObserveBounds(values [][]float64) (min, max []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	n := len(values[0])
	min = append([]float64(nil), values[0]...)
	max = append([]float64(nil), values[0]...)
	for _, v := range values[1:] {
		for i := 0; i < n; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}
