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

package numeric

import "math/big"

// NormalizeByReference rescales a raw objective value into [0,1] (possibly
// slightly outside if value is better than the reference low point) using
// Deb's normalization: (value - low) / (high - low), the same formula the
// teacher's cost objective applies with pre-computed bounds. high == low
// collapses to 0, matching "all solutions have same cost".
func NormalizeByReference(value, low, high *big.Rat) *big.Rat {
	span := new(big.Rat).Sub(high, low)
	if span.Sign() == 0 {
		return big.NewRat(0, 1)
	}
	num := new(big.Rat).Sub(value, low)
	return new(big.Rat).Quo(num, span)
}

// Percentile returns the p-th percentile (0<=p<=100) of a sorted-ascending
// slice of big.Rat using linear interpolation between closest ranks.
func Percentile(sortedAsc []*big.Rat, p float64) *big.Rat {
	n := len(sortedAsc)
	if n == 0 {
		return big.NewRat(0, 1)
	}
	if n == 1 {
		return sortedAsc[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sortedAsc[n-1]
	}
	frac := rank - float64(lo)
	fracRat := new(big.Rat).SetFloat64(frac)
	if fracRat == nil {
		fracRat = big.NewRat(0, 1)
	}
	delta := new(big.Rat).Sub(sortedAsc[lo+1], sortedAsc[lo])
	delta.Mul(delta, fracRat)
	return new(big.Rat).Add(sortedAsc[lo], delta)
}
