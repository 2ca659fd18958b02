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

// Package numeric collects the arbitrary-precision arithmetic the encoder
// and algorithms share: rational-to-integer PB scaling, percentile
// normalisation, and the roulette-wheel/RNG helpers used by stratification
// and hash enumeration.
package numeric

import "math/big"

// RationalConstraint is a single PB-style linear expression with rational
// coefficients, right-hand side and comparison relation. It mirrors
// spec.md §4.1's "rational coefficients, converted by scaling".
type RationalConstraint struct {
	Coeffs []*big.Rat
	RHS    *big.Rat
}

// ScaleToInteger returns an integer multiple of c that preserves its model
// set whenever every term is a terminating decimal (other denominators are
// approximated, see decimalScale): every coefficient's and the RHS's denominators are
// collected, and all terms are scaled by 10^max(scale) as spec.md §4.1
// requires (a power-of-ten factor, not the LCM of denominators, so that the
// scaling is idempotent under re-application -- see ScaleToIntegerIdempotent
// test).
func ScaleToInteger(c RationalConstraint) (coeffs []*big.Int, rhs *big.Int) {
	maxScale := decimalScale(c.RHS)
	for _, r := range c.Coeffs {
		if s := decimalScale(r); s > maxScale {
			maxScale = s
		}
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(maxScale)), nil)
	coeffs = make([]*big.Int, len(c.Coeffs))
	for i, r := range c.Coeffs {
		coeffs[i] = scaledInt(r, factor)
	}
	rhs = scaledInt(c.RHS, factor)
	return coeffs, rhs
}

// scaledInt returns floor(r * factor). When factor clears r's denominator
// (always the case for a terminating decimal r, see decimalScale) the
// product is an exact integer; otherwise its fractional part is dropped.
func scaledInt(r *big.Rat, factor *big.Int) *big.Int {
	num := new(big.Int).Mul(r.Num(), factor)
	q := new(big.Int)
	q.Div(num, r.Denom())
	return q
}

// decimalScale returns the smallest n such that r * 10^n is an integer, by
// counting r's denominator's prime factors of 2 and 5 (the only factors a
// terminating decimal's denominator can have once reduced): n is the larger
// of the two counts. A denominator with any other prime factor (the
// rational was never itself decimal) has no such n; decimalScale then
// returns the bit length of what is left after the 2s and 5s are divided
// out, and scaledInt floors the scaled terms, so such a constraint is
// approximated rather than reproduced exactly.
func decimalScale(r *big.Rat) int {
	if r == nil {
		return 0
	}
	den := new(big.Int).Set(r.Denom())
	twos, fives := 0, 0
	two := big.NewInt(2)
	five := big.NewInt(5)
	for den.Cmp(big.NewInt(1)) != 0 && twos+fives < 64 {
		switch {
		case new(big.Int).Mod(den, two).Sign() == 0:
			den.Div(den, two)
			twos++
		case new(big.Int).Mod(den, five).Sign() == 0:
			den.Div(den, five)
			fives++
		default:
			return den.BitLen()
		}
	}
	if fives > twos {
		return fives
	}
	return twos
}
