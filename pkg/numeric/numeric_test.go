package numeric_test

import (
	"math/big"
	"testing"

	"github.com/vmcwm/allocator/pkg/numeric"
)

func TestScaleToIntegerIdempotent(t *testing.T) {
	c := numeric.RationalConstraint{
		Coeffs: []*big.Rat{big.NewRat(3, 2), big.NewRat(1, 4)},
		RHS:    big.NewRat(7, 8),
	}
	coeffs, rhs := numeric.ScaleToInteger(c)

	reRats := make([]*big.Rat, len(coeffs))
	for i, c := range coeffs {
		reRats[i] = new(big.Rat).SetInt(c)
	}
	again := numeric.RationalConstraint{Coeffs: reRats, RHS: new(big.Rat).SetInt(rhs)}
	coeffs2, rhs2 := numeric.ScaleToInteger(again)

	for i := range coeffs {
		if coeffs[i].Cmp(coeffs2[i]) != 0 {
			t.Errorf("coeff %d not idempotent: %v vs %v", i, coeffs[i], coeffs2[i])
		}
	}
	if rhs.Cmp(rhs2) != 0 {
		t.Errorf("rhs not idempotent: %v vs %v", rhs, rhs2)
	}
}

func TestNormalizeByReferenceEqualBounds(t *testing.T) {
	got := numeric.NormalizeByReference(big.NewRat(5, 1), big.NewRat(3, 1), big.NewRat(3, 1))
	if got.Cmp(big.NewRat(0, 1)) != 0 {
		t.Errorf("expected 0 when high == low, got %v", got)
	}
}

func TestNormalizeByReference(t *testing.T) {
	got := numeric.NormalizeByReference(big.NewRat(15, 1), big.NewRat(10, 1), big.NewRat(20, 1))
	want := big.NewRat(1, 2)
	if got.Cmp(want) != 0 {
		t.Errorf("NormalizeByReference = %v, want %v", got, want)
	}
}

func TestPercentileSinglePoint(t *testing.T) {
	got := numeric.Percentile([]*big.Rat{big.NewRat(42, 1)}, 50)
	if got.Cmp(big.NewRat(42, 1)) != 0 {
		t.Errorf("Percentile of single-elem slice = %v, want 42", got)
	}
}

func TestPercentileBounds(t *testing.T) {
	values := []*big.Rat{big.NewRat(0, 1), big.NewRat(10, 1), big.NewRat(20, 1)}
	if got := numeric.Percentile(values, 0); got.Cmp(values[0]) != 0 {
		t.Errorf("p0 = %v, want %v", got, values[0])
	}
	if got := numeric.Percentile(values, 100); got.Cmp(values[2]) != 0 {
		t.Errorf("p100 = %v, want %v", got, values[2])
	}
}

type fakeRNG struct{ values []float64 }

func (f *fakeRNG) Float64() float64 {
	v := f.values[0]
	f.values = f.values[1:]
	return v
}
func (f *fakeRNG) Intn(n int) int { return 0 }

func TestRouletteWheelPicksProportionally(t *testing.T) {
	r := &fakeRNG{values: []float64{0.0}} // target = 0
	idx := numeric.RouletteWheel(r, []float64{1, 2, 3})
	if idx != 0 {
		t.Errorf("expected index 0 for target 0, got %d", idx)
	}

	r2 := &fakeRNG{values: []float64{0.99}} // target ~ 0.99*6 = 5.94, falls in last bucket
	idx2 := numeric.RouletteWheel(r2, []float64{1, 2, 3})
	if idx2 != 2 {
		t.Errorf("expected index 2 for near-total target, got %d", idx2)
	}
}

func TestRouletteWheelZeroWeightFallsBackToUniform(t *testing.T) {
	r := &fakeRNG{values: []float64{}}
	idx := numeric.RouletteWheel(r, []float64{0, 0, 0})
	if idx != 0 {
		t.Errorf("expected fallback Intn(len) result 0, got %d", idx)
	}
}
