package scaled

import (
	"math"
	"testing"
)

const smallDiff = 1e-10

func TestRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1e-300, 0.25, 0.5, 1, 2, 1e300} {
		s := New(v)
		if math.Abs(s.Float64()-v) > smallDiff*v {
			t.Errorf("round trip of %g: got %g", v, s.Float64())
		}
	}
}

func TestUnderflowProduct(t *testing.T) {
	// 1e-5 multiplied 100 times underflows float64 (1e-500)
	p := New(1)
	for i := 0; i < 100; i++ {
		p = p.MulFloat(1e-5)
	}
	ref := 100 * math.Log(1e-5)
	if math.Abs(p.Log()-ref) > 1e-6 {
		t.Errorf("expected log %f, got %f", ref, p.Log())
	}
	if p.IsZero() {
		t.Error("product should not flush to zero")
	}
}

func TestAdd(t *testing.T) {
	a := New(0.375)
	b := New(0.125)
	if d := a.Add(b).Float64() - 0.5; math.Abs(d) > smallDiff {
		t.Errorf("0.375+0.125 off by %g", d)
	}
	if !New(0).Add(a).Less(New(0.376)) || a.Add(New(0)).Float64() != a.Float64() {
		t.Error("zero is not neutral for addition")
	}
	// adding a negligible value keeps the dominant one
	tiny := New(1)
	for i := 0; i < 100; i++ {
		tiny = tiny.MulFloat(1e-5)
	}
	if d := a.Add(tiny).Float64() - 0.375; math.Abs(d) > smallDiff {
		t.Errorf("dominant value perturbed by %g", d)
	}
}

func TestMulDiv(t *testing.T) {
	a := New(0.3)
	b := New(0.2)
	if d := a.Mul(b).Float64() - 0.06; math.Abs(d) > smallDiff {
		t.Errorf("0.3*0.2 off by %g", d)
	}
	if d := a.Div(b).Float64() - 1.5; math.Abs(d) > smallDiff {
		t.Errorf("0.3/0.2 off by %g", d)
	}
	if d := a.DivFloat(2).Float64() - 0.15; math.Abs(d) > smallDiff {
		t.Errorf("0.3/2 off by %g", d)
	}
}

func TestSub(t *testing.T) {
	a := New(0.5)
	b := New(0.2)
	if d := a.Sub(b).Float64() - 0.3; math.Abs(d) > smallDiff {
		t.Errorf("0.5-0.2 off by %g", d)
	}
	if !b.Sub(a).IsZero() {
		t.Error("0.2-0.5 should clamp to zero")
	}
	if !a.Sub(a).IsZero() {
		t.Error("x-x should be zero")
	}
}

func TestCmp(t *testing.T) {
	var zero Real
	small := New(1).MulFloat(1e-5)
	for i := 0; i < 50; i++ {
		small = small.MulFloat(1e-5)
	}
	big := New(0.9)
	if !zero.Less(small) || !small.Less(big) || big.Less(small) {
		t.Error("ordering violated")
	}
	if zero.Cmp(New(0)) != 0 {
		t.Error("zero != zero")
	}
}

func TestIsProba(t *testing.T) {
	for _, v := range []float64{0, 1e-200, 0.5, 1} {
		if !New(v).IsProba() {
			t.Errorf("%g should be a probability", v)
		}
	}
	if New(1.1).IsProba() {
		t.Error("1.1 should not be a probability")
	}
	if New(2).MulFloat(3).IsProba() {
		t.Error("6 should not be a probability")
	}
}

func TestSuperMult(t *testing.T) {
	a, b, c, d := New(0.1), New(0.2), New(0.3), New(0.4)
	ref := (0.1*0.2 + 0.3*0.4) * 0.5
	if diff := SuperMult1(a, b, c, d, 0.5).Float64() - ref; math.Abs(diff) > smallDiff {
		t.Errorf("SuperMult1 off by %g", diff)
	}
	ref = (0.1*0.6 + 0.3*0.7) * 0.5
	if diff := SuperMult2(a, 0.6, c, 0.7, 0.5).Float64() - ref; math.Abs(diff) > smallDiff {
		t.Errorf("SuperMult2 off by %g", diff)
	}
}
