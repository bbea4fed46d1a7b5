// Package scaled provides an extended-range non-negative real type.
// Reconciliation recurrences multiply probabilities over hundreds of
// branches; plain float64 underflows on modest trees.
package scaled

import "math"

const (
	// logBase is the natural logarithm of the base (2^64).
	logBase = 64 * math.Ln2
	// baseExp is the binary exponent of the base.
	baseExp = 64
)

// Real is a non-negative real number mantissa*2^(64*exp). The zero
// value is the number zero. Non-zero values keep the mantissa in
// [2^-64, 1).
type Real struct {
	m float64
	e int
}

// New creates a Real from a float64. Negative input panics: the type
// represents probabilities and their sums only.
func New(v float64) Real {
	if v < 0 {
		panic("scaled: negative value")
	}
	return norm(v, 0)
}

func norm(m float64, e int) Real {
	if m == 0 {
		return Real{}
	}
	frac, exp := math.Frexp(m)
	// realign the binary exponent to a multiple of 64,
	// keeping the mantissa in [2^-64, 1)
	d := floorDiv(exp-1, baseExp) + 1
	return Real{math.Ldexp(frac, exp-d*baseExp), e + d}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// IsZero returns true for the number zero.
func (v Real) IsZero() bool {
	return v.m == 0
}

// Add returns v+w.
func (v Real) Add(w Real) Real {
	if v.m == 0 {
		return w
	}
	if w.m == 0 {
		return v
	}
	if v.e < w.e {
		v, w = w, v
	}
	d := v.e - w.e
	if d > 3 {
		// w is below the precision of v
		return v
	}
	return norm(v.m+math.Ldexp(w.m, -d*baseExp), v.e)
}

// Sub returns v-w, clamped at zero. The transfer-sum corrections
// subtract a partial sum from a total; a mathematically non-negative
// result can round slightly below zero.
func (v Real) Sub(w Real) Real {
	if w.m == 0 {
		return v
	}
	if v.m == 0 {
		return Real{}
	}
	c := v.Cmp(w)
	if c <= 0 {
		return Real{}
	}
	d := v.e - w.e
	if d > 3 {
		return v
	}
	return norm(v.m-math.Ldexp(w.m, -d*baseExp), v.e)
}

// Mul returns v*w.
func (v Real) Mul(w Real) Real {
	if v.m == 0 || w.m == 0 {
		return Real{}
	}
	return norm(v.m*w.m, v.e+w.e)
}

// MulFloat returns v*x for a plain non-negative float64 x.
func (v Real) MulFloat(x float64) Real {
	if v.m == 0 || x == 0 {
		return Real{}
	}
	if x < 0 {
		panic("scaled: negative factor")
	}
	return norm(v.m*x, v.e)
}

// Div returns v/w. Division by zero panics.
func (v Real) Div(w Real) Real {
	if w.m == 0 {
		panic("scaled: division by zero")
	}
	if v.m == 0 {
		return Real{}
	}
	return norm(v.m/w.m, v.e-w.e)
}

// DivFloat returns v/x for a plain positive float64 x.
func (v Real) DivFloat(x float64) Real {
	if x <= 0 {
		panic("scaled: non-positive divisor")
	}
	if v.m == 0 {
		return Real{}
	}
	return norm(v.m/x, v.e)
}

// Cmp compares v and w: -1 if v<w, 0 if equal, +1 if v>w. Zero is
// smaller than any non-zero value.
func (v Real) Cmp(w Real) int {
	switch {
	case v.m == 0 && w.m == 0:
		return 0
	case v.m == 0:
		return -1
	case w.m == 0:
		return 1
	case v.e != w.e:
		if v.e < w.e {
			return -1
		}
		return 1
	case v.m < w.m:
		return -1
	case v.m > w.m:
		return 1
	}
	return 0
}

// Less returns true if v < w.
func (v Real) Less(w Real) bool {
	return v.Cmp(w) < 0
}

// Log returns the natural logarithm; -Inf for zero.
func (v Real) Log() float64 {
	if v.m == 0 {
		return math.Inf(-1)
	}
	return math.Log(v.m) + float64(v.e)*logBase
}

// Float64 converts back to float64, flushing to 0 or +Inf outside the
// double range.
func (v Real) Float64() float64 {
	if v.m == 0 {
		return 0
	}
	return math.Ldexp(v.m, v.e*baseExp)
}

// IsProba returns true if the value is a probability (within a small
// tolerance above 1 for accumulated rounding).
func (v Real) IsProba() bool {
	if math.IsNaN(v.m) || v.m < 0 {
		return false
	}
	if v.m == 0 || v.e < 1 {
		return true
	}
	return v.e == 1 && v.Float64() <= 1+1e-6
}

// SuperMult1 computes (a*b + c*d) * ps with a single renormalization
// per product; ps is a plain probability.
func SuperMult1(a, b, c, d Real, ps float64) Real {
	return a.Mul(b).Add(c.Mul(d)).MulFloat(ps)
}

// SuperMult2 computes (a*x + c*y) * ps where x and y are plain
// probabilities.
func SuperMult2(a Real, x float64, c Real, y float64, ps float64) Real {
	return a.MulFloat(x).Add(c.MulFloat(y)).MulFloat(ps)
}
