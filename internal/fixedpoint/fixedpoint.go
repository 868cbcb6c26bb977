// Package fixedpoint implements the exact scaled-integer arithmetic the
// matching and accounting core runs on.
//
// Every price, quantity-notional, and P&L figure in this module is a
// Fixed: an int64 scaled by Scale (10^8). Floating point never enters the
// hot path: two Fixed values compare and add exactly, with no rounding
// drift across millions of fills. Price * quantity (MulInt) is computed as
// a 128-bit product with math/bits and checked to fit in 64 bits; the
// scaled-by-scaled operations (Mul, Div) go through math/big to rescale,
// truncating toward zero.
package fixedpoint

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Scale is the number of fractional decimal digits every Fixed carries.
const Scale = 100_000_000 // 10^8

// Fixed is a scaled int64. A value of 1 Scale unit represents 1.0.
type Fixed int64

// Zero is the additive identity.
const Zero Fixed = 0

// OverflowError is raised when an arithmetic operation cannot be
// represented in a 64-bit Fixed. Per the accounting core's error model
// this is always fatal: it is never recovered from inline, only caught at
// the pipeline boundary and turned into an engine_fault.
type OverflowError struct {
	Op   string
	A, B Fixed
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("fixedpoint: overflow in %s(%d, %d)", e.Op, e.A, e.B)
}

// FromInt builds a Fixed from a whole number of units.
func FromInt(n int64) Fixed {
	return Fixed(n * Scale)
}

// FromFloat builds a Fixed from a float64. Only used at system boundaries
// (parsing a config file or a test fixture), never inside the matching
// or accounting pipeline itself.
func FromFloat(f float64) Fixed {
	return Fixed(f * Scale)
}

// Float64 converts back to a float64, for display/logging only.
func (f Fixed) Float64() float64 {
	return float64(f) / Scale
}

// Add returns f+g. Overflow panics with *OverflowError.
func (f Fixed) Add(g Fixed) Fixed {
	sum := int64(f) + int64(g)
	if (g > 0 && sum < int64(f)) || (g < 0 && sum > int64(f)) {
		panic(&OverflowError{Op: "add", A: f, B: g})
	}
	return Fixed(sum)
}

// Sub returns f-g.
func (f Fixed) Sub(g Fixed) Fixed {
	return f.Add(-g)
}

// Neg returns -f.
func (f Fixed) Neg() Fixed {
	return -f
}

// Abs returns the absolute value of f.
func (f Fixed) Abs() Fixed {
	if f < 0 {
		return -f
	}
	return f
}

// Cmp returns -1, 0, or 1 as f is less than, equal to, or greater than g.
func (f Fixed) Cmp(g Fixed) int {
	switch {
	case f < g:
		return -1
	case f > g:
		return 1
	default:
		return 0
	}
}

// MulInt scales f by a plain integer multiplier (e.g. a uint32 quantity).
// This is the common case: price * qty where qty carries no fractional
// scale of its own, so no rescale is needed. The magnitudes are multiplied
// into a 128-bit product with bits.Mul64; a product that does not fit in
// an int64 panics with *OverflowError.
func (f Fixed) MulInt(n int64) Fixed {
	hi, lo := bits.Mul64(uint64(absInt64(int64(f))), uint64(absInt64(n)))
	if hi != 0 {
		panic(&OverflowError{Op: "mulint", A: f, B: Fixed(n)})
	}
	result := int64(lo)
	if result < 0 {
		panic(&OverflowError{Op: "mulint", A: f, B: Fixed(n)})
	}
	if (f < 0) != (n < 0) {
		result = -result
	}
	return Fixed(result)
}

// Mul multiplies two Fixed values that are both already scaled by Scale,
// such as rate * notional (the price-collar and margin-ratio checks in
// the risk gate). The raw int64 product needs 2*Scale of fixed-point
// precision, so the intermediate is computed in arbitrary precision and
// rescaled by dividing back down by Scale, truncating toward zero, before
// narrowing back to int64 and checking the result still fits.
//
// This is not the per-fill hot path (that is MulInt, price*qty, which
// never rescales), Mul is used for the handful of rate*rate-like
// computations in the risk gate, so the big.Int allocation cost here is
// immaterial.
func (f Fixed) Mul(g Fixed) Fixed {
	prod := new(big.Int).Mul(big.NewInt(int64(f)), big.NewInt(int64(g)))
	prod.Quo(prod, big.NewInt(Scale))
	if !prod.IsInt64() {
		panic(&OverflowError{Op: "mul", A: f, B: g})
	}
	return Fixed(prod.Int64())
}

// Div divides f by g, truncating toward zero. Division by zero panics
// with *OverflowError rather than returning +/-Inf, since Fixed has no
// infinity representation.
func (f Fixed) Div(g Fixed) Fixed {
	if g == 0 {
		panic(&OverflowError{Op: "div", A: f, B: g})
	}
	num := new(big.Int).Mul(big.NewInt(int64(f)), big.NewInt(Scale))
	num.Quo(num, big.NewInt(int64(g)))
	if !num.IsInt64() {
		panic(&OverflowError{Op: "div", A: f, B: g})
	}
	return Fixed(num.Int64())
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// String renders a Fixed as a decimal string with up to 8 fractional
// digits, trimming trailing zeros.
func (f Fixed) String() string {
	neg := f < 0
	v := int64(f)
	if neg {
		v = -v
	}
	whole := v / Scale
	frac := v % Scale
	s := fmt.Sprintf("%d.%08d", whole, frac)
	// Trim trailing zeros but keep at least one fractional digit.
	end := len(s)
	for end > 0 && s[end-1] == '0' {
		end--
	}
	if s[end-1] == '.' {
		end++
	}
	s = s[:end]
	if neg {
		s = "-" + s
	}
	return s
}
