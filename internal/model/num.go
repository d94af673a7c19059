package model

import "github.com/shopspring/decimal"

// DivisionPrecision is the number of fractional digits kept by Div.
const DivisionPrecision = 28

var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Two     = decimal.NewFromInt(2)
	Hundred = decimal.NewFromInt(100)
)

// Div divides with DivisionPrecision fractional digits, rounding half away from
// zero. A zero divisor yields zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionPrecision)
}

// Inv returns 1/d, or zero for a zero input.
func Inv(d decimal.Decimal) decimal.Decimal {
	return Div(One, d)
}

// Percent returns d × pct / 100.
func Percent(d, pct decimal.Decimal) decimal.Decimal {
	return Div(d.Mul(pct), Hundred)
}

// FloorTo truncates d towards negative infinity at the given number of decimals.
// A negative precision leaves d untouched.
func FloorTo(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		return d
	}
	return d.RoundFloor(places)
}

// CeilTo rounds d towards positive infinity at the given number of decimals.
func CeilTo(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		return d
	}
	return d.RoundCeil(places)
}

func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Mean returns the arithmetic mean of values, or zero when empty.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return Div(sum, decimal.NewFromInt(int64(len(values))))
}
