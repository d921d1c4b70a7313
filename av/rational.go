package av

import (
	"fmt"
	"math/big"
)

// Rational is a time base: seconds per tick, kept exact as Num/Den.
// A zero Den is a precondition violation of whoever produced the value.
type Rational struct {
	Num int
	Den int
}

func (self Rational) String() string {
	return fmt.Sprintf("%d/%d", self.Num, self.Den)
}

func (self Rational) Valid() bool {
	return self.Num > 0 && self.Den > 0
}

func (self Rational) Float64() float64 {
	f, _ := self.rat().Float64()
	return f
}

func (self Rational) rat() *big.Rat {
	return big.NewRat(int64(self.Num), int64(self.Den))
}

// ToTicks converts seconds into ticks of this time base, round(seconds / tb).
func (self Rational) ToTicks(seconds float64) int64 {
	s := new(big.Rat)
	if s.SetFloat64(seconds) == nil {
		return 0
	}
	s.Quo(s, self.rat())
	return roundRat(s)
}

// ToSeconds converts ticks of this time base into seconds, ticks * tb.
func (self Rational) ToSeconds(ticks int64) float64 {
	s := new(big.Rat).SetInt64(ticks)
	s.Mul(s, self.rat())
	f, _ := s.Float64()
	return f
}

// Rescale converts ts expressed in the from time base into this time base, rounding to the
// nearest tick (halves away from zero).
func (self Rational) Rescale(ts int64, from Rational) int64 {
	return RescaleTs(ts, from, self)
}

// RescaleTs converts ts from one time base to another. NoTimestamp passes through unchanged.
func RescaleTs(ts int64, from, to Rational) int64 {
	if ts == NoTimestamp {
		return ts
	}
	if from == to {
		return ts
	}
	r := new(big.Rat).SetInt64(ts)
	r.Mul(r, from.rat())
	r.Quo(r, to.rat())
	return roundRat(r)
}

func roundRat(r *big.Rat) int64 {
	num := new(big.Int).Set(r.Num())
	den := r.Denom()
	neg := num.Sign() < 0
	if neg {
		num.Neg(num)
	}
	// floor((2*num + den) / (2*den))
	num.Lsh(num, 1)
	num.Add(num, den)
	q := new(big.Int).Quo(num, new(big.Int).Lsh(den, 1))
	if neg {
		q.Neg(q)
	}
	return q.Int64()
}
