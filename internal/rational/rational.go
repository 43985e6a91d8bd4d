// Package rational provides the exact frame-rate type used by video
// metadata. No third-party library in the example corpus offers exact
// rational arithmetic, so this wraps the standard library's math/big.Rat
// the same way the original Python implementation returns
// fractions.Fraction from average_frame_rate().
package rational

import (
	"fmt"
	"math/big"
)

// Rate is an exact numerator/denominator frame rate. Both fields are
// always positive; the zero value is invalid.
type Rate struct {
	Num, Den int64
}

// New builds a Rate, reducing it to lowest terms via big.Rat.
func New(num, den int64) (Rate, error) {
	if num <= 0 || den <= 0 {
		return Rate{}, fmt.Errorf("rational: numerator and denominator must be positive, got %d/%d", num, den)
	}
	r := big.NewRat(num, den)
	return Rate{Num: r.Num().Int64(), Den: r.Denom().Int64()}, nil
}

// Float64 returns the rate as a floating point approximation, for
// display and ETA math only — never for exactness-sensitive logic.
func (r Rate) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Equal reports whether two rates are the same exact value.
func (r Rate) Equal(o Rate) bool {
	return big.NewRat(r.Num, r.Den).Cmp(big.NewRat(o.Num, o.Den)) == 0
}
