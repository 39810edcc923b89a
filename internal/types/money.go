// README: Common money value object used across modules (amounts in minor units).
package types

import "math"

type Money struct {
	Amount   int64
	Currency string
}

// RoundMinor rounds a fractional minor-unit amount half away from zero.
func RoundMinor(v float64) int64 {
	return int64(math.Round(v))
}
