// Package strike computes ATM strikes and the surrounding strike ladder.
// Pure arithmetic, no I/O; ladders are regenerated per request and never
// cached across calls.
package strike

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSpotPrice reports a spot price that cannot anchor a ladder
// (non-positive or NaN).
var ErrInvalidSpotPrice = errors.New("invalid spot price")

// DefaultSides is the number of strikes generated on each side of the ATM
// strike. Wide enough for gamma exposure work around the money.
const DefaultSides = 20

// SelectATM rounds spot to the nearest multiple of increment, half up:
// 5003 → 5005 and 5002 → 5000 on a 5-point grid.
func SelectATM(spot, increment float64) (float64, error) {
	if math.IsNaN(spot) || spot <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSpotPrice, spot)
	}
	if increment <= 0 {
		increment = 5
	}
	return math.Floor(spot/increment+0.5) * increment, nil
}

// BuildLadder returns 2*sides+1 strikes centered on atm, stepped by
// increment, ascending.
func BuildLadder(atm, increment float64, sides int) []float64 {
	out := make([]float64, 0, 2*sides+1)
	for i := -sides; i <= sides; i++ {
		out = append(out, atm+float64(i)*increment)
	}
	return out
}
