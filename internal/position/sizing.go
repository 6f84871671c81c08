package position

import (
	"math"
)

const (
	// MaxKellyFraction caps the suggested fraction of capital per trade
	MaxKellyFraction = 0.5

	// HalfKelly is the default multiplier applied to full Kelly
	HalfKelly = 0.5
)

// KellyFraction returns the fractional-Kelly sizing guidance for a bet that
// wins payoff R with probability winProb and loses 1R otherwise.
//
//	full = (p·(b+1) − 1) / b
//
// The result is scaled by multiplier and clamped to [0, MaxKellyFraction].
// A non-positive payoff yields 0. The loss term is 1, not q: with q a coin
// flip at 1R would size at 0.5 instead of having no edge.
func KellyFraction(winProb, payoff, multiplier float64) float64 {
	if payoff <= 0 || math.IsNaN(payoff) || math.IsNaN(winProb) {
		return 0
	}

	full := (winProb*(payoff+1) - 1) / payoff
	f := full * multiplier

	return math.Max(0, math.Min(f, MaxKellyFraction))
}

// BreakevenWinRate is the win rate at which a payoff-R bet has zero expectancy
func BreakevenWinRate(payoff float64) float64 {
	if payoff <= 0 {
		return 1
	}
	return 1 / (1 + payoff)
}

// EqualFractions spreads a position evenly over n exits
func EqualFractions(n int) []float64 {
	if n <= 0 {
		return nil
	}
	fractions := make([]float64, n)
	for i := range fractions {
		fractions[i] = 1 / float64(n)
	}
	return fractions
}

// SplitQuantity divides quantity contracts into legs by fraction.
// Each leg gets floor(quantity·fraction); contracts left over by rounding
// go to the earliest legs, one each. Legs may be zero when quantity is
// smaller than the number of legs.
func SplitQuantity(quantity int, fractions []float64) []int {
	legs := make([]int, len(fractions))
	if quantity <= 0 || len(fractions) == 0 {
		return legs
	}

	assigned := 0
	for i, f := range fractions {
		legs[i] = int(math.Floor(float64(quantity)*f + 1e-9))
		assigned += legs[i]
	}

	for i := 0; assigned < quantity; i = (i + 1) % len(legs) {
		legs[i]++
		assigned++
	}
	for i := len(legs) - 1; assigned > quantity && i >= 0; i-- {
		// fractions summing past 1 are rejected by config; trim from the far legs anyway
		for legs[i] > 0 && assigned > quantity {
			legs[i]--
			assigned--
		}
	}

	return legs
}
