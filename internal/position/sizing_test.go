package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name       string
		winProb    float64
		payoff     float64
		multiplier float64
		want       float64
	}{
		{"coin flip at 1R has no edge", 0.5, 1, HalfKelly, 0},
		{"coin flip at 2R", 0.5, 2, HalfKelly, 0.125},
		{"full kelly at 2R", 0.5, 2, 1, 0.25},
		{"large edge clamps to cap", 0.9, 2, 1, MaxKellyFraction},
		{"0.1R payoff has negative edge under p(b+1)-1", 0.9, 0.1, HalfKelly, 0},
		{"zero payoff", 0.6, 0, HalfKelly, 0},
		{"negative payoff", 0.6, -1, HalfKelly, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KellyFraction(tt.winProb, tt.payoff, tt.multiplier), 1e-12)
		})
	}
}

func TestBreakevenWinRate(t *testing.T) {
	assert.InDelta(t, 0.5, BreakevenWinRate(1), 1e-12)
	assert.InDelta(t, 1.0/3.0, BreakevenWinRate(2), 1e-12)
	assert.Equal(t, 1.0, BreakevenWinRate(0))
}

func TestEqualFractions(t *testing.T) {
	assert.Nil(t, EqualFractions(0))
	assert.Equal(t, []float64{1}, EqualFractions(1))
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, EqualFractions(4), 1e-12)
}

func TestSplitQuantity(t *testing.T) {
	third := 1.0 / 3.0

	tests := []struct {
		name      string
		quantity  int
		fractions []float64
		want      []int
	}{
		{"single leg", 3, []float64{1}, []int{3}},
		{"even thirds", 3, []float64{third, third, third}, []int{1, 1, 1}},
		{"one contract over three legs", 1, []float64{third, third, third}, []int{1, 0, 0}},
		{"remainder to first legs", 5, []float64{third, third, third}, []int{2, 2, 1}},
		{"uneven fractions", 10, []float64{0.5, 0.3, 0.2}, []int{5, 3, 2}},
		{"zero quantity", 0, []float64{0.5, 0.5}, []int{0, 0}},
		{"no legs", 2, nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legs := SplitQuantity(tt.quantity, tt.fractions)
			assert.Equal(t, tt.want, legs)
		})
	}
}
