package strategy

import (
	"fvgtrader/pkg/model"
)

// CalculateMA calculates Simple Moving Average of closes for the given period
func CalculateMA(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	return Mean(Closes(candles[len(candles)-period:]))
}

// Closes extracts close prices
func Closes(candles []model.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Mean is the arithmetic mean, 0 for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
