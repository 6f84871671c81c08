package strategy

import "fmt"

// BiasEstimator keeps a simple moving average over the last N daily closes
type BiasEstimator struct {
	window int
	closes []float64 // ring buffer
	next   int
	count  int
}

// NewBiasEstimator rejects non-positive windows
func NewBiasEstimator(window int) (*BiasEstimator, error) {
	if window <= 0 {
		return nil, fmt.Errorf("sma window must be positive, got %d", window)
	}
	return &BiasEstimator{
		window: window,
		closes: make([]float64, window),
	}, nil
}

// Seed pushes historical daily closes, oldest first
func (b *BiasEstimator) Seed(closes []float64) {
	for _, c := range closes {
		b.push(c)
	}
}

// Update records a completed day's close and classifies it against the new average
func (b *BiasEstimator) Update(dailyClose float64) Bias {
	b.push(dailyClose)
	return b.Classify(dailyClose)
}

// Classify compares a price with the current average.
// A price equal to the average is Bearish.
func (b *BiasEstimator) Classify(price float64) Bias {
	if !b.Ready() {
		return BiasUnknown
	}
	if price > b.Value() {
		return BiasBullish
	}
	return BiasBearish
}

// Ready reports whether N closes have been observed
func (b *BiasEstimator) Ready() bool {
	return b.count >= b.window
}

// Value is the current average, 0 until ready
func (b *BiasEstimator) Value() float64 {
	if !b.Ready() {
		return 0
	}
	return Mean(b.closes)
}

// Window returns N
func (b *BiasEstimator) Window() int {
	return b.window
}

func (b *BiasEstimator) push(c float64) {
	b.closes[b.next] = c
	b.next = (b.next + 1) % b.window
	if b.count < b.window {
		b.count++
	}
}
