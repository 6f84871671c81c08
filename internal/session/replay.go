package session

import (
	"context"
	"fmt"
	"sync"

	"fvgtrader/pkg/model"
)

// DefaultMaxBars keeps two full days of minute bars
const DefaultMaxBars = 2 * 24 * 60

// Replay is a strategy.BarSource over the bars replayed so far. FetchBars
// never returns a bar later than the one most recently pushed.
type Replay struct {
	symbol  string
	maxBars int

	mu     sync.RWMutex
	minute []model.Candle
	daily  []model.Candle
}

// NewReplay creates an empty buffer for one instrument
func NewReplay(symbol string) *Replay {
	return &Replay{symbol: symbol, maxBars: DefaultMaxBars}
}

// Push appends a closed intraday bar
func (r *Replay) Push(bar model.Candle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minute = append(r.minute, bar)
	if over := len(r.minute) - r.maxBars; over > 0 {
		r.minute = append(r.minute[:0:0], r.minute[over:]...)
	}
}

// PushDaily appends a completed daily bar
func (r *Replay) PushDaily(bar model.Candle) {
	r.mu.Lock()
	r.daily = append(r.daily, bar)
	r.mu.Unlock()
}

// Len returns the number of buffered intraday bars
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.minute)
}

// FetchBars returns up to count of the latest bars, oldest first
func (r *Replay) FetchBars(ctx context.Context, symbol string, count int, res model.Resolution) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if symbol != r.symbol {
		return nil, fmt.Errorf("replay holds %s, not %s", r.symbol, symbol)
	}
	if count <= 0 {
		return nil, fmt.Errorf("bar count must be positive, got %d", count)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var src []model.Candle
	switch res {
	case model.ResolutionMinute:
		src = r.minute
	case model.ResolutionDaily:
		src = r.daily
	default:
		return nil, fmt.Errorf("unsupported resolution %q", res)
	}

	if count > len(src) {
		count = len(src)
	}
	out := make([]model.Candle, count)
	copy(out, src[len(src)-count:])
	return out, nil
}
