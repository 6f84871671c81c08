package strategy

import (
	"context"
	"time"

	"fvgtrader/pkg/model"
)

// Bias is the day's assumed trend direction
type Bias string

const (
	BiasUnknown Bias = "UNKNOWN"
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
)

// GapKind is the polarity of a fair value gap
type GapKind string

const (
	GapBullish GapKind = "bullish" // first high < third low
	GapBearish GapKind = "bearish" // first low > third high
)

// Matches reports whether the gap polarity agrees with the bias
func (k GapKind) Matches(b Bias) bool {
	return (k == GapBullish && b == BiasBullish) || (k == GapBearish && b == BiasBearish)
}

// Direction of an entry
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Sign is +1 for long, -1 for short
func (d Direction) Sign() int {
	if d == Short {
		return -1
	}
	return 1
}

// GapPattern is a three-candle fair value gap. Bar Index+1 is the gap candle.
type GapPattern struct {
	Kind         GapKind   `json:"kind"`
	FirstBarHigh float64   `json:"first_bar_high"`
	FirstBarLow  float64   `json:"first_bar_low"`
	ThirdBarHigh float64   `json:"third_bar_high"`
	ThirdBarLow  float64   `json:"third_bar_low"`
	Index        int       `json:"index"`
	FirstBarTime time.Time `json:"first_bar_time"`
}

// Indices returns the positions of the three bars in the scanned window
func (g GapPattern) Indices() [3]int {
	return [3]int{g.Index, g.Index + 1, g.Index + 2}
}

// TakeProfit is one exit leg of a bracket
type TakeProfit struct {
	Multiple float64 `json:"multiple"` // reward in R
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"` // share of the position closed here
	Quantity int     `json:"quantity"`
}

// OrderIntent is the strategy's decision to enter, handed to execution
type OrderIntent struct {
	Symbol        string       `json:"symbol"`
	Time          time.Time    `json:"time"`
	Direction     Direction    `json:"direction"`
	Quantity      int          `json:"quantity"`
	EntryPrice    float64      `json:"entry_price"` // reference close, entry is at market
	Trigger       float64      `json:"trigger"`
	StopLoss      float64      `json:"stop_loss"`
	Risk          float64      `json:"risk"` // per contract, always > 0
	TakeProfits   []TakeProfit `json:"take_profits"`
	KellyFraction float64      `json:"kelly_fraction"` // sizing guidance only
	Bias          Bias         `json:"bias"`
	Gap           GapPattern   `json:"gap"`
}

// LevelPrice returns the price m R away from entry in the trade's favour
func (o OrderIntent) LevelPrice(m float64) float64 {
	return o.EntryPrice + float64(o.Direction.Sign())*m*o.Risk
}

// BarSource is the historical-window query of the data collaborator.
// It may return fewer bars than requested, or none.
type BarSource interface {
	FetchBars(ctx context.Context, symbol string, count int, res model.Resolution) ([]model.Candle, error)
}

// OrderRouter turns intents into broker orders
type OrderRouter interface {
	// SubmitBracket places the entry with its stop and take-profit legs
	SubmitBracket(ctx context.Context, intent OrderIntent) error

	// ManageOpenTrade lets the router adjust working orders on each bar after entry
	ManageOpenTrade(ctx context.Context, intent OrderIntent, bar model.Candle) error

	// Flatten liquidates any position and cancels working orders
	Flatten(ctx context.Context, symbol string) error
}

// Strategy is a per-instrument, callback-driven decision pipeline.
// Calls must be serialized by the caller.
type Strategy interface {
	Name() string
	Symbol() string

	// OnBar processes one newly closed bar
	OnBar(ctx context.Context, bar model.Candle)

	// OnSessionEnd flattens and resets all per-day state
	OnSessionEnd(ctx context.Context)

	// OnDailyClose feeds a completed day's close to the bias estimator
	OnDailyClose(close float64) Bias

	DayState() DayState
}

// Warmer is a Strategy that can be seeded with daily history before the
// first session
type Warmer interface {
	Warmup(daily []model.Candle)
}
