package strategy

import (
	"math"
	"time"

	"fvgtrader/internal/calendar"
	"fvgtrader/internal/position"
)

// Rejection explains why Evaluate produced no intent
type Rejection string

const (
	Accepted              Rejection = ""
	RejectOutsideWindow   Rejection = "outside_window"
	RejectNoGap           Rejection = "no_gap"
	RejectBiasUnknown     Rejection = "bias_unknown"
	RejectGapNotAligned   Rejection = "gap_not_aligned"
	RejectInvalidPrice    Rejection = "invalid_price"
	RejectNonPositiveRisk Rejection = "non_positive_risk"
	RejectNotTriggered    Rejection = "not_triggered"
)

// EntryEvaluator decides whether a gap plus the current close confirms an entry.
// It holds no per-day state.
type EntryEvaluator struct {
	window    calendar.Window
	loc       *time.Location
	quantity  int
	multiples []float64
	fractions []float64
	legs      []int
	aligned   bool
	payoff    float64
	kelly     float64
}

// NewEntryEvaluator precomputes leg sizes and Kelly guidance from cfg.
// cfg must already be validated.
func NewEntryEvaluator(cfg Config, loc *time.Location) *EntryEvaluator {
	fractions := cfg.exitFractions()

	// payoff for Kelly is the fraction-weighted target
	var payoff float64
	for i, m := range cfg.RiskRewardLevels {
		payoff += m * fractions[i]
	}

	return &EntryEvaluator{
		window:    cfg.EntryWindow,
		loc:       loc,
		quantity:  cfg.PositionSize,
		multiples: cfg.RiskRewardLevels,
		fractions: fractions,
		legs:      position.SplitQuantity(cfg.PositionSize, fractions),
		aligned:   cfg.RequireAlignedGap,
		payoff:    payoff,
		kelly:     position.KellyFraction(cfg.WinProbability, payoff, cfg.KellyMultiplier),
	}
}

// Evaluate returns an OrderIntent when, at time t, the close confirms an
// entry off gap in the direction of bias. Direction comes from the bias;
// the gap kind only selects which bar bounds the stop.
//
// Long:  trigger first-bar low, stop third-bar low (bullish gap) or third-bar high (bearish gap)
// Short: trigger third-bar high, stop first-bar high (bearish gap) or first-bar low (bullish gap)
func (e *EntryEvaluator) Evaluate(bias Bias, gap *GapPattern, close float64, t time.Time) (*OrderIntent, Rejection) {
	if !e.InWindow(t) {
		return nil, RejectOutsideWindow
	}
	if gap == nil {
		return nil, RejectNoGap
	}
	if bias == BiasUnknown {
		return nil, RejectBiasUnknown
	}
	if e.aligned && !gap.Kind.Matches(bias) {
		return nil, RejectGapNotAligned
	}
	if math.IsNaN(close) || math.IsInf(close, 0) {
		return nil, RejectInvalidPrice
	}

	var (
		dir       Direction
		trigger   float64
		stop      float64
		risk      float64
		triggered bool
	)

	if bias == BiasBullish {
		dir = Long
		trigger = gap.FirstBarLow
		stop = gap.ThirdBarHigh
		if gap.Kind == GapBullish {
			stop = gap.ThirdBarLow
		}
		risk = close - stop
		triggered = close > trigger
	} else {
		dir = Short
		trigger = gap.ThirdBarHigh
		stop = gap.FirstBarLow
		if gap.Kind == GapBearish {
			stop = gap.FirstBarHigh
		}
		risk = stop - close
		triggered = close < trigger
	}

	if risk <= 0 {
		return nil, RejectNonPositiveRisk
	}
	if !triggered {
		return nil, RejectNotTriggered
	}

	intent := &OrderIntent{
		Time:          t,
		Direction:     dir,
		Quantity:      e.quantity,
		EntryPrice:    close,
		Trigger:       trigger,
		StopLoss:      stop,
		Risk:          risk,
		KellyFraction: e.kelly,
		Bias:          bias,
		Gap:           *gap,
	}

	intent.TakeProfits = make([]TakeProfit, len(e.multiples))
	for i, m := range e.multiples {
		intent.TakeProfits[i] = TakeProfit{
			Multiple: m,
			Price:    intent.LevelPrice(m),
			Fraction: e.fractions[i],
			Quantity: e.legs[i],
		}
	}

	return intent, Accepted
}

// InWindow reports whether t falls inside the half-open entry window
func (e *EntryEvaluator) InWindow(t time.Time) bool {
	return e.window.Contains(calendar.ClockOf(t, e.loc))
}

// KellyFraction is the sizing guidance attached to every intent
func (e *EntryEvaluator) KellyFraction() float64 {
	return e.kelly
}

// Payoff is the fraction-weighted reward multiple across all legs
func (e *EntryEvaluator) Payoff() float64 {
	return e.payoff
}
