package strategy

// DayPhase of the per-day state machine
type DayPhase string

const (
	PhaseIdle       DayPhase = "idle"
	PhaseTradeTaken DayPhase = "trade_taken"
)

// DayState is everything the strategy remembers within one trading day.
// The zero value is the start-of-day state.
type DayState struct {
	TradeTaken   bool
	ActiveGap    *GapPattern
	ActiveOrders []OrderIntent
}

// Phase derives the state machine position
func (s DayState) Phase() DayPhase {
	if s.TradeTaken {
		return PhaseTradeTaken
	}
	return PhaseIdle
}

// WithGap records the most recent gap of interest
func (s DayState) WithGap(g GapPattern) DayState {
	s.ActiveGap = &g
	return s
}

// WithTrade moves to TradeTaken; no further entries until Reset
func (s DayState) WithTrade(intent OrderIntent) DayState {
	s.TradeTaken = true
	orders := make([]OrderIntent, 0, len(s.ActiveOrders)+1)
	orders = append(orders, s.ActiveOrders...)
	s.ActiveOrders = append(orders, intent)
	return s
}

// OpenTrade returns the intent that moved the day to TradeTaken
func (s DayState) OpenTrade() (OrderIntent, bool) {
	if !s.TradeTaken || len(s.ActiveOrders) == 0 {
		return OrderIntent{}, false
	}
	return s.ActiveOrders[len(s.ActiveOrders)-1], true
}

// Reset returns the start-of-day state
func (s DayState) Reset() DayState {
	return DayState{}
}
