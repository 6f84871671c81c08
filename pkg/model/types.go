package model

import "time"

// Candle represents a single OHLCV bar
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Resolution is the bar interval requested from a data source
type Resolution string

const (
	ResolutionMinute Resolution = "1m"
	ResolutionDaily  Resolution = "1d"
)

// Instrument identifies a tradable contract
type Instrument struct {
	Symbol   string  `json:"symbol"`   // e.g. NQ=F
	Name     string  `json:"name"`     // e.g. E-mini Nasdaq-100
	Exchange string  `json:"exchange"` // CME, CBOT, NYMEX
	TickSize float64 `json:"tick_size"`
}

// IntradayData represents one trading session's intraday candles
type IntradayData struct {
	Symbol  string    `json:"symbol"`
	Date    time.Time `json:"date"`
	Candles []Candle  `json:"candles"`
}

// LastClose returns the close of the final candle, or 0 for an empty session
func (d IntradayData) LastClose() float64 {
	if len(d.Candles) == 0 {
		return 0
	}
	return d.Candles[len(d.Candles)-1].Close
}

// DailyCandle collapses a session's intraday candles into a single daily bar
func (d IntradayData) DailyCandle() (Candle, bool) {
	if len(d.Candles) == 0 {
		return Candle{}, false
	}

	first := d.Candles[0]
	daily := Candle{
		Time: d.Date,
		Open: first.Open,
		High: first.High,
		Low:  first.Low,
	}
	for _, c := range d.Candles {
		if c.High > daily.High {
			daily.High = c.High
		}
		if c.Low < daily.Low {
			daily.Low = c.Low
		}
		daily.Volume += c.Volume
	}
	daily.Close = d.LastClose()
	return daily, true
}
