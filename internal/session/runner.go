package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fvgtrader/internal/calendar"
	"fvgtrader/internal/provider"
	"fvgtrader/internal/strategy"
	"fvgtrader/pkg/model"
)

// Options for a replay run
type Options struct {
	Days       int // intraday sessions to replay
	WarmupDays int // daily closes fed to the bias before the first session
	Interval   int // bar size in minutes
}

// DefaultOptions replays a trading week of minute bars
func DefaultOptions() Options {
	return Options{Days: 5, WarmupDays: 30, Interval: 1}
}

// DayReport summarizes one replayed session
type DayReport struct {
	Date       string                `json:"date"`
	Bars       int                   `json:"bars"`
	RTHBars    int                   `json:"rth_bars"` // bars inside the regular session
	Traded     bool                  `json:"traded"`
	Trade      *strategy.OrderIntent `json:"trade,omitempty"`
	DailyClose float64               `json:"daily_close"`
	NextBias   strategy.Bias         `json:"next_bias"` // bias after this close
}

// Report is the outcome of one instrument's replay
type Report struct {
	Symbol   string        `json:"symbol"`
	Strategy string        `json:"strategy"`
	Period   string        `json:"period"`
	Warmup   int           `json:"warmup_closes"`
	Trades   int           `json:"trades"`
	Days     []DayReport   `json:"days"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Runner replays stored sessions through a strategy:
// bars in order, then session end, then the daily close.
type Runner struct {
	provider provider.Provider
	schedule calendar.Schedule
	opts     Options
	log      zerolog.Logger
}

// NewRunner 생성자
func NewRunner(p provider.Provider, opts Options, logger zerolog.Logger) *Runner {
	if opts.Days <= 0 {
		opts.Days = DefaultOptions().Days
	}
	if opts.Interval <= 0 {
		opts.Interval = 1
	}
	return &Runner{
		provider: p,
		schedule: calendar.DefaultSchedule(),
		opts:     opts,
		log:      logger.With().Str("component", "session").Logger(),
	}
}

// Run replays the latest sessions for strat's symbol. replay must be the
// BarSource strat was built with.
func (r *Runner) Run(ctx context.Context, strat strategy.Strategy, replay *Replay) (*Report, error) {
	started := time.Now()
	symbol := strat.Symbol()
	log := r.log.With().Str("symbol", symbol).Logger()

	days, err := r.provider.GetMultiDayIntraday(ctx, symbol, r.opts.Days, r.opts.Interval)
	if err != nil {
		return nil, fmt.Errorf("intraday bars for %s: %w", symbol, err)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w for %s", provider.ErrNoData, symbol)
	}

	report := &Report{
		Symbol:   symbol,
		Strategy: strat.Name(),
		Period:   r.schedule.TradingDay(days[0].Date) + " ~ " + r.schedule.TradingDay(days[len(days)-1].Date),
	}

	daily := r.dailyCandles(ctx, symbol, len(days))
	report.Warmup = r.warmup(strat, replay, daily, r.schedule.TradingDay(days[0].Date))

	byDay := make(map[string]model.Candle, len(daily))
	for _, c := range daily {
		byDay[r.schedule.TradingDay(c.Time)] = c
	}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		key := r.schedule.TradingDay(day.Date)
		if !r.schedule.IsTradingDay(day.Date) {
			log.Debug().Str("day", key).Int("bars", len(day.Candles)).Msg("skipping non-trading day")
			continue
		}
		row := DayReport{Date: key, Bars: len(day.Candles)}

		// the session ends at the first bar at or after the close; later
		// bars are buffered but never reach the strategy
		ended := false
		for _, bar := range day.Candles {
			if r.schedule.IsRegularHours(bar.Time) {
				row.RTHBars++
			}
			if !ended && !bar.Time.Before(r.schedule.SessionClose(bar.Time)) {
				r.endSession(ctx, strat, &row, report)
				ended = true
			}
			replay.Push(bar)
			if !ended {
				strat.OnBar(ctx, bar)
			}
		}
		if !ended {
			r.endSession(ctx, strat, &row, report)
		}

		candle, ok := byDay[key]
		if !ok {
			candle, ok = day.DailyCandle()
		}
		if ok {
			row.DailyClose = candle.Close
			row.NextBias = strat.OnDailyClose(candle.Close)
			replay.PushDaily(candle)
		}

		log.Debug().Str("day", key).Int("bars", row.Bars).Bool("traded", row.Traded).Str("bias", string(row.NextBias)).Msg("session replayed")
		report.Days = append(report.Days, row)
	}

	report.Elapsed = time.Since(started)
	return report, nil
}

// endSession records the day's trade, then flattens and resets the strategy
func (r *Runner) endSession(ctx context.Context, strat strategy.Strategy, row *DayReport, report *Report) {
	if trade, ok := strat.DayState().OpenTrade(); ok {
		row.Traded = true
		row.Trade = &trade
		report.Trades++
	}
	strat.OnSessionEnd(ctx)
}

// dailyCandles fetches enough daily history to cover warmup and replay.
// A failure leaves the bias to warm up from replayed sessions.
func (r *Runner) dailyCandles(ctx context.Context, symbol string, days int) []model.Candle {
	if r.opts.WarmupDays <= 0 {
		return nil
	}
	daily, err := r.provider.GetDailyCandles(ctx, symbol, r.opts.WarmupDays+days)
	if err != nil {
		r.log.Warn().Err(err).Str("symbol", symbol).Msg("daily candles unavailable, bias starts cold")
		return nil
	}
	return daily
}

// warmup feeds the closes of days before first to the strategy
func (r *Runner) warmup(strat strategy.Strategy, replay *Replay, daily []model.Candle, first string) int {
	var prior []model.Candle
	for _, c := range daily {
		if r.schedule.TradingDay(c.Time) < first {
			prior = append(prior, c)
		}
	}
	prior = provider.LastDays(prior, r.opts.WarmupDays)

	if w, ok := strat.(strategy.Warmer); ok {
		w.Warmup(prior)
	} else {
		for _, c := range prior {
			strat.OnDailyClose(c.Close)
		}
	}
	for _, c := range prior {
		replay.PushDaily(c)
	}
	return len(prior)
}
