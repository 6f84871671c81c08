package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvgtrader/internal/broker"
	"fvgtrader/internal/calendar"
	"fvgtrader/internal/execution"
	"fvgtrader/internal/metrics"
	"fvgtrader/internal/provider"
	"fvgtrader/internal/strategy"
	"fvgtrader/pkg/model"
)

type memProvider struct {
	days     []model.IntradayData
	daily    []model.Candle
	dailyErr error
}

func (m *memProvider) Name() string      { return "mem" }
func (m *memProvider) IsAvailable() bool { return true }
func (m *memProvider) RateLimit() int    { return 6000 }

func (m *memProvider) GetIntradayData(context.Context, string, time.Time, int) (*model.IntradayData, error) {
	return nil, provider.ErrNoData
}

func (m *memProvider) GetMultiDayIntraday(_ context.Context, _ string, days int, _ int) ([]model.IntradayData, error) {
	return provider.LastDays(m.days, days), nil
}

func (m *memProvider) GetDailyCandles(_ context.Context, _ string, days int) ([]model.Candle, error) {
	if m.dailyErr != nil {
		return nil, m.dailyErr
	}
	return provider.LastDays(m.daily, days), nil
}

func et(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, calendar.ETLocation())
}

func candle(day, minute int, o, h, l, c float64) model.Candle {
	return model.Candle{Time: et(day, 9, 30+minute), Open: o, High: h, Low: l, Close: c, Volume: 1}
}

// flatWeek is seven daily closes of 100 before the 16th
func flatWeek() []model.Candle {
	var daily []model.Candle
	for _, d := range []int{3, 4, 5, 8, 9, 10, 11} {
		daily = append(daily, model.Candle{Time: et(d, 0, 0), Open: 100, High: 100, Low: 100, Close: 100})
	}
	return daily
}

// twoSessions: a bullish gap confirmed at 09:32 on the 16th, nothing on the 17th
func twoSessions() []model.IntradayData {
	return []model.IntradayData{
		{Symbol: "NQ=F", Date: et(16, 0, 0), Candles: []model.Candle{
			candle(16, 0, 100, 101, 100, 100.8),
			candle(16, 1, 101, 103, 101.5, 102.5),
			candle(16, 2, 102.5, 104, 102, 103),
			candle(16, 3, 103, 104, 103, 103.5),
		}},
		{Symbol: "NQ=F", Date: et(17, 0, 0), Candles: []model.Candle{
			candle(17, 0, 101, 101.5, 100.8, 101),
			candle(17, 1, 101, 101.2, 100.9, 101),
		}},
	}
}

type fixture struct {
	paper  *broker.Paper
	stats  *metrics.Stats
	replay *Replay
	strat  *strategy.FVGStrategy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		paper:  broker.NewPaper(),
		stats:  metrics.NewStats(),
		replay: NewReplay("NQ=F"),
	}
	exec := execution.NewExecutor(f.paper, execution.Config{TickSize: 0.25}, zerolog.Nop())

	strat, err := strategy.NewFVGStrategy("NQ=F", strategy.DefaultConfig(), strategy.Deps{
		Bars:     f.replay,
		Router:   exec,
		Recorder: f.stats,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	f.strat = strat
	return f
}

func TestRunner_Run(t *testing.T) {
	f := newFixture(t)
	p := &memProvider{days: twoSessions(), daily: flatWeek()}
	r := NewRunner(p, Options{Days: 5, WarmupDays: 30, Interval: 1}, zerolog.Nop())

	report, err := r.Run(context.Background(), f.strat, f.replay)
	require.NoError(t, err)

	assert.Equal(t, "NQ=F", report.Symbol)
	assert.Equal(t, "first-fvg", report.Strategy)
	assert.Equal(t, "2024-01-16 ~ 2024-01-17", report.Period)
	assert.Equal(t, 7, report.Warmup)
	assert.Equal(t, 1, report.Trades)
	require.Len(t, report.Days, 2)

	day1 := report.Days[0]
	assert.Equal(t, "2024-01-16", day1.Date)
	assert.Equal(t, 4, day1.Bars)
	assert.Equal(t, 4, day1.RTHBars)
	require.True(t, day1.Traded)
	require.NotNil(t, day1.Trade)
	assert.Equal(t, strategy.Long, day1.Trade.Direction)
	assert.Equal(t, 103.0, day1.Trade.EntryPrice)
	assert.Equal(t, 102.0, day1.Trade.StopLoss)
	assert.Equal(t, 104.0, day1.Trade.TakeProfits[0].Price)
	assert.Equal(t, et(16, 9, 32), day1.Trade.Time)
	assert.Equal(t, 103.5, day1.DailyClose)
	assert.Equal(t, strategy.BiasBullish, day1.NextBias)

	day2 := report.Days[1]
	assert.False(t, day2.Traded, "old gap gives a stop above price")
	assert.Nil(t, day2.Trade)
	assert.Equal(t, 101.0, day2.DailyClose)

	// session end flattened and cleared the day
	pos, err := f.paper.GetPosition(context.Background(), "NQ=F")
	require.NoError(t, err)
	assert.Zero(t, pos.Quantity)
	pending, err := f.paper.GetPendingOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.False(t, f.strat.DayState().TradeTaken)

	snap := f.stats.Snapshot()
	assert.Equal(t, 2, snap.DaysWithData)
	assert.Equal(t, 1, snap.TradesAttempted)
	assert.Zero(t, snap.BiasMismatches)

	// warmup plus both sessions
	daily, err := f.replay.FetchBars(context.Background(), "NQ=F", 100, model.ResolutionDaily)
	require.NoError(t, err)
	assert.Len(t, daily, 9)
}

func TestRunner_ColdBias(t *testing.T) {
	f := newFixture(t)
	p := &memProvider{days: twoSessions(), dailyErr: errors.New("daily endpoint down")}
	r := NewRunner(p, DefaultOptions(), zerolog.Nop())

	report, err := r.Run(context.Background(), f.strat, f.replay)
	require.NoError(t, err)
	assert.Zero(t, report.Warmup)
	assert.Zero(t, report.Trades)
	assert.Equal(t, strategy.BiasUnknown, report.Days[1].NextBias)

	snap := f.stats.Snapshot()
	assert.Positive(t, snap.PatternsFound)
	assert.Equal(t, snap.PatternsFound, snap.BiasMismatches)
	assert.Zero(t, snap.TradesAttempted)
	assert.Empty(t, f.paper.Orders())
}

func TestRunner_WarmupOnlyUsesEarlierDays(t *testing.T) {
	f := newFixture(t)
	daily := append(flatWeek(), model.Candle{Time: et(16, 0, 0), Close: 500})
	p := &memProvider{days: twoSessions(), daily: daily}
	r := NewRunner(p, Options{Days: 2, WarmupDays: 3, Interval: 1}, zerolog.Nop())

	report, err := r.Run(context.Background(), f.strat, f.replay)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Warmup)

	// the stored daily candle beats the intraday fallback
	assert.Equal(t, 500.0, report.Days[0].DailyClose)
	assert.Equal(t, 101.0, report.Days[1].DailyClose)
}

// callLog records the lifecycle calls the runner makes
type callLog struct {
	*strategy.FVGStrategy
	calls []string
}

func (c *callLog) OnBar(ctx context.Context, bar model.Candle) {
	c.calls = append(c.calls, bar.Time.Format("15:04"))
	c.FVGStrategy.OnBar(ctx, bar)
}

func (c *callLog) OnSessionEnd(ctx context.Context) {
	c.calls = append(c.calls, "end")
	c.FVGStrategy.OnSessionEnd(ctx)
}

func TestRunner_EndsSessionAtClose(t *testing.T) {
	f := newFixture(t)
	day := twoSessions()[0]
	day.Candles = append(day.Candles,
		model.Candle{Time: et(16, 15, 59), Open: 103.5, High: 104, Low: 103, Close: 103.5},
		model.Candle{Time: et(16, 16, 0), Open: 103.5, High: 110, Low: 103, Close: 109},
		model.Candle{Time: et(16, 18, 30), Open: 109, High: 112, Low: 108, Close: 111},
	)
	p := &memProvider{days: []model.IntradayData{day}, daily: flatWeek()}
	strat := &callLog{FVGStrategy: f.strat}

	report, err := NewRunner(p, DefaultOptions(), zerolog.Nop()).Run(context.Background(), strat, f.replay)
	require.NoError(t, err)

	assert.Equal(t, []string{"09:30", "09:31", "09:32", "09:33", "15:59", "end"}, strat.calls)
	require.Len(t, report.Days, 1)
	assert.True(t, report.Days[0].Traded)
	assert.Equal(t, 7, report.Days[0].Bars)
	assert.Equal(t, 5, report.Days[0].RTHBars)
	assert.Equal(t, 7, f.replay.Len(), "post-close bars are still buffered")

	// flattened at the close, nothing after it
	orders := f.paper.Orders()
	require.NotEmpty(t, orders)
	assert.Equal(t, "flatten", orders[len(orders)-1].Tag)
	pos, err := f.paper.GetPosition(context.Background(), "NQ=F")
	require.NoError(t, err)
	assert.Zero(t, pos.Quantity)
}

func TestRunner_SkipsNonTradingDays(t *testing.T) {
	f := newFixture(t)
	sessions := twoSessions()
	saturday := model.IntradayData{Symbol: "NQ=F", Date: et(13, 0, 0), Candles: []model.Candle{
		candle(13, 0, 100, 101, 100, 100.5),
	}}
	p := &memProvider{days: append([]model.IntradayData{saturday}, sessions...), daily: flatWeek()}
	r := NewRunner(p, DefaultOptions(), zerolog.Nop())

	report, err := r.Run(context.Background(), f.strat, f.replay)
	require.NoError(t, err)
	require.Len(t, report.Days, 2)
	assert.Equal(t, "2024-01-16", report.Days[0].Date)
	assert.Equal(t, 2, f.stats.Snapshot().DaysWithData)
}

func TestRunner_NoData(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(&memProvider{}, DefaultOptions(), zerolog.Nop())

	_, err := r.Run(context.Background(), f.strat, f.replay)
	assert.ErrorIs(t, err, provider.ErrNoData)
}

func TestRunner_Cancelled(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(&memProvider{days: twoSessions(), daily: flatWeek()}, DefaultOptions(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx, f.strat, f.replay)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Days)
}

func TestReplay_FetchBars(t *testing.T) {
	ctx := context.Background()
	r := NewReplay("ES=F")
	r.maxBars = 3

	for i := 0; i < 5; i++ {
		r.Push(candle(16, i, 1, 1, 1, float64(i)))
	}
	assert.Equal(t, 3, r.Len())

	bars, err := r.FetchBars(ctx, "ES=F", 2, model.ResolutionMinute)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, []float64{bars[0].Close, bars[1].Close})

	bars, err = r.FetchBars(ctx, "ES=F", 10, model.ResolutionMinute)
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	// callers own the result
	bars[0].Close = -1
	again, _ := r.FetchBars(ctx, "ES=F", 3, model.ResolutionMinute)
	assert.Equal(t, 2.0, again[0].Close)

	daily, err := r.FetchBars(ctx, "ES=F", 5, model.ResolutionDaily)
	require.NoError(t, err)
	assert.Empty(t, daily)

	_, err = r.FetchBars(ctx, "NQ=F", 2, model.ResolutionMinute)
	assert.Error(t, err)
	_, err = r.FetchBars(ctx, "ES=F", 0, model.ResolutionMinute)
	assert.Error(t, err)
	_, err = r.FetchBars(ctx, "ES=F", 1, "1w")
	assert.Error(t, err)
}
