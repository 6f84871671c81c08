package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvgtrader/internal/calendar"
	"fvgtrader/pkg/model"
)

// stubProvider is an in-memory Provider for wrapper tests
type stubProvider struct {
	name      string
	available bool
	daily     []model.Candle
	days      []model.IntradayData
	err       error

	dailyCalls    int
	intradayCalls int
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return s.available }
func (s *stubProvider) RateLimit() int    { return 10 }

func (s *stubProvider) GetIntradayData(_ context.Context, symbol string, date time.Time, _ int) (*model.IntradayData, error) {
	s.intradayCalls++
	if s.err != nil {
		return nil, s.err
	}
	for _, d := range s.days {
		if d.Date.Format("2006-01-02") == date.Format("2006-01-02") {
			out := d
			return &out, nil
		}
	}
	return nil, ErrNoData
}

func (s *stubProvider) GetMultiDayIntraday(_ context.Context, _ string, days int, _ int) ([]model.IntradayData, error) {
	s.intradayCalls++
	if s.err != nil {
		return nil, s.err
	}
	return LastDays(s.days, days), nil
}

func (s *stubProvider) GetDailyCandles(_ context.Context, _ string, days int) ([]model.Candle, error) {
	s.dailyCalls++
	if s.err != nil {
		return nil, s.err
	}
	return LastDays(s.daily, days), nil
}

func et(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, calendar.ETLocation())
}

func TestFallbackProvider(t *testing.T) {
	ctx := context.Background()
	down := &stubProvider{name: "down", available: true, err: &ProviderError{Provider: "down", Err: errors.New("timeout"), Retryable: true}}
	off := &stubProvider{name: "off", available: false, daily: []model.Candle{{Close: 1}}}
	up := &stubProvider{name: "up", available: true, daily: []model.Candle{{Close: 2}, {Close: 3}}}

	f := NewFallbackProvider(down, off, up)
	require.Len(t, f.Providers(), 2, "unavailable providers are dropped")
	assert.True(t, f.IsAvailable())
	assert.Equal(t, 10, f.RateLimit())
	assert.Equal(t, "fallback", f.Name())

	daily, err := f.GetDailyCandles(ctx, "NQ=F", 1)
	require.NoError(t, err)
	assert.Equal(t, []model.Candle{{Close: 3}}, daily)
	assert.Equal(t, 1, down.dailyCalls)
	assert.Zero(t, off.dailyCalls)
}

func TestFallbackProvider_AllFail(t *testing.T) {
	a := &stubProvider{name: "a", available: true, err: errors.New("boom")}
	b := &stubProvider{name: "b", available: true, err: ErrNoData}

	_, err := NewFallbackProvider(a, b).GetMultiDayIntraday(context.Background(), "ES=F", 3, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "boom")

	_, err = NewFallbackProvider().GetDailyCandles(context.Background(), "ES=F", 3)
	assert.Error(t, err)
}

func TestFallbackProvider_StopsOnCancel(t *testing.T) {
	a := &stubProvider{name: "a", available: true, err: context.Canceled}
	b := &stubProvider{name: "b", available: true}

	_, err := NewFallbackProvider(a, b).GetIntradayData(context.Background(), "NQ=F", et(16, 0, 0), 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.intradayCalls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&ProviderError{Provider: "x", Err: errors.New("429"), Retryable: true}))
	assert.False(t, IsRetryable(&ProviderError{Provider: "x", Err: errors.New("404")}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGroupByDay(t *testing.T) {
	loc := calendar.ETLocation()
	candles := []model.Candle{
		{Time: et(17, 9, 31), Close: 4},
		{Time: et(16, 9, 31), Close: 2},
		{Time: et(16, 9, 30), Close: 1},
		{Time: et(17, 0, 5), Close: 3}, // overnight belongs to its calendar day
	}

	days := GroupByDay("NQ=F", candles, loc)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-16", days[0].Date.Format("2006-01-02"))
	assert.Equal(t, []float64{1, 2}, []float64{days[0].Candles[0].Close, days[0].Candles[1].Close})
	assert.Equal(t, 3.0, days[1].Candles[0].Close)
	assert.Equal(t, "NQ=F", days[1].Symbol)

	assert.Len(t, LastDays(days, 1), 1)
	assert.Len(t, LastDays(days, 5), 2)
}

func TestDailyFromIntraday(t *testing.T) {
	days := []model.IntradayData{
		{Date: et(16, 0, 0), Candles: []model.Candle{
			{Open: 10, High: 12, Low: 9, Close: 11, Volume: 5},
			{Open: 11, High: 15, Low: 10, Close: 14, Volume: 7},
		}},
		{Date: et(17, 0, 0)},
	}

	daily := DailyFromIntraday(days)
	require.Len(t, daily, 1)
	assert.Equal(t, model.Candle{Time: et(16, 0, 0), Open: 10, High: 15, Low: 9, Close: 14, Volume: 12}, daily[0])
}

func TestResample(t *testing.T) {
	var minutes []model.Candle
	for i := 0; i < 7; i++ {
		minutes = append(minutes, model.Candle{
			Time:   et(16, 9, 30+i),
			Open:   float64(100 + i),
			High:   float64(101 + i),
			Low:    float64(99 + i),
			Close:  float64(100 + i),
			Volume: 1,
		})
	}

	five := Resample(minutes, 5)
	require.Len(t, five, 2)
	assert.Equal(t, et(16, 9, 30), five[0].Time)
	assert.Equal(t, 100.0, five[0].Open)
	assert.Equal(t, 105.0, five[0].High)
	assert.Equal(t, 99.0, five[0].Low)
	assert.Equal(t, 104.0, five[0].Close)
	assert.Equal(t, int64(5), five[0].Volume)
	assert.Equal(t, et(16, 9, 35), five[1].Time)
	assert.Equal(t, int64(2), five[1].Volume)

	assert.Equal(t, minutes, Resample(minutes, 1))
}
