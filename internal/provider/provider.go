package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fvgtrader/internal/calendar"
	"fvgtrader/pkg/model"
)

// Provider defines the interface for market data providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetIntradayData fetches one calendar day of intraday candles (exchange time),
	// including bars outside regular hours when the source has them.
	// interval is in minutes (e.g., 1, 5, 15)
	GetIntradayData(ctx context.Context, symbol string, date time.Time, interval int) (*model.IntradayData, error)

	// GetMultiDayIntraday fetches the most recent days of intraday data, oldest first
	GetMultiDayIntraday(ctx context.Context, symbol string, days int, interval int) ([]model.IntradayData, error)

	// GetDailyCandles fetches daily OHLCV data for the specified number of days, oldest first
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error)

	// IsAvailable checks if the provider can serve requests (configured, reachable)
	IsAvailable() bool

	// RateLimit returns the rate limit per minute
	RateLimit() int
}

// ErrNoData is returned when the source has nothing for the request
var ErrNoData = errors.New("no data available")

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a ProviderError worth retrying elsewhere
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// GroupByDay splits candles into calendar days in loc, oldest first.
// Candles within a day are sorted by time.
func GroupByDay(symbol string, candles []model.Candle, loc *time.Location) []model.IntradayData {
	dayMap := make(map[string][]model.Candle)
	for _, c := range candles {
		key := c.Time.In(loc).Format("2006-01-02")
		dayMap[key] = append(dayMap[key], c)
	}

	results := make([]model.IntradayData, 0, len(dayMap))
	for key, dayCandles := range dayMap {
		date, _ := time.ParseInLocation("2006-01-02", key, loc)
		sort.Slice(dayCandles, func(i, j int) bool {
			return dayCandles[i].Time.Before(dayCandles[j].Time)
		})
		results = append(results, model.IntradayData{
			Symbol:  symbol,
			Date:    date,
			Candles: dayCandles,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Date.Before(results[j].Date)
	})
	return results
}

// LastDays keeps the final n entries
func LastDays[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

// DailyFromIntraday collapses each day into one daily candle
func DailyFromIntraday(days []model.IntradayData) []model.Candle {
	daily := make([]model.Candle, 0, len(days))
	for _, d := range days {
		if c, ok := d.DailyCandle(); ok {
			daily = append(daily, c)
		}
	}
	return daily
}

// dayBounds returns [midnight, next midnight) of date in loc
func dayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	d := calendar.Schedule{Location: loc}.Date(date)
	return d, d.AddDate(0, 0, 1)
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	// Filter to only available providers
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetIntradayData tries each provider in order until one succeeds
func (f *FallbackProvider) GetIntradayData(ctx context.Context, symbol string, date time.Time, interval int) (*model.IntradayData, error) {
	return firstOf(f.providers, func(p Provider) (*model.IntradayData, error) {
		return p.GetIntradayData(ctx, symbol, date, interval)
	})
}

// GetMultiDayIntraday tries each provider in order
func (f *FallbackProvider) GetMultiDayIntraday(ctx context.Context, symbol string, days int, interval int) ([]model.IntradayData, error) {
	return firstOf(f.providers, func(p Provider) ([]model.IntradayData, error) {
		return p.GetMultiDayIntraday(ctx, symbol, days, interval)
	})
}

// GetDailyCandles tries each provider in order
func (f *FallbackProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	return firstOf(f.providers, func(p Provider) ([]model.Candle, error) {
		return p.GetDailyCandles(ctx, symbol, days)
	})
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		maxRate = max(maxRate, p.RateLimit())
	}
	return maxRate
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}

func firstOf[T any](providers []Provider, call func(Provider) (T, error)) (T, error) {
	var zero T
	if len(providers) == 0 {
		return zero, errors.New("no data provider available")
	}

	var errs []error
	for _, p := range providers {
		data, err := call(p)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	return zero, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
