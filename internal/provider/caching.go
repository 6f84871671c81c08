package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fvgtrader/pkg/model"
)

// CachingProvider wraps a Provider with an in-memory cache for daily candles
// and whole intraday days, keyed by symbol.
type CachingProvider struct {
	inner   Provider
	maxDays int

	mu       sync.Mutex
	daily    map[string]dailyEntry
	intraday map[string]*model.IntradayData
}

// NewCachingProvider creates a caching wrapper. maxDays is the number of
// daily candles to always fetch so later, shorter requests hit the cache.
func NewCachingProvider(inner Provider, maxDays int) *CachingProvider {
	return &CachingProvider{
		inner:    inner,
		maxDays:  maxDays,
		daily:    make(map[string]dailyEntry),
		intraday: make(map[string]*model.IntradayData),
	}
}

type dailyEntry struct {
	candles   []model.Candle
	requested int // the source may hold fewer than this
}

func (p *CachingProvider) Name() string      { return p.inner.Name() }
func (p *CachingProvider) IsAvailable() bool { return p.inner.IsAvailable() }
func (p *CachingProvider) RateLimit() int    { return p.inner.RateLimit() }

func (p *CachingProvider) GetIntradayData(ctx context.Context, symbol string, date time.Time, interval int) (*model.IntradayData, error) {
	key := fmt.Sprintf("%s|%s|%d", symbol, date.Format("2006-01-02"), interval)

	p.mu.Lock()
	cached, ok := p.intraday[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, err := p.inner.GetIntradayData(ctx, symbol, date, interval)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.intraday[key] = data
	p.mu.Unlock()
	return data, nil
}

func (p *CachingProvider) GetMultiDayIntraday(ctx context.Context, symbol string, days int, interval int) ([]model.IntradayData, error) {
	// the window moves with the clock, so it is not cached
	return p.inner.GetMultiDayIntraday(ctx, symbol, days, interval)
}

func (p *CachingProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	p.mu.Lock()
	cached, ok := p.daily[symbol]
	p.mu.Unlock()
	if ok && cached.requested >= days {
		return LastDays(cached.candles, days), nil
	}

	// Fetch max days to satisfy every caller in one call
	fetchDays := max(p.maxDays, days)

	candles, err := p.inner.GetDailyCandles(ctx, symbol, fetchDays)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.daily[symbol] = dailyEntry{candles: candles, requested: fetchDays}
	p.mu.Unlock()

	return LastDays(candles, days), nil
}
