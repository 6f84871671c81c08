package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fvgtrader/internal/calendar"
	"fvgtrader/internal/ratelimit"
	"fvgtrader/pkg/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo serves 1m bars for roughly the last week only
const yahooMinuteDays = 7

// YahooProvider implements the Provider interface for Yahoo Finance (unofficial API).
// Continuous futures use the "=F" suffix, e.g. NQ=F.
type YahooProvider struct {
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
	loc       *time.Location
	now       func() time.Time
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider() *YahooProvider {
	return newYahooProvider(yahooBaseURL, &http.Client{Timeout: 30 * time.Second})
}

func newYahooProvider(baseURL string, client *http.Client) *YahooProvider {
	return &YahooProvider{
		baseURL:   baseURL,
		client:    client,
		limiter:   ratelimit.NewLimiter("yahoo", 30), // Conservative rate limit
		rateLimit: 30,
		loc:       calendar.ETLocation(),
		now:       time.Now,
	}
}

// Name returns the provider name
func (p *YahooProvider) Name() string {
	return "yahoo"
}

// IsAvailable always returns true (no API key needed)
func (p *YahooProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *YahooProvider) RateLimit() int {
	return p.rateLimit
}

// yahooResponse represents the Yahoo Finance API response.
// Quote values are pointers because Yahoo sends null for empty bars.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetIntradayData fetches one calendar day of candles including the overnight session
func (p *YahooProvider) GetIntradayData(ctx context.Context, symbol string, date time.Time, interval int) (*model.IntradayData, error) {
	start, end := dayBounds(date, p.loc)

	candles, err := p.chart(ctx, symbol, start, end, fmt.Sprintf("%dm", interval))
	if err != nil {
		return nil, err
	}

	return &model.IntradayData{
		Symbol:  symbol,
		Date:    start,
		Candles: candles,
	}, nil
}

// GetMultiDayIntraday fetches intraday data for multiple days, oldest first
func (p *YahooProvider) GetMultiDayIntraday(ctx context.Context, symbol string, days int, interval int) ([]model.IntradayData, error) {
	// Yahoo allows up to 7 days of 1m data, or 60 days of 5m+ data
	rangeDays := days * 2 // Buffer for weekends
	limit := 60
	if interval == 1 {
		limit = yahooMinuteDays
	}
	rangeDays = min(rangeDays, limit)

	now := p.now().In(p.loc)
	candles, err := p.chart(ctx, symbol, now.AddDate(0, 0, -rangeDays), now, fmt.Sprintf("%dm", interval))
	if err != nil {
		return nil, err
	}

	return LastDays(GroupByDay(symbol, candles, p.loc), days), nil
}

// GetDailyCandles fetches daily bars, oldest first
func (p *YahooProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	now := p.now().In(p.loc)
	start := now.AddDate(0, 0, -(days*2 + 10)) // weekends and holidays

	candles, err := p.chart(ctx, symbol, start, now, "1d")
	if err != nil {
		return nil, err
	}
	return LastDays(candles, days), nil
}

func (p *YahooProvider) chart(ctx context.Context, symbol string, from, to time.Time, interval string) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))
	q.Set("interval", interval)
	q.Set("includePrePost", "true")
	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}
	}

	p.limiter.ResetBackoff()

	var data yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if data.Chart.Error != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.Chart.Error.Description), Retryable: false}
	}

	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Timestamp) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	result := data.Chart.Result[0]
	quotes := result.Indicators.Quote[0]

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Skip bars with any missing price
		if i >= len(quotes.Open) || i >= len(quotes.High) || i >= len(quotes.Low) || i >= len(quotes.Close) {
			continue
		}
		if quotes.Open[i] == nil || quotes.High[i] == nil || quotes.Low[i] == nil || quotes.Close[i] == nil {
			continue
		}

		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}

		candles = append(candles, model.Candle{
			Time:   time.Unix(ts, 0).In(p.loc),
			Open:   *quotes.Open[i],
			High:   *quotes.High[i],
			Low:    *quotes.Low[i],
			Close:  *quotes.Close[i],
			Volume: volume,
		})
	}

	if len(candles) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}
	return candles, nil
}
