package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"fvgtrader/internal/calendar"
	"fvgtrader/pkg/model"
)

// CSVProvider serves bars exported to CSV files, one file per symbol:
//
//	<dir>/<SYMBOL>.csv        1-minute bars
//	<dir>/<SYMBOL>_daily.csv  daily bars (optional, else built from the minutes)
//
// Symbols are sanitized for the file name, NQ=F becomes NQ_F.
// The header row names the columns: time (or timestamp, datetime, date,
// open_time_ms), open, high, low, close and optionally volume.
// "Most recent" means most recent in the file, not relative to now.
type CSVProvider struct {
	dir string
	loc *time.Location

	mu    sync.Mutex
	cache map[string][]model.Candle
}

// NewCSVProvider reads files from dir; times without a zone are exchange time
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{
		dir:   dir,
		loc:   calendar.ETLocation(),
		cache: make(map[string][]model.Candle),
	}
}

func (p *CSVProvider) Name() string { return "csv" }

// IsAvailable reports whether the directory exists
func (p *CSVProvider) IsAvailable() bool {
	info, err := os.Stat(p.dir)
	return err == nil && info.IsDir()
}

// RateLimit is effectively unlimited for local files
func (p *CSVProvider) RateLimit() int { return 6000 }

var symbolFileReplacer = strings.NewReplacer("=", "_", "/", "_", "^", "", " ", "_")

// SymbolFile returns the base file name for symbol
func SymbolFile(symbol string) string {
	return symbolFileReplacer.Replace(strings.ToUpper(symbol))
}

func (p *CSVProvider) GetIntradayData(ctx context.Context, symbol string, date time.Time, interval int) (*model.IntradayData, error) {
	candles, err := p.minutes(symbol)
	if err != nil {
		return nil, err
	}

	start, end := dayBounds(date, p.loc)
	lo := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(start) })
	hi := sort.Search(len(candles), func(i int) bool { return !candles[i].Time.Before(end) })
	if lo == hi {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%w for %s on %s", ErrNoData, symbol, start.Format("2006-01-02"))}
	}

	return &model.IntradayData{
		Symbol:  symbol,
		Date:    start,
		Candles: Resample(candles[lo:hi], interval),
	}, nil
}

func (p *CSVProvider) GetMultiDayIntraday(ctx context.Context, symbol string, days int, interval int) ([]model.IntradayData, error) {
	candles, err := p.minutes(symbol)
	if err != nil {
		return nil, err
	}

	grouped := LastDays(GroupByDay(symbol, candles, p.loc), days)
	for i := range grouped {
		grouped[i].Candles = Resample(grouped[i].Candles, interval)
	}
	return grouped, nil
}

func (p *CSVProvider) GetDailyCandles(ctx context.Context, symbol string, days int) ([]model.Candle, error) {
	daily, err := p.load(filepath.Join(p.dir, SymbolFile(symbol)+"_daily.csv"))
	if errors.Is(err, os.ErrNotExist) {
		minutes, err := p.minutes(symbol)
		if err != nil {
			return nil, err
		}
		daily = DailyFromIntraday(GroupByDay(symbol, minutes, p.loc))
	} else if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	return LastDays(daily, days), nil
}

func (p *CSVProvider) minutes(symbol string) ([]model.Candle, error) {
	candles, err := p.load(filepath.Join(p.dir, SymbolFile(symbol)+".csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w for %s: %v", ErrNoData, symbol, err)
		}
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	return candles, nil
}

func (p *CSVProvider) load(path string) ([]model.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[path]; ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	candles, err := ReadCandlesCSV(f, p.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p.cache[path] = candles
	return candles, nil
}

// ReadCandlesCSV parses a header-led OHLCV CSV into candles sorted by time
func ReadCandlesCSV(r io.Reader, loc *time.Location) ([]model.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int)
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	timeCol := -1
	for _, name := range []string{"time", "timestamp", "datetime", "date", "open_time_ms"} {
		if i, ok := cols[name]; ok {
			timeCol = i
			break
		}
	}
	if timeCol < 0 {
		return nil, errors.New("no time column")
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	volCol, hasVol := cols["volume"]

	var candles []model.Candle
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := parseCSVTime(rec[timeCol], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var prices [4]float64
		for i, name := range []string{"open", "high", "low", "close"} {
			prices[i], err = strconv.ParseFloat(strings.TrimSpace(rec[cols[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			if math.IsNaN(prices[i]) || math.IsInf(prices[i], 0) {
				return nil, fmt.Errorf("line %d: %s: non-finite price %q", line, name, rec[cols[name]])
			}
		}

		c := model.Candle{Time: t, Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3]}
		if hasVol && volCol < len(rec) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[volCol]), 64); err == nil {
				c.Volume = int64(v)
			}
		}
		candles = append(candles, c)
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
	return candles, nil
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseCSVTime accepts unix seconds or milliseconds and common layouts
func parseCSVTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}

	for _, layout := range csvTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// Resample aggregates sorted 1-minute candles into interval-minute bars
// aligned to the hour. interval <= 1 returns the input.
func Resample(candles []model.Candle, interval int) []model.Candle {
	if interval <= 1 || len(candles) == 0 {
		return candles
	}

	step := time.Duration(interval) * time.Minute
	var out []model.Candle
	for _, c := range candles {
		bucket := c.Time.Truncate(step)
		if n := len(out); n > 0 && out[n-1].Time.Equal(bucket) {
			last := &out[n-1]
			last.High = max(last.High, c.High)
			last.Low = min(last.Low, c.Low)
			last.Close = c.Close
			last.Volume += c.Volume
			continue
		}
		c.Time = bucket
		out = append(out, c)
	}
	return out
}
