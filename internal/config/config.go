package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fvgtrader/internal/calendar"
	"fvgtrader/internal/execution"
	"fvgtrader/internal/strategy"
)

// Environment overrides
const (
	EnvClickHouseDSN = "FVG_CLICKHOUSE_DSN"
	EnvLogLevel      = "FVG_LOG_LEVEL"
)

// Data sources
const (
	SourceYahoo      = "yahoo"
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
)

// Config represents the application configuration
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Execution ExecutionConfig `yaml:"execution"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DataConfig selects where bars come from
type DataConfig struct {
	Sources         []string `yaml:"sources"` // tried in order
	CSVDir          string   `yaml:"csv_dir"`
	ClickHouseDSN   string   `yaml:"clickhouse_dsn"`
	ClickHouseTable string   `yaml:"clickhouse_table"`
	Days            int      `yaml:"days"`        // intraday days to replay
	WarmupDays      int      `yaml:"warmup_days"` // daily candles requested before the first replay day
	CacheDays       int      `yaml:"cache_days"`  // daily candles kept per symbol, 0 disables caching
	Interval        int      `yaml:"interval"`    // bar size in minutes
}

// StrategyConfig is the YAML form of strategy.Config.
// Unset fields keep the values of the selected variant.
type StrategyConfig struct {
	Variant           string    `yaml:"variant"`
	SMAWindow         int       `yaml:"sma_window"`
	EntryStart        string    `yaml:"entry_start"` // HH:MM exchange time
	EntryEnd          string    `yaml:"entry_end"`
	MinLookbackBars   int       `yaml:"min_lookback_bars"`
	PositionSize      int       `yaml:"position_size"`
	RiskReward        []float64 `yaml:"risk_reward"`
	ScaleOut          []float64 `yaml:"scale_out"`
	StopRatchet       bool      `yaml:"stop_ratchet"`
	WinProbability    float64   `yaml:"win_probability"`
	KellyMultiplier   float64   `yaml:"kelly_multiplier"`
	RequireAlignedGap bool      `yaml:"require_aligned_gap"`
	ScanAllGaps       bool      `yaml:"scan_all_gaps"`
	CacheGap          bool      `yaml:"cache_gap"`
}

// ExecutionConfig holds order routing settings
type ExecutionConfig struct {
	DryRun   bool    `yaml:"dry_run"`
	TickSize float64 `yaml:"tick_size"` // 0 uses the instrument's tick
}

// ScannerConfig holds scanner settings
type ScannerConfig struct {
	Symbols []string      `yaml:"symbols"`
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig holds the Prometheus endpoint, empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration with the first-fvg variant
func DefaultConfig() *Config {
	cfg, _ := ForVariant(strategy.DefaultConfig().Name)
	return cfg
}

// ForVariant returns defaults with the strategy section taken from a registered variant
func ForVariant(name string) (*Config, error) {
	v, err := strategy.Get(name)
	if err != nil {
		return nil, err
	}

	return &Config{
		Data: DataConfig{
			Sources:         []string{SourceYahoo},
			CSVDir:          "data",
			ClickHouseTable: "ohlcv_raw",
			Days:            5,
			WarmupDays:      30,
			CacheDays:       60,
			Interval:        1,
		},
		Strategy: FromStrategy(v.Config()),
		Scanner: ScannerConfig{
			Symbols: []string{"NQ=F"},
			Workers: 4,
			Timeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}, nil
}

// FromStrategy converts a strategy.Config to its YAML form
func FromStrategy(c strategy.Config) StrategyConfig {
	return StrategyConfig{
		Variant:           c.Name,
		SMAWindow:         c.SMAWindow,
		EntryStart:        c.EntryWindow.Start.String(),
		EntryEnd:          c.EntryWindow.End.String(),
		MinLookbackBars:   c.MinLookbackBars,
		PositionSize:      c.PositionSize,
		RiskReward:        append([]float64(nil), c.RiskRewardLevels...),
		ScaleOut:          append([]float64(nil), c.ScaleOutFractions...),
		StopRatchet:       c.StopRatchet,
		WinProbability:    c.WinProbability,
		KellyMultiplier:   c.KellyMultiplier,
		RequireAlignedGap: c.RequireAlignedGap,
		ScanAllGaps:       c.ScanAllGaps,
		CacheGap:          c.CacheGap,
	}
}

// ToStrategy parses the entry window and builds the strategy configuration
func (s StrategyConfig) ToStrategy() (strategy.Config, error) {
	start, err := calendar.ParseClock(s.EntryStart)
	if err != nil {
		return strategy.Config{}, fmt.Errorf("entry_start: %w", err)
	}
	end, err := calendar.ParseClock(s.EntryEnd)
	if err != nil {
		return strategy.Config{}, fmt.Errorf("entry_end: %w", err)
	}

	var fractions []float64
	if len(s.ScaleOut) > 0 {
		fractions = append(fractions, s.ScaleOut...)
	}

	return strategy.Config{
		Name:              s.Variant,
		SMAWindow:         s.SMAWindow,
		EntryWindow:       calendar.Window{Start: start, End: end},
		MinLookbackBars:   s.MinLookbackBars,
		PositionSize:      s.PositionSize,
		RiskRewardLevels:  append([]float64(nil), s.RiskReward...),
		ScaleOutFractions: fractions,
		StopRatchet:       s.StopRatchet,
		WinProbability:    s.WinProbability,
		KellyMultiplier:   s.KellyMultiplier,
		RequireAlignedGap: s.RequireAlignedGap,
		ScanAllGaps:       s.ScanAllGaps,
		CacheGap:          s.CacheGap,
	}, nil
}

// ExecutionFor builds the executor configuration; tick is the instrument's
// price increment used when no tick_size is configured
func (c *Config) ExecutionFor(tick float64) execution.Config {
	cfg := execution.Config{DryRun: c.Execution.DryRun, TickSize: c.Execution.TickSize}
	if cfg.TickSize == 0 {
		cfg.TickSize = tick
	}
	return cfg
}

// LoadEnv reads .env style files into the environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file.
//
// The file is read twice: once for strategy.variant, whose preset becomes the
// base, then again on top of it so that only the keys present override it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.applyEnv()
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML
func Parse(data []byte) (*Config, error) {
	var head struct {
		Strategy struct {
			Variant string `yaml:"variant"`
		} `yaml:"strategy"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	variant := head.Strategy.Variant
	if variant == "" {
		variant = strategy.DefaultConfig().Name
	}
	cfg, err := ForVariant(variant)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides with environment variables if set
func (c *Config) applyEnv() {
	if dsn := os.Getenv(EnvClickHouseDSN); dsn != "" {
		c.Data.ClickHouseDSN = dsn
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Log.Level = lvl
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if len(c.Data.Sources) == 0 {
		errs = append(errs, errors.New("at least one data source is required"))
	}
	for _, src := range c.Data.Sources {
		switch src {
		case SourceYahoo:
		case SourceCSV:
			if c.Data.CSVDir == "" {
				errs = append(errs, errors.New("csv source needs data.csv_dir"))
			}
		case SourceClickHouse:
			if c.Data.ClickHouseDSN == "" {
				errs = append(errs, fmt.Errorf("clickhouse source needs data.clickhouse_dsn or %s", EnvClickHouseDSN))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown data source %q", src))
		}
	}
	if c.Data.Days < 1 {
		errs = append(errs, errors.New("data.days must be at least 1"))
	}
	if c.Data.WarmupDays < 0 {
		errs = append(errs, errors.New("data.warmup_days must not be negative"))
	}
	if c.Data.Interval < 1 {
		errs = append(errs, errors.New("data.interval must be at least 1"))
	}

	if c.Execution.TickSize < 0 {
		errs = append(errs, errors.New("execution.tick_size must not be negative"))
	}
	if c.Scanner.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if c.Scanner.Timeout <= 0 {
		errs = append(errs, errors.New("scanner.timeout must be positive"))
	}

	if sc, err := c.Strategy.ToStrategy(); err != nil {
		errs = append(errs, err)
	} else if err := sc.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
