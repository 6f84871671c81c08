package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"fvgtrader/internal/calendar"
	"fvgtrader/internal/metrics"
	"fvgtrader/internal/position"
	"fvgtrader/pkg/model"
)

// lookbackPadding is added to minutes since open when sizing the bar window
const lookbackPadding = 5

// Config holds configuration for the FVG strategy
type Config struct {
	Name string // variant name reported by Name()

	SMAWindow       int             // daily closes in the bias average
	EntryWindow     calendar.Window // [start, end) in exchange time
	MinLookbackBars int             // floor for the bar window size

	PositionSize      int       // contracts per entry
	RiskRewardLevels  []float64 // take-profit multiples of risk, ascending
	ScaleOutFractions []float64 // share closed at each level; nil splits evenly
	StopRatchet       bool      // trail stops to breakeven, then 1R, as targets are reached

	WinProbability  float64 // assumed hit rate for Kelly guidance
	KellyMultiplier float64 // fraction of full Kelly

	RequireAlignedGap bool // skip gaps whose polarity disagrees with the bias
	ScanAllGaps       bool // try every gap in the window, not only the first
	CacheGap          bool // reuse the day's gap while it is still inside the window
}

// DefaultConfig returns the single-target first-gap configuration
func DefaultConfig() Config {
	return Config{
		Name:             "first-fvg",
		SMAWindow:        7,
		EntryWindow:      calendar.Window{Start: calendar.NewClock(9, 30), End: calendar.NewClock(16, 0)},
		MinLookbackBars:  10,
		PositionSize:     1,
		RiskRewardLevels: []float64{1},
		WinProbability:   0.5,
		KellyMultiplier:  position.HalfKelly,
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c Config) Validate() error {
	var errs []error

	if c.SMAWindow <= 0 {
		errs = append(errs, fmt.Errorf("sma window must be positive, got %d", c.SMAWindow))
	}
	if err := c.EntryWindow.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MinLookbackBars < 3 {
		errs = append(errs, fmt.Errorf("min lookback must be at least 3 bars, got %d", c.MinLookbackBars))
	}
	if c.PositionSize <= 0 {
		errs = append(errs, fmt.Errorf("position size must be positive, got %d", c.PositionSize))
	}
	if c.WinProbability < 0 || c.WinProbability > 1 {
		errs = append(errs, fmt.Errorf("win probability must be in [0,1], got %v", c.WinProbability))
	}
	if c.KellyMultiplier <= 0 || c.KellyMultiplier > 1 {
		errs = append(errs, fmt.Errorf("kelly multiplier must be in (0,1], got %v", c.KellyMultiplier))
	}

	if len(c.RiskRewardLevels) == 0 {
		errs = append(errs, errors.New("at least one risk/reward level is required"))
	}
	for i, m := range c.RiskRewardLevels {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("risk/reward level %d must be positive, got %v", i, m))
		}
		if i > 0 && m <= c.RiskRewardLevels[i-1] {
			errs = append(errs, fmt.Errorf("risk/reward levels must be ascending, got %v", c.RiskRewardLevels))
			break
		}
	}

	if c.ScaleOutFractions != nil {
		if len(c.ScaleOutFractions) != len(c.RiskRewardLevels) {
			errs = append(errs, fmt.Errorf("%d scale-out fractions for %d levels", len(c.ScaleOutFractions), len(c.RiskRewardLevels)))
		} else {
			var sum float64
			for _, f := range c.ScaleOutFractions {
				if f <= 0 {
					errs = append(errs, fmt.Errorf("scale-out fraction must be positive, got %v", f))
				}
				sum += f
			}
			if math.Abs(sum-1) > 1e-6 {
				errs = append(errs, fmt.Errorf("scale-out fractions must sum to 1, got %v", sum))
			}
		}
	}

	return errors.Join(errs...)
}

func (c Config) exitFractions() []float64 {
	if c.ScaleOutFractions != nil {
		return c.ScaleOutFractions
	}
	return position.EqualFractions(len(c.RiskRewardLevels))
}

// Deps are the collaborators of one FVGStrategy
type Deps struct {
	Bars     BarSource        // required
	Router   OrderRouter      // required
	Detector GapDetector      // defaults to Detector{}
	Recorder metrics.Recorder // defaults to metrics.Nop
	Schedule calendar.Schedule
	Logger   zerolog.Logger
}

// FVGStrategy trades the first confirmed retest of a fair value gap each
// day in the direction of the daily SMA bias.
//
// Per bar:
//  1. new-day bookkeeping
//  2. stop if a trade was already taken today
//  3. classify bias from the latest close
//  4. entry window gate
//  5. fetch the lookback window and detect gaps
//  6. evaluate and submit at most one bracket
type FVGStrategy struct {
	cfg      Config
	symbol   string
	schedule calendar.Schedule

	bias      *BiasEstimator
	detector  GapDetector
	evaluator *EntryEvaluator
	bars      BarSource
	router    OrderRouter
	recorder  metrics.Recorder
	log       zerolog.Logger

	state    DayState
	day      string
	lastBias Bias
}

// NewFVGStrategy validates cfg and wires the pipeline for one instrument
func NewFVGStrategy(symbol string, cfg Config, deps Deps) (*FVGStrategy, error) {
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", cfg.Name, err)
	}
	if deps.Bars == nil {
		return nil, errors.New("bar source is required")
	}
	if deps.Router == nil {
		return nil, errors.New("order router is required")
	}
	if deps.Detector == nil {
		deps.Detector = Detector{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop{}
	}
	if deps.Schedule.Location == nil {
		deps.Schedule = calendar.DefaultSchedule()
	}

	bias, err := NewBiasEstimator(cfg.SMAWindow)
	if err != nil {
		return nil, err
	}

	return &FVGStrategy{
		cfg:       cfg,
		symbol:    symbol,
		schedule:  deps.Schedule,
		bias:      bias,
		detector:  deps.Detector,
		evaluator: NewEntryEvaluator(cfg, deps.Schedule.Location),
		bars:      deps.Bars,
		router:    deps.Router,
		recorder:  deps.Recorder,
		log:       deps.Logger.With().Str("symbol", symbol).Str("strategy", cfg.Name).Logger(),
		lastBias:  BiasUnknown,
	}, nil
}

// Name returns the variant name
func (s *FVGStrategy) Name() string {
	return s.cfg.Name
}

// Symbol returns the traded instrument
func (s *FVGStrategy) Symbol() string {
	return s.symbol
}

// Config returns a copy of the configuration
func (s *FVGStrategy) Config() Config {
	return s.cfg
}

// DayState returns the current per-day state
func (s *FVGStrategy) DayState() DayState {
	return s.state
}

// Bias returns the last classification made by OnBar
func (s *FVGStrategy) Bias() Bias {
	return s.lastBias
}

// Estimator exposes the daily average, e.g. for warmup
func (s *FVGStrategy) Estimator() *BiasEstimator {
	return s.bias
}

// OnBar runs the per-bar pipeline
func (s *FVGStrategy) OnBar(ctx context.Context, bar model.Candle) {
	if day := s.schedule.TradingDay(bar.Time); day != s.day {
		if s.day != "" && s.state.Phase() != PhaseIdle {
			// session end was missed; never carry a trade into a new day
			s.log.Warn().Str("day", s.day).Msg("day rolled without session end, resetting")
			s.state = s.state.Reset()
		}
		s.day = day
		s.recorder.DayStarted(s.symbol)
	}

	if s.state.Phase() == PhaseTradeTaken {
		if s.cfg.StopRatchet {
			if open, ok := s.state.OpenTrade(); ok {
				if err := s.router.ManageOpenTrade(ctx, open, bar); err != nil {
					s.log.Error().Err(err).Msg("manage open trade")
				}
			}
		}
		return
	}

	bias := s.bias.Classify(bar.Close)
	s.lastBias = bias

	if !s.evaluator.InWindow(bar.Time) {
		return
	}
	s.recorder.WindowChecked(s.symbol)

	window, err := s.bars.FetchBars(ctx, s.symbol, s.lookback(bar), model.ResolutionMinute)
	if err != nil {
		s.log.Debug().Err(err).Msg("fetch bars")
		return
	}
	if len(window) < 3 {
		return
	}

	for _, gap := range s.gaps(window) {
		s.recorder.PatternFound(s.symbol, string(gap.Kind))

		intent, why := s.evaluator.Evaluate(bias, &gap, bar.Close, bar.Time)
		if why == RejectBiasUnknown {
			s.recorder.BiasMismatch(s.symbol)
		}
		if intent == nil {
			idx := gap.Indices()
			s.log.Trace().Str("reason", string(why)).Str("gap", string(gap.Kind)).Ints("bars", idx[:]).Float64("close", bar.Close).Msg("no entry")
			continue
		}

		intent.Symbol = s.symbol
		s.enter(ctx, *intent)
		return
	}
}

func (s *FVGStrategy) enter(ctx context.Context, intent OrderIntent) {
	s.recorder.TradeAttempted(s.symbol, string(intent.Direction))
	s.state = s.state.WithTrade(intent)

	s.log.Info().
		Str("direction", string(intent.Direction)).
		Str("gap", string(intent.Gap.Kind)).
		Float64("entry", intent.EntryPrice).
		Float64("stop", intent.StopLoss).
		Float64("risk", intent.Risk).
		Float64("kelly", intent.KellyFraction).
		Time("time", intent.Time).
		Msg("entry confirmed")

	if err := s.router.SubmitBracket(ctx, intent); err != nil {
		s.log.Error().Err(err).Msg("submit bracket")
	}
}

// gaps returns the candidates to evaluate on this bar, in order
func (s *FVGStrategy) gaps(window []model.Candle) []GapPattern {
	if s.cfg.ScanAllGaps {
		gaps := s.detector.FindGaps(window)
		if len(gaps) > 0 {
			s.state = s.state.WithGap(gaps[0])
		}
		return gaps
	}

	if s.cfg.CacheGap && s.state.ActiveGap != nil {
		if g, ok := relocate(*s.state.ActiveGap, window); ok {
			return []GapPattern{g}
		}
	}

	g := s.detector.FindFirstGap(window)
	if g == nil {
		return nil
	}
	s.state = s.state.WithGap(*g)
	return []GapPattern{*g}
}

// lookback is max(min bars, minutes since open + padding)
func (s *FVGStrategy) lookback(bar model.Candle) int {
	return max(s.cfg.MinLookbackBars, s.schedule.MinutesSinceOpen(bar.Time)+lookbackPadding)
}

// OnSessionEnd flattens the instrument and resets the day
func (s *FVGStrategy) OnSessionEnd(ctx context.Context) {
	if err := s.router.Flatten(ctx, s.symbol); err != nil {
		s.log.Error().Err(err).Msg("end of day flatten")
	}
	if s.state.TradeTaken {
		s.log.Debug().Str("day", s.day).Msg("day closed with trade")
	}
	s.state = s.state.Reset()
}

// Warmup seeds the bias average with historical daily candles, oldest first
func (s *FVGStrategy) Warmup(daily []model.Candle) {
	s.bias.Seed(Closes(daily))
	s.log.Debug().Int("closes", len(daily)).Float64("sma", CalculateMA(daily, s.bias.Window())).Msg("bias warmed up")
}

// OnDailyClose updates the bias average with a completed day's close
func (s *FVGStrategy) OnDailyClose(close float64) Bias {
	b := s.bias.Update(close)
	s.log.Debug().Float64("close", close).Float64("sma", s.bias.Value()).Str("bias", string(b)).Msg("daily close")
	return b
}
