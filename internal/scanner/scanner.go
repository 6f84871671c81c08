package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fvgtrader/internal/broker"
	"fvgtrader/internal/execution"
	"fvgtrader/internal/metrics"
	"fvgtrader/internal/provider"
	"fvgtrader/internal/session"
	"fvgtrader/internal/strategy"
	"fvgtrader/internal/symbols"
	"fvgtrader/pkg/model"
)

// ProgressCallback is called with progress updates
type ProgressCallback func(scanned, total int)

// Result is one instrument's replay
type Result struct {
	Instrument model.Instrument     `json:"instrument"`
	Report     *session.Report      `json:"report,omitempty"`
	Stats      metrics.Snapshot     `json:"stats"`
	Orders     []broker.OrderResult `json:"orders,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// ScanResult aggregates a scan over several instruments
type ScanResult struct {
	Strategy     string           `json:"strategy"`
	TotalScanned int              `json:"total_scanned"`
	TradedCount  int              `json:"traded_count"`
	Results      []Result         `json:"results"` // input order
	Stats        metrics.Snapshot `json:"stats"`
	ScanTime     time.Duration    `json:"scan_time"`
}

// Scanner replays the strategy over several instruments in parallel.
// Each instrument gets its own strategy, broker and counters.
type Scanner struct {
	provider     provider.Provider
	config       strategy.Config
	execution    execution.Config
	options      session.Options
	workers      int
	timeout      time.Duration
	recorder     metrics.Recorder
	progressFunc ProgressCallback
	log          zerolog.Logger
}

// NewScanner creates a new scanner
func NewScanner(p provider.Provider, cfg strategy.Config, opts session.Options, workers int, timeout time.Duration, logger zerolog.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		provider: p,
		config:   cfg,
		options:  opts,
		workers:  workers,
		timeout:  timeout,
		log:      logger.With().Str("component", "scanner").Logger(),
	}
}

// SetProgressCallback sets the progress callback function
func (s *Scanner) SetProgressCallback(fn ProgressCallback) {
	s.progressFunc = fn
}

// SetRecorder adds a recorder shared by all instruments, e.g. Prometheus
func (s *Scanner) SetRecorder(r metrics.Recorder) {
	s.recorder = r
}

// SetExecution sets order routing; a zero TickSize uses each instrument's tick
func (s *Scanner) SetExecution(cfg execution.Config) {
	s.execution = cfg
}

// Scan replays every instrument. Per-instrument failures are reported in
// the result, not returned.
func (s *Scanner) Scan(ctx context.Context, instruments []model.Instrument) (*ScanResult, error) {
	startTime := time.Now()

	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	result := &ScanResult{
		Strategy: s.config.Name,
		Results:  make([]Result, len(instruments)),
	}
	if len(instruments) == 0 {
		result.ScanTime = time.Since(startTime)
		return result, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// Channels
	jobChan := make(chan int, len(instruments))
	for i := range instruments {
		jobChan <- i
	}
	close(jobChan)

	// Progress counter
	var scannedCount int64

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < min(s.workers, len(instruments)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				inst := instruments[idx]
				if err := ctx.Err(); err != nil {
					result.Results[idx] = Result{Instrument: inst, Error: err.Error()}
				} else {
					result.Results[idx] = s.run(ctx, inst)
				}

				// Update progress
				count := atomic.AddInt64(&scannedCount, 1)
				if s.progressFunc != nil {
					s.progressFunc(int(count), len(instruments))
				}
			}
		}()
	}
	wg.Wait()

	for _, r := range result.Results {
		result.TotalScanned++
		result.Stats = result.Stats.Add(r.Stats)
		if r.Report != nil && r.Report.Trades > 0 {
			result.TradedCount++
		}
	}
	result.ScanTime = time.Since(startTime)

	s.log.Info().
		Int("instruments", result.TotalScanned).
		Int("traded", result.TradedCount).
		Interface("stats", result.Stats).
		Dur("elapsed", result.ScanTime).
		Msg("scan complete")

	return result, nil
}

// ScanSymbols resolves symbols and universe names, then scans them
func (s *Scanner) ScanSymbols(ctx context.Context, args []string) (*ScanResult, error) {
	instruments, err := symbols.Resolve(args)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, instruments)
}

func (s *Scanner) run(ctx context.Context, inst model.Instrument) Result {
	res := Result{Instrument: inst}
	log := s.log.With().Str("symbol", inst.Symbol).Logger()

	stats := metrics.NewStats()
	var rec metrics.Recorder = stats
	if s.recorder != nil {
		rec = metrics.Multi{stats, s.recorder}
	}

	ec := s.execution
	if ec.TickSize == 0 {
		ec.TickSize = inst.TickSize
	}
	paper := broker.NewPaper()
	exec := execution.NewExecutor(paper, ec, log)

	replay := session.NewReplay(inst.Symbol)
	strat, err := strategy.NewFVGStrategy(inst.Symbol, s.config, strategy.Deps{
		Bars:     replay,
		Router:   exec,
		Recorder: rec,
		Logger:   log,
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}

	report, err := session.NewRunner(s.provider, s.options, log).Run(ctx, strat, replay)
	res.Report = report
	res.Stats = stats.Snapshot()
	res.Orders = paper.Orders()
	if err != nil {
		log.Warn().Err(err).Bool("retryable", provider.IsRetryable(err)).Msg("replay failed")
		res.Error = err.Error()
		return res
	}

	// end-of-run summary
	log.Info().
		Int("days_with_data", res.Stats.DaysWithData).
		Int("window_checks", res.Stats.WindowChecks).
		Int("patterns_found", res.Stats.PatternsFound).
		Int("bias_mismatches", res.Stats.BiasMismatches).
		Int("trades_attempted", res.Stats.TradesAttempted).
		Msg("final stats")

	return res
}
