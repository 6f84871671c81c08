package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives the strategy's diagnostic counters.
// Implementations must not influence trading decisions.
type Recorder interface {
	DayStarted(symbol string)
	WindowChecked(symbol string)
	PatternFound(symbol, kind string)
	BiasMismatch(symbol string)
	TradeAttempted(symbol, direction string)
}

// Nop discards everything
type Nop struct{}

func (Nop) DayStarted(string)             {}
func (Nop) WindowChecked(string)          {}
func (Nop) PatternFound(string, string)   {}
func (Nop) BiasMismatch(string)           {}
func (Nop) TradeAttempted(string, string) {}

// Snapshot is a point-in-time copy of Stats
type Snapshot struct {
	DaysWithData    int `json:"days_with_data"`
	WindowChecks    int `json:"window_checks"`
	PatternsFound   int `json:"patterns_found"`
	BiasMismatches  int `json:"bias_mismatches"`
	TradesAttempted int `json:"trades_attempted"`
}

// Add returns the field-wise sum
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		DaysWithData:    s.DaysWithData + o.DaysWithData,
		WindowChecks:    s.WindowChecks + o.WindowChecks,
		PatternsFound:   s.PatternsFound + o.PatternsFound,
		BiasMismatches:  s.BiasMismatches + o.BiasMismatches,
		TradesAttempted: s.TradesAttempted + o.TradesAttempted,
	}
}

// Stats counts in memory, one per instrument run
type Stats struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewStats creates an empty counter set
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) DayStarted(string) {
	s.mu.Lock()
	s.snap.DaysWithData++
	s.mu.Unlock()
}

func (s *Stats) WindowChecked(string) {
	s.mu.Lock()
	s.snap.WindowChecks++
	s.mu.Unlock()
}

func (s *Stats) PatternFound(string, string) {
	s.mu.Lock()
	s.snap.PatternsFound++
	s.mu.Unlock()
}

func (s *Stats) BiasMismatch(string) {
	s.mu.Lock()
	s.snap.BiasMismatches++
	s.mu.Unlock()
}

func (s *Stats) TradeAttempted(string, string) {
	s.mu.Lock()
	s.snap.TradesAttempted++
	s.mu.Unlock()
}

// Snapshot returns the current totals
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Prometheus exports the counters as labelled counter vectors
type Prometheus struct {
	days       *prometheus.CounterVec
	windows    *prometheus.CounterVec
	patterns   *prometheus.CounterVec
	mismatches *prometheus.CounterVec
	trades     *prometheus.CounterVec
}

// NewPrometheus registers the fvg_* counters on reg
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		days: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fvg_days_with_data_total", Help: "Trading days with at least one bar"},
			[]string{"symbol"},
		),
		windows: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fvg_window_checks_total", Help: "Bars evaluated inside the entry window"},
			[]string{"symbol"},
		),
		patterns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fvg_patterns_found_total", Help: "Fair value gaps detected"},
			[]string{"symbol", "kind"},
		),
		mismatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fvg_bias_mismatches_total", Help: "Gaps found without a usable bias"},
			[]string{"symbol"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "fvg_trades_attempted_total", Help: "Bracket orders submitted"},
			[]string{"symbol", "direction"},
		),
	}
	reg.MustRegister(p.days, p.windows, p.patterns, p.mismatches, p.trades)
	return p
}

func (p *Prometheus) DayStarted(symbol string) { p.days.WithLabelValues(symbol).Inc() }

func (p *Prometheus) WindowChecked(symbol string) { p.windows.WithLabelValues(symbol).Inc() }

func (p *Prometheus) PatternFound(symbol, kind string) {
	p.patterns.WithLabelValues(symbol, kind).Inc()
}

func (p *Prometheus) BiasMismatch(symbol string) { p.mismatches.WithLabelValues(symbol).Inc() }

func (p *Prometheus) TradeAttempted(symbol, direction string) {
	p.trades.WithLabelValues(symbol, direction).Inc()
}

// Multi fans out to several recorders
type Multi []Recorder

func (m Multi) DayStarted(symbol string) {
	for _, r := range m {
		r.DayStarted(symbol)
	}
}

func (m Multi) WindowChecked(symbol string) {
	for _, r := range m {
		r.WindowChecked(symbol)
	}
}

func (m Multi) PatternFound(symbol, kind string) {
	for _, r := range m {
		r.PatternFound(symbol, kind)
	}
}

func (m Multi) BiasMismatch(symbol string) {
	for _, r := range m {
		r.BiasMismatch(symbol)
	}
}

func (m Multi) TradeAttempted(symbol, direction string) {
	for _, r := range m {
		r.TradeAttempted(symbol, direction)
	}
}

// Serve exposes /metrics for the default registry
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
