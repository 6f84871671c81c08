package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"fvgtrader/internal/config"
	"fvgtrader/internal/logging"
	"fvgtrader/internal/metrics"
	"fvgtrader/internal/provider"
	"fvgtrader/internal/scanner"
	"fvgtrader/internal/session"
	"fvgtrader/internal/strategy"
)

var (
	cfgFile      string
	envFile      string
	strategyName string
	symbolList   string
	sourceList   string
	csvDir       string
	days         int
	warmupDays   int
	workers      int
	format       string
	dryRun       bool
	metricsAddr  string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fvgtrader",
		Short: "Fair value gap day-trading strategy for index futures",
		Long: `fvgtrader replays intraday sessions of index futures through the
first-fair-value-gap strategy: trade the first confirmed retest of a
three-bar gap each day, in the direction of the daily SMA bias.

Examples:
  fvgtrader variants
  fvgtrader scan --symbols NQ=F,ES=F --days 5
  fvgtrader scan --strategy scale-out --symbols index --format json`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Replay recent sessions for each symbol and report entries",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&strategyName, "strategy", "", "strategy variant (replaces the config file's strategy section)")
	scanCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated symbols or universes: index, micro, test")
	scanCmd.Flags().StringVar(&sourceList, "source", "", "comma-separated data sources in fallback order: yahoo, csv, clickhouse")
	scanCmd.Flags().StringVar(&csvDir, "csv-dir", "", "directory of <SYMBOL>.csv minute files")
	scanCmd.Flags().IntVar(&days, "days", 0, "intraday sessions to replay")
	scanCmd.Flags().IntVar(&warmupDays, "warmup", -1, "daily closes used to warm up the bias")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers")
	scanCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	scanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log orders without sending them to the paper broker")
	scanCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	scanCmd.Flags().BoolVar(&verbose, "verbose", false, "show per-day details")

	variantsCmd := &cobra.Command{
		Use:   "variants",
		Short: "List the registered strategy variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return outputVariants(os.Stdout, strategy.All())
		},
	}

	rootCmd.AddCommand(scanCmd, variantsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if verbose && logger.GetLevel() > zerolog.DebugLevel {
		logger = logger.Level(zerolog.DebugLevel)
	}

	stratCfg, err := cfg.Strategy.ToStrategy()
	if err != nil {
		return err
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping scan...")
		cancel()
	}()

	providers, closeAll, err := createProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	fallback := provider.NewFallbackProvider(providers...)
	if !fallback.IsAvailable() {
		return fmt.Errorf("no available data providers")
	}
	names := make([]string, 0, len(providers))
	for _, p := range fallback.Providers() {
		names = append(names, p.Name())
	}
	logger.Debug().Strs("providers", names).Msg("data sources ready")

	var source provider.Provider = fallback
	if cfg.Data.CacheDays > 0 {
		source = provider.NewCachingProvider(source, cfg.Data.CacheDays)
	}

	s := scanner.NewScanner(source, stratCfg, session.Options{
		Days:       cfg.Data.Days,
		WarmupDays: cfg.Data.WarmupDays,
		Interval:   cfg.Data.Interval,
	}, cfg.Scanner.Workers, cfg.Scanner.Timeout, logger)
	s.SetExecution(cfg.ExecutionFor(0))

	if cfg.Metrics.Addr != "" {
		s.SetRecorder(metrics.NewPrometheus(prometheus.DefaultRegisterer))
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint up")
	}

	fmt.Fprintf(os.Stderr, "Replaying %d session(s) of %s with %s...\n\n",
		cfg.Data.Days, strings.Join(cfg.Scanner.Symbols, ", "), stratCfg.Name)

	// Setup progress bar
	bar := progressbar.NewOptions(len(cfg.Scanner.Symbols),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	// Run scan
	result, err := s.ScanSymbols(ctx, cfg.Scanner.Symbols)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	bar.Finish()
	fmt.Fprintln(os.Stderr)

	// Output results
	if format == "json" {
		return outputJSON(os.Stdout, result)
	}
	return outputTable(os.Stdout, result, verbose)
}

// applyFlags overrides config with CLI flags the user set
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("strategy") {
		v, err := strategy.Get(strategyName)
		if err != nil {
			return err
		}
		cfg.Strategy = config.FromStrategy(v.Config())
	}
	if symbolList != "" {
		cfg.Scanner.Symbols = splitList(symbolList)
	}
	if sourceList != "" {
		cfg.Data.Sources = splitList(sourceList)
	}
	if csvDir != "" {
		cfg.Data.CSVDir = csvDir
	}
	if days > 0 {
		cfg.Data.Days = days
	}
	if flags.Changed("warmup") {
		cfg.Data.WarmupDays = warmupDays
	}
	if workers > 0 {
		cfg.Scanner.Workers = workers
	}
	if dryRun {
		cfg.Execution.DryRun = true
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// createProviders builds the configured sources in fallback order
func createProviders(ctx context.Context, cfg *config.Config) ([]provider.Provider, func(), error) {
	var (
		providers []provider.Provider
		closers   []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	for _, src := range cfg.Data.Sources {
		switch src {
		case config.SourceYahoo:
			providers = append(providers, provider.NewYahooProvider())
		case config.SourceCSV:
			providers = append(providers, provider.NewCSVProvider(cfg.Data.CSVDir))
		case config.SourceClickHouse:
			ch, err := provider.NewClickHouseProvider(ctx, cfg.Data.ClickHouseDSN, cfg.Data.ClickHouseTable)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			providers = append(providers, ch)
			closers = append(closers, ch.Close)
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown data source %q", src)
		}
	}
	return providers, closeAll, nil
}
