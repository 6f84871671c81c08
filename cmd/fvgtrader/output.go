package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"fvgtrader/internal/position"
	"fvgtrader/internal/scanner"
	"fvgtrader/internal/strategy"
)

func outputVariants(w io.Writer, variants []strategy.Variant) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Name", "Window", "Targets", "Size", "Breakeven", "Kelly", "Description"}),
	)

	for _, v := range variants {
		cfg := v.Config()
		eval := strategy.NewEntryEvaluator(cfg, nil)
		table.Append([]string{
			v.Name,
			cfg.EntryWindow.String(),
			formatLevels(cfg.RiskRewardLevels),
			fmt.Sprintf("%d", cfg.PositionSize),
			fmt.Sprintf("%.1f%%", position.BreakevenWinRate(eval.Payoff())*100),
			fmt.Sprintf("%.1f%%", eval.KellyFraction()*100),
			v.Description,
		})
	}

	return table.Render()
}

func outputTable(w io.Writer, result *scanner.ScanResult, verbose bool) error {
	if result.TotalScanned == 0 {
		fmt.Fprintln(w, "No instruments scanned.")
		return nil
	}

	fmt.Fprintf(w, "Strategy %s: %d of %d instrument(s) traded\n\n", result.Strategy, result.TradedCount, result.TotalScanned)

	// Main table
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Symbol", "Period", "Days", "Trades", "Gaps", "Mismatch", "Last Bias", "Status"}),
	)

	for _, r := range result.Results {
		period, sessions, trades, bias := "-", "-", "-", "-"
		if r.Report != nil {
			period = r.Report.Period
			sessions = fmt.Sprintf("%d", len(r.Report.Days))
			trades = fmt.Sprintf("%d", r.Report.Trades)
			if n := len(r.Report.Days); n > 0 {
				bias = string(r.Report.Days[n-1].NextBias)
			}
		}

		status := "ok"
		if r.Error != "" {
			status = r.Error
			if len(status) > 40 {
				status = status[:40] + "..."
			}
		}

		table.Append([]string{
			r.Instrument.Symbol,
			period,
			sessions,
			trades,
			fmt.Sprintf("%d", r.Stats.PatternsFound),
			fmt.Sprintf("%d", r.Stats.BiasMismatches),
			bias,
			status,
		})
	}

	if err := table.Render(); err != nil {
		return err
	}

	// Entry details
	fmt.Fprintln(w, "\n--- Entries ---")
	entries := 0
	for _, r := range result.Results {
		if r.Report == nil {
			continue
		}
		for _, d := range r.Report.Days {
			if d.Trade == nil {
				if verbose {
					fmt.Fprintf(w, "[%s] %s  no entry (close %.2f, next bias %s)\n", r.Instrument.Symbol, d.Date, d.DailyClose, d.NextBias)
				}
				continue
			}
			entries++
			tr := d.Trade
			fmt.Fprintf(w, "\n[%s] %s %s %s x%d @ %.2f\n",
				r.Instrument.Symbol, tr.Time.Format("2006-01-02 15:04"), strings.ToUpper(string(tr.Direction)), tr.Gap.Kind, tr.Quantity, tr.EntryPrice)
			fmt.Fprintf(w, "  Stop: %.2f | Risk: %.2f | Bias: %s | Kelly: %.1f%%\n",
				tr.StopLoss, tr.Risk, tr.Bias, tr.KellyFraction*100)
			for _, tp := range tr.TakeProfits {
				fmt.Fprintf(w, "  >> %gR target %.2f x%d\n", tp.Multiple, tp.Price, tp.Quantity)
			}
		}
	}
	if entries == 0 {
		fmt.Fprintln(w, "No entries.")
	}

	s := result.Stats
	fmt.Fprintf(w, "\nDays %d | Window checks %d | Gaps %d | Bias mismatches %d | Trades %d\n",
		s.DaysWithData, s.WindowChecks, s.PatternsFound, s.BiasMismatches, s.TradesAttempted)
	fmt.Fprintf(w, "Scanned %d instrument(s) in %s\n", result.TotalScanned, result.ScanTime.Round(time.Millisecond))
	return nil
}

func outputJSON(w io.Writer, result *scanner.ScanResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func formatLevels(levels []float64) string {
	parts := make([]string, len(levels))
	for i, m := range levels {
		parts[i] = fmt.Sprintf("%gR", m)
	}
	return strings.Join(parts, " ")
}
