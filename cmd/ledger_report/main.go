package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"cryptoJournal/config"
	"cryptoJournal/internal/adapters/cache"
	"cryptoJournal/internal/adapters/logger"
	"cryptoJournal/internal/adapters/sqlite"
	"cryptoJournal/internal/analytics"
	"cryptoJournal/internal/app"
	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/pricing"
	"cryptoJournal/internal/utils"
)

func main() {
	accountID := flag.String("account", "", "account to report on (required)")
	symbol := flag.String("symbol", "", "asset to print the ledger of; empty prints the portfolio")
	csvPath := flag.String("csv", "", "also write the ledger rows to this CSV file")
	flag.Parse()

	if *accountID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(logger.LevelWarn).Named("report")
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// Offline report: prices come from stored snapshots or the entry price.
	resolver, err := pricing.NewResolver(pricing.Config{
		Cache:     cache.NewMemoryCache(),
		Snapshots: repo,
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize price resolver: %v", err)
	}
	journal, err := app.NewJournalService(app.Config{
		Trades:          repo,
		Strategies:      repo,
		Prices:          resolver,
		Logger:          appLogger,
		DefaultMaxSteps: cfg.ExitPlanDefaultSteps,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}

	if *symbol == "" {
		summary, err := journal.PortfolioSummary(ctx, *accountID)
		if err != nil {
			log.Fatalf("Error building portfolio: %v", err)
		}
		printPortfolio(summary)
		return
	}

	view, err := journal.AssetLedger(ctx, *accountID, *symbol)
	if err != nil {
		log.Fatalf("Error building ledger for %s: %v", *symbol, err)
	}
	printLedger(view)
	printPerformance(analytics.AnalyzeRealized(view.Rows))

	if *csvPath != "" {
		if err := utils.WriteLedgerCSVFile(view.Rows, *csvPath); err != nil {
			log.Fatalf("Error writing CSV: %v", err)
		}
		fmt.Printf("\nLedger written to %s\n", *csvPath)
	}
}

func printPortfolio(p *domain.PortfolioSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tQty\tAvgEntry\tPrice\tSource\tValue\tRealized\tUnrealized\tTotal%\t")
	for _, a := range p.Assets {
		source := string(a.PriceSource)
		if a.IsEstimated {
			source += "*"
		}
		fmt.Fprintf(w, "%s\t%.8g\t%.2f\t%.2f\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			a.Symbol,
			a.QuantityHeld,
			a.AverageEntryPriceUSD,
			a.CurrentPriceUSD,
			source,
			a.HoldingsValueUSD,
			a.RealizedProfitUSD,
			a.UnrealizedProfitUSD,
			a.TotalProfitPct,
		)
	}
	w.Flush()

	fmt.Printf("\nBalance %.2f  Invested %.2f  Realized %.2f  Unrealized %.2f  Total %.2f (%.2f%%)\n",
		p.CurrentBalanceUSD, p.TotalInvestedUSD, p.RealizedProfitUSD, p.UnrealizedProfitUSD,
		p.TotalProfitUSD, p.TotalProfitPct)
	if p.TopPerformer != nil {
		fmt.Printf("Top performer: %s (%.2f%%)\n", p.TopPerformer.Symbol, p.TopPerformer.TotalProfitPct)
	}
	fmt.Println("* estimated price")
}

func printLedger(view *app.LedgerView) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Date\tSide\tQty\tPrice\tTotal\tFee\tGain/Loss\tGain%\tHeld\tAvgPrice\t")
	for _, row := range view.Rows {
		fmt.Fprintf(w, "%s\t%s\t%.8g\t%.2f\t%.2f\t%.2f\t%s\t%s\t%.8g\t%.2f\t\n",
			row.ExecutedAt.Format("2006-01-02 15:04"),
			row.Side,
			row.Quantity,
			row.PriceUSD,
			row.TotalUSD,
			row.FeeUSD,
			optional(row.GainLossUSD),
			optional(row.GainLossPct),
			row.QuantityAfter,
			row.AvgPriceAfterUSD,
		)
	}
	w.Flush()

	pos := view.Position
	fmt.Printf("\n## %s position\n", view.Symbol)
	fmt.Printf("Held %.8g @ %.2f  Cost basis %.2f  Invested %.2f  Realized %.2f\n",
		pos.QuantityHeld, pos.AverageEntryPrice(), pos.CostBasisUSD, pos.TotalInvestedUSD, pos.RealizedProfitUSD)
}

func printPerformance(perf *analytics.RealizedPerformance) {
	if perf.TotalSells == 0 {
		return
	}
	fmt.Println("\n## Realized performance")
	fmt.Printf("Sells %d  Won %d  Lost %d  WinRate %.2f%%\n",
		perf.TotalSells, perf.WinningSells, perf.LosingSells, perf.WinRate*100)
	fmt.Printf("AvgWin %.2f  AvgLoss %.2f  ProfitFactor %.2f  Expectancy %.2f  MaxDD %.2f\n",
		perf.AverageWinUSD, perf.AverageLossUSD, perf.ProfitFactor, perf.Expectancy, perf.MaxDrawdownUSD)

	months := make([]string, 0, len(perf.MonthlyRealized))
	for month := range perf.MonthlyRealized {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		fmt.Printf("  %s  %.2f\n", month, perf.MonthlyRealized[month])
	}
}

func optional(x *float64) string {
	if x == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *x)
}
