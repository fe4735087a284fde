package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cryptoJournal/config"
	"cryptoJournal/internal/adapters/cache"
	"cryptoJournal/internal/adapters/logger"
	"cryptoJournal/internal/adapters/sqlite"
	"cryptoJournal/internal/app"
	"cryptoJournal/internal/pricing"
	"cryptoJournal/internal/utils"
)

func main() {
	accountID := flag.String("account", "", "account to import into (required)")
	file := flag.String("file", "", "CSV file with columns executed_at,symbol,kind,side,quantity,price_usd,fee_usd[,note] (required)")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing anything")
	skipInvalid := flag.Bool("skip-invalid", false, "import the valid rows even when some rows are rejected")
	flag.Parse()

	if *accountID == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel).Named("import")
	ctx := context.Background()

	// 2. Parse the file
	inputs, err := utils.ReadTradesFromCSVFile(*file)
	if err != nil {
		log.Fatalf("Error reading trades from %s: %v", *file, err)
	}
	appLogger.Info(ctx, "Trade file parsed", map[string]interface{}{"file": *file, "rows": len(inputs)})

	// 3. Initialize Repository and Service
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// Imports never value positions, so the resolver runs without live feeds.
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

	// 4. Validate every row before writing any
	valid := make([]app.TradeInput, 0, len(inputs))
	rejected := 0
	for i, in := range inputs {
		if _, err := journal.BuildTrade(*accountID, in); err != nil {
			rejected++
			fmt.Fprintf(os.Stderr, "row %d (%s %s): %v\n", i+1, in.Symbol, in.Side, err)
			continue
		}
		valid = append(valid, in)
	}
	if rejected > 0 && !*skipInvalid {
		log.Fatalf("%d of %d rows rejected, nothing imported (use -skip-invalid to import the rest)", rejected, len(inputs))
	}
	if *dryRun {
		fmt.Printf("dry run: %d valid, %d rejected\n", len(valid), rejected)
		return
	}

	// 5. Record
	imported := 0
	for _, in := range valid {
		if _, err := journal.RecordTrade(ctx, *accountID, in); err != nil {
			log.Fatalf("Error recording trade after %d imported: %v", imported, err)
		}
		imported++
	}
	fmt.Printf("imported %d trades into account %s (%d rejected)\n", imported, *accountID, rejected)
}
