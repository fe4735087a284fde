package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptoJournal/config"
	"cryptoJournal/internal/adapters/binanceclient"
	"cryptoJournal/internal/adapters/cache"
	"cryptoJournal/internal/adapters/coingecko"
	"cryptoJournal/internal/adapters/logger"
	"cryptoJournal/internal/adapters/sqlite"
	"cryptoJournal/internal/api"
	"cryptoJournal/internal/app"
	"cryptoJournal/internal/metrics"
	"cryptoJournal/internal/pricing"
	"cryptoJournal/internal/ports"
)

const shutdownTimeout = 10 * time.Second

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, syncLogger := newLogger(cfg)
	defer syncLogger()
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 4. Initialize Cache
	var priceCache ports.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "journal:",
			Logger:   appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to connect to Redis")
			log.Fatalf("FATAL: Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		priceCache = redisCache
		appLogger.Info(ctx, "Redis cache initialized", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		priceCache = cache.NewMemoryCache()
		appLogger.Info(ctx, "In-memory cache initialized")
	}

	// 5. Initialize Price Feeds
	m := metrics.New(nil)
	var feeds []ports.PriceFeed
	if cfg.BinanceEnabled {
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PriceTimeout)
		if err := binanceClient.Ping(pingCtx); err != nil {
			appLogger.Warn(ctx, "Binance unreachable at startup, continuing", map[string]interface{}{"error": err.Error()})
		}
		cancel()
		feeds = append(feeds, binanceClient)
	}
	if cfg.CoinGeckoEnabled {
		geckoClient, err := coingecko.New(coingecko.Config{
			BaseURL:    cfg.CoinGeckoBaseURL,
			APIKey:     cfg.CoinGeckoAPIKey,
			Cache:      priceCache,
			IDCacheTTL: cfg.CoinIDCacheTTL,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize CoinGecko client")
			log.Fatalf("FATAL: Failed to initialize CoinGecko client: %v", err)
		}
		feeds = append(feeds, geckoClient)
	}
	if len(feeds) == 0 {
		appLogger.Warn(ctx, "No live price feeds enabled, valuations fall back to snapshots and entry prices")
	}

	resolver, err := pricing.NewResolver(pricing.Config{
		Feeds:       feeds,
		Cache:       priceCache,
		Snapshots:   repo,
		PriceTTL:    cfg.PriceCacheTTL,
		NegativeTTL: cfg.PriceNegativeTTL,
		FeedTimeout: cfg.PriceTimeout,
		Metrics:     m,
		Logger:      appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize price resolver")
		log.Fatalf("FATAL: Failed to initialize price resolver: %v", err)
	}

	// 6. Initialize Application Service
	journal, err := app.NewJournalService(app.Config{
		Trades:          repo,
		Strategies:      repo,
		Prices:          resolver,
		Metrics:         m,
		Logger:          appLogger,
		DefaultMaxSteps: cfg.ExitPlanDefaultSteps,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize journal service")
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}

	server, err := api.NewServer(api.Config{
		Journal:        journal,
		Metrics:        m,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize API server")
		log.Fatalf("FATAL: Failed to initialize API server: %v", err)
	}

	// 7. Serve until a shutdown signal arrives
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	if err := server.Run(runCtx, cfg.HTTPAddr, shutdownTimeout); err != nil {
		appLogger.Error(ctx, err, "API server exited with error")
		exitCode = 1
		return
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}

// newLogger builds the configured logger and a flush func to defer.
func newLogger(cfg *config.Config) (ports.Logger, func()) {
	if cfg.LogFormat == config.LogFormatJSON {
		zl, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize zap logger: %v", err)
		}
		return zl, func() { _ = zl.Sync() }
	}
	return logger.NewStdLogger(cfg.LogLevel).Named("journal"), func() {}
}
