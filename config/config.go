package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoJournal/internal/adapters/coingecko"
	"cryptoJournal/internal/adapters/logger"
	"cryptoJournal/internal/ledger"
)

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all application configuration.
type Config struct {
	// HTTP
	HTTPAddr       string
	AllowedOrigins []string

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string

	// Binance API (public ticker needs no keys)
	BinanceEnabled bool
	APIKey         string
	SecretKey      string
	IsTestnet      bool

	// CoinGecko
	CoinGeckoEnabled bool
	CoinGeckoPlan    string
	CoinGeckoBaseURL string // Derived from the plan unless set
	CoinGeckoAPIKey  string

	// Redis; an empty address selects the in-memory cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Price resolution
	PriceCacheTTL    time.Duration
	PriceNegativeTTL time.Duration
	CoinIDCacheTTL   time.Duration
	PriceTimeout     time.Duration

	// Exit plans
	ExitPlanDefaultSteps int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// HTTP
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		errs = append(errs, "HTTP_ADDR must be set")
	}
	cfg.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", ""))

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", LogFormatText))
	if cfg.LogFormat != LogFormatText && cfg.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be %q or %q", LogFormatText, LogFormatJSON))
	}

	// Binance API
	cfg.BinanceEnabled = getEnvAsBool("BINANCE_ENABLED", true)
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)
	if (cfg.APIKey == "") != (cfg.SecretKey == "") {
		errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set together")
	}

	// CoinGecko
	cfg.CoinGeckoEnabled = getEnvAsBool("COINGECKO_ENABLED", true)
	cfg.CoinGeckoPlan = strings.ToLower(getEnv("COINGECKO_PLAN", coingecko.PlanPublic))
	if cfg.CoinGeckoPlan != coingecko.PlanPublic && cfg.CoinGeckoPlan != coingecko.PlanPro {
		errs = append(errs, fmt.Sprintf("COINGECKO_PLAN must be %q or %q", coingecko.PlanPublic, coingecko.PlanPro))
	}
	cfg.CoinGeckoBaseURL = getEnv("COINGECKO_BASE_URL", coingecko.DefaultBaseURL(cfg.CoinGeckoPlan))
	cfg.CoinGeckoAPIKey = getEnv("COINGECKO_API_KEY", "")

	// Redis
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsIntRequired("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REDIS_DB: %v", err))
	} else if cfg.RedisDB < 0 {
		errs = append(errs, "REDIS_DB cannot be negative")
	}

	// Price resolution
	cfg.PriceCacheTTL, err = getEnvAsSecondsRequired("PRICE_CACHE_TTL_SECONDS", 60)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.PriceNegativeTTL, err = getEnvAsSecondsRequired("PRICE_NEGATIVE_TTL_SECONDS", 300)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.CoinIDCacheTTL, err = getEnvAsSecondsRequired("COIN_ID_CACHE_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.PriceTimeout, err = getEnvAsSecondsRequired("PRICE_TIMEOUT_SECONDS", 5)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// Exit plans
	cfg.ExitPlanDefaultSteps, err = getEnvAsIntRequired("EXIT_PLAN_DEFAULT_STEPS", ledger.DefaultMaxSteps)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXIT_PLAN_DEFAULT_STEPS: %v", err))
	} else if cfg.ExitPlanDefaultSteps < 1 || cfg.ExitPlanDefaultSteps > ledger.MaxStepsCap {
		errs = append(errs, fmt.Sprintf("EXIT_PLAN_DEFAULT_STEPS must be between 1 and %d", ledger.MaxStepsCap))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsSecondsRequired reads a positive whole number of seconds.
func getEnvAsSecondsRequired(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := getEnvAsIntRequired(key, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
