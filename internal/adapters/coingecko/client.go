package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ports"
)

// API plans selecting the base URL.
const (
	PlanPublic = "public"
	PlanPro    = "pro"
)

const (
	publicBaseURL = "https://api.coingecko.com/api/v3"
	proBaseURL    = "https://pro-api.coingecko.com/api/v3"

	vsCurrency        = "usd"
	defaultIDCacheTTL = 24 * time.Hour
)

// Client implements ports.PriceFeed on the CoinGecko REST API. Tickers are
// mapped to coin ids through /search; the mapping is kept in the cache.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	http         *http.Client
	cache        ports.Cache
	idTTL        time.Duration
	logger       ports.Logger
}

var _ ports.PriceFeed = (*Client)(nil)

// Config holds configuration for the CoinGecko adapter.
type Config struct {
	BaseURL    string
	APIKey     string
	Cache      ports.Cache   // Optional; coin ids are looked up every call without it
	IDCacheTTL time.Duration // Lifetime of a symbol to coin id mapping
	HTTPClient *http.Client
	Logger     ports.Logger
}

// New creates a CoinGecko price feed.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CoinGecko client: %w", ports.ErrConfigurationError)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = publicBaseURL
	}

	header := "x-cg-demo-api-key"
	if strings.Contains(baseURL, "pro-api.coingecko.com") {
		header = "x-cg-pro-api-key"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.IDCacheTTL
	if ttl <= 0 {
		ttl = defaultIDCacheTTL
	}

	return &Client{
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		apiKeyHeader: header,
		http:         httpClient,
		cache:        cfg.Cache,
		idTTL:        ttl,
		logger:       cfg.Logger,
	}, nil
}

// DefaultBaseURL returns the API root for plan; anything but PlanPro is public.
func DefaultBaseURL(plan string) string {
	if strings.EqualFold(plan, PlanPro) {
		return proBaseURL
	}
	return publicBaseURL
}

// Name identifies the feed in price quotes.
func (c *Client) Name() domain.PriceSource {
	return domain.SourceCoinGecko
}

// FetchPriceUSD resolves the coin id for symbol and returns its USD price.
func (c *Client) FetchPriceUSD(ctx context.Context, symbol string) (float64, error) {
	sym := domain.NormalizeSymbol(symbol)
	id, err := c.CoinID(ctx, sym)
	if err != nil {
		return 0, err
	}

	var payload map[string]map[string]float64
	if err := c.getJSON(ctx, "/simple/price", url.Values{"ids": {id}, "vs_currencies": {vsCurrency}}, &payload); err != nil {
		return 0, fmt.Errorf("coingecko price for %s: %w", sym, err)
	}

	price, ok := payload[id][vsCurrency]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("coingecko price for %s (%s): %w", sym, id, ports.ErrPriceUnavailable)
	}
	c.logger.Debug(ctx, "CoinGecko price fetched", map[string]interface{}{"symbol": sym, "coinID": id, "price": price})
	return price, nil
}

type searchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		MarketCapRank int    `json:"market_cap_rank"`
	} `json:"coins"`
}

// CoinID maps a ticker to a CoinGecko coin id. Among coins sharing the
// ticker, the best ranked by market cap wins; unranked coins lose to ranked ones.
func (c *Client) CoinID(ctx context.Context, symbol string) (string, error) {
	sym := domain.NormalizeSymbol(symbol)
	key := "coingecko-id:" + sym

	if c.cache != nil {
		if entry, err := c.cache.Get(ctx, key); err == nil && len(entry.Value) > 0 {
			return string(entry.Value), nil
		} else if err != nil && !errors.Is(err, ports.ErrCacheMiss) {
			c.logger.Warn(ctx, "Coin id cache read failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
		}
	}

	var res searchResponse
	if err := c.getJSON(ctx, "/search", url.Values{"query": {sym}}, &res); err != nil {
		return "", fmt.Errorf("coingecko search for %s: %w", sym, err)
	}

	bestID, bestRank := "", 0
	for _, coin := range res.Coins {
		if !strings.EqualFold(coin.Symbol, sym) || coin.ID == "" {
			continue
		}
		if bestID == "" || betterRank(coin.MarketCapRank, bestRank) {
			bestID, bestRank = coin.ID, coin.MarketCapRank
		}
	}
	if bestID == "" {
		return "", fmt.Errorf("coingecko has no coin for %s: %w", sym, ports.ErrPriceUnavailable)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, []byte(bestID), c.idTTL); err != nil {
			c.logger.Warn(ctx, "Coin id cache write failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
		}
	}
	return bestID, nil
}

func betterRank(candidate, current int) bool {
	if candidate <= 0 {
		return false
	}
	return current <= 0 || candidate < current
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		case errors.Is(err, context.Canceled):
			return fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
		default:
			return fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ports.ErrRateLimited, statusErr)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ports.ErrAuthenticationFailed, statusErr)
		default:
			return fmt.Errorf("%w: %w", ports.ErrExchangeUnavailable, statusErr)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, ports.ErrUnknown, err)
	}
	return nil
}
