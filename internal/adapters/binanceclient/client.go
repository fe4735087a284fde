package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	// DefaultQuoteAsset is the USD-pegged asset every symbol is priced against.
	DefaultQuoteAsset = "USDT"
)

// Client implements ports.PriceFeed on the Binance spot ticker.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	quoteAsset string
}

var _ ports.PriceFeed = (*Client)(nil)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet URL when set
	QuoteAsset string // Defaults to USDT
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client: %w", ports.ErrConfigurationError)
	}

	// Ticker prices are public; keys are optional.
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance price feed configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"testnet": cfg.UseTestnet,
	})

	quote := strings.ToUpper(strings.TrimSpace(cfg.QuoteAsset))
	if quote == "" {
		quote = DefaultQuoteAsset
	}

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		quoteAsset: quote,
	}, nil
}

// Name identifies the feed in price quotes.
func (c *Client) Name() domain.PriceSource {
	return domain.SourceBinance
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature or API key
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrPriceUnavailable
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106: // Parameter errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrExchangeUnavailable
		}
		c.logger.Warn(ctx, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Warn(ctx, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks connectivity to the REST API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// FetchPriceUSD returns the last traded price of <symbol><quote>.
func (c *Client) FetchPriceUSD(ctx context.Context, symbol string) (float64, error) {
	op := "FetchPriceUSD"
	pair := domain.NormalizeSymbol(symbol) + c.quoteAsset

	prices, err := c.spotClient.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != pair {
			continue
		}
		price, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			parseErr := fmt.Errorf("could not parse price '%s': %w", p.Price, err)
			return 0, c.handleError(ctx, parseErr, op)
		}
		if price <= 0 {
			return 0, fmt.Errorf("%s failed: %w: non-positive price for %s", op, ports.ErrPriceUnavailable, pair)
		}
		c.logger.Debug(ctx, "Binance price fetched", map[string]interface{}{"pair": pair, "price": price})
		return price, nil
	}
	return 0, fmt.Errorf("%s failed: %w: no ticker for %s", op, ports.ErrPriceUnavailable, pair)
}
