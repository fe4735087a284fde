package ports

import (
	"context"
	"time"

	"cryptoJournal/internal/domain"
)

// PriceFeed fetches a live USD price for a ticker.
type PriceFeed interface {
	// Name identifies the feed and doubles as the quote source.
	Name() domain.PriceSource
	// FetchPriceUSD returns ErrPriceUnavailable when the feed does not list the symbol.
	FetchPriceUSD(ctx context.Context, symbol string) (float64, error)
}

// PriceResolver resolves a current price and never fails: it falls back to
// the supplied average entry price.
type PriceResolver interface {
	Resolve(ctx context.Context, symbol string, fallbackAvgEntry float64) domain.PriceQuote
}

// CacheEntry is a cached value and the moment it was stored.
type CacheEntry struct {
	Value    []byte
	StoredAt time.Time
}

// Age returns how old the entry is at now.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Fresh reports whether the entry is younger than maxAge.
func (e CacheEntry) Fresh(now time.Time, maxAge time.Duration) bool {
	return e.Age(now) < maxAge
}

// Cache is a small key/value store with per-entry expiry.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) (CacheEntry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
