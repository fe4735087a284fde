package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptoJournal/internal/domain"
	"cryptoJournal/internal/ledger"
	"cryptoJournal/internal/metrics"
	"cryptoJournal/internal/ports"
)

const (
	DefaultPriceTTL    = 60 * time.Second
	DefaultNegativeTTL = 5 * time.Minute
	DefaultFeedTimeout = 5 * time.Second

	priceKeyPrefix = "price:"
	missKeyPrefix  = "price-miss:"

	resolveConcurrency = 4
)

// Resolver turns a symbol into a current USD price. It tries, in order, the
// price cache, each live feed, the last stored snapshot and finally the
// caller's average entry price. It never fails.
type Resolver struct {
	feeds       []ports.PriceFeed
	cache       ports.Cache
	snapshots   ports.PriceSnapshotRepository
	priceTTL    time.Duration
	negativeTTL time.Duration
	feedTimeout time.Duration
	metrics     *metrics.Metrics
	logger      ports.Logger
	now         func() time.Time
}

var _ ports.PriceResolver = (*Resolver)(nil)

// Config wires the resolver's collaborators. Feeds are tried in slice order.
type Config struct {
	Feeds       []ports.PriceFeed
	Cache       ports.Cache
	Snapshots   ports.PriceSnapshotRepository // Optional
	PriceTTL    time.Duration
	NegativeTTL time.Duration
	FeedTimeout time.Duration
	Metrics     *metrics.Metrics // Optional
	Logger      ports.Logger
	Now         func() time.Time
}

type cachedPrice struct {
	PriceUSD float64            `json:"priceUsd"`
	Source   domain.PriceSource `json:"source"`
}

// NewResolver validates cfg and applies defaults.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for price resolver: %w", ports.ErrConfigurationError)
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required for price resolver: %w", ports.ErrConfigurationError)
	}
	r := &Resolver{
		feeds:       cfg.Feeds,
		cache:       cfg.Cache,
		snapshots:   cfg.Snapshots,
		priceTTL:    cfg.PriceTTL,
		negativeTTL: cfg.NegativeTTL,
		feedTimeout: cfg.FeedTimeout,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if r.priceTTL <= 0 {
		r.priceTTL = DefaultPriceTTL
	}
	if r.negativeTTL <= 0 {
		r.negativeTTL = DefaultNegativeTTL
	}
	if r.feedTimeout <= 0 {
		r.feedTimeout = DefaultFeedTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Resolve returns the best available quote for symbol.
func (r *Resolver) Resolve(ctx context.Context, symbol string, fallbackAvgEntry float64) domain.PriceQuote {
	sym := domain.NormalizeSymbol(symbol)
	quote := r.resolve(ctx, sym, fallbackAvgEntry)
	r.metrics.PriceResolved(string(quote.Source))
	return quote
}

func (r *Resolver) resolve(ctx context.Context, sym string, fallbackAvgEntry float64) domain.PriceQuote {
	fallback := domain.PriceQuote{
		PriceUSD:    ledger.ToFiniteOrZero(fallbackAvgEntry),
		Source:      domain.SourceAvgEntry,
		IsEstimated: true,
	}
	if sym == "" || sym == domain.CashSymbol {
		return fallback
	}

	if q, ok := r.cached(ctx, sym); ok {
		return q
	}

	if !r.recentlyMissed(ctx, sym) {
		if q, ok := r.fetchLive(ctx, sym); ok {
			return q
		}
		if err := r.cache.Set(ctx, missKeyPrefix+sym, []byte{1}, r.negativeTTL); err != nil {
			r.logger.Warn(ctx, "Failed to store negative price cache entry", map[string]interface{}{"symbol": sym, "error": err.Error()})
		}
	}

	if r.snapshots != nil {
		price, fetchedAt, err := r.snapshots.LatestPrice(ctx, sym)
		switch {
		case err == nil && ledger.IsPositiveFinite(price):
			r.logger.Debug(ctx, "Using stored price snapshot", map[string]interface{}{"symbol": sym, "fetchedAt": fetchedAt})
			return domain.PriceQuote{PriceUSD: price, Source: domain.SourceDBCache, IsEstimated: true}
		case err != nil && !errors.Is(err, ports.ErrNotFound):
			r.logger.Warn(ctx, "Price snapshot lookup failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
		}
	}

	return fallback
}

func (r *Resolver) cached(ctx context.Context, sym string) (domain.PriceQuote, bool) {
	entry, err := r.cache.Get(ctx, priceKeyPrefix+sym)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			r.logger.Warn(ctx, "Price cache read failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
		}
		return domain.PriceQuote{}, false
	}
	if !entry.Fresh(r.now(), r.priceTTL) {
		return domain.PriceQuote{}, false
	}
	var cp cachedPrice
	if err := json.Unmarshal(entry.Value, &cp); err != nil || !ledger.IsPositiveFinite(cp.PriceUSD) {
		return domain.PriceQuote{}, false
	}
	return domain.PriceQuote{PriceUSD: cp.PriceUSD, Source: cp.Source}, true
}

func (r *Resolver) recentlyMissed(ctx context.Context, sym string) bool {
	entry, err := r.cache.Get(ctx, missKeyPrefix+sym)
	if err != nil {
		return false
	}
	return entry.Fresh(r.now(), r.negativeTTL)
}

func (r *Resolver) fetchLive(ctx context.Context, sym string) (domain.PriceQuote, bool) {
	for _, feed := range r.feeds {
		feedCtx, cancel := context.WithTimeout(ctx, r.feedTimeout)
		start := time.Now()
		price, err := feed.FetchPriceUSD(feedCtx, sym)
		cancel()
		if err == nil && !ledger.IsPositiveFinite(price) {
			err = fmt.Errorf("feed %s returned %v: %w", feed.Name(), price, ports.ErrPriceUnavailable)
		}
		r.metrics.FeedFetched(string(feed.Name()), time.Since(start), err)
		if err != nil {
			r.logger.Debug(ctx, "Price feed miss", map[string]interface{}{"symbol": sym, "feed": feed.Name(), "error": err.Error()})
			if ctx.Err() != nil {
				return domain.PriceQuote{}, false
			}
			continue
		}

		r.remember(ctx, sym, price, feed.Name())
		return domain.PriceQuote{PriceUSD: price, Source: feed.Name()}, true
	}
	return domain.PriceQuote{}, false
}

func (r *Resolver) remember(ctx context.Context, sym string, price float64, source domain.PriceSource) {
	data, err := json.Marshal(cachedPrice{PriceUSD: price, Source: source})
	if err == nil {
		err = r.cache.Set(ctx, priceKeyPrefix+sym, data, r.priceTTL)
	}
	if err != nil {
		r.logger.Warn(ctx, "Price cache write failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
	}
	if r.snapshots != nil {
		if err := r.snapshots.SavePrice(ctx, sym, price, source, r.now()); err != nil {
			r.logger.Warn(ctx, "Price snapshot write failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
		}
	}
}

// ResolveAll resolves several symbols concurrently. fallbacks maps each
// symbol to its average entry price.
func (r *Resolver) ResolveAll(ctx context.Context, fallbacks map[string]float64) map[string]domain.PriceQuote {
	out := make(map[string]domain.PriceQuote, len(fallbacks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for sym, avg := range fallbacks {
		sym, avg := sym, avg
		g.Go(func() error {
			q := r.Resolve(gctx, sym, avg)
			mu.Lock()
			out[sym] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
