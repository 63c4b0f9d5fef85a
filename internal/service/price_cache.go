package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
)

// PriceCache stores recent quotes
type PriceCache interface {
	Get(ctx context.Context, pair string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, pair string, price decimal.Decimal, ttl time.Duration) error
}

// RedisPriceCache keeps quotes under price:<pair> keys
type RedisPriceCache struct {
	client *redis.Client
}

// NewRedisPriceCache creates a Redis-backed cache
func NewRedisPriceCache(client *redis.Client) *RedisPriceCache {
	return &RedisPriceCache{client: client}
}

func priceKey(pair string) string {
	return "price:" + NormalizePair(pair)
}

// Get returns the cached quote, if any
func (c *RedisPriceCache) Get(ctx context.Context, pair string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, priceKey(pair)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to read cached price: %w", err)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached price %q: %w", val, err)
	}
	return price, true, nil
}

// Set stores a quote for ttl
func (c *RedisPriceCache) Set(ctx context.Context, pair string, price decimal.Decimal, ttl time.Duration) error {
	if err := c.client.Set(ctx, priceKey(pair), price.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache price: %w", err)
	}
	return nil
}

// MemoryPriceCache is the in-process cache used when Redis is not configured
type MemoryPriceCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPrice
	now     func() time.Time
}

type cachedPrice struct {
	price     decimal.Decimal
	expiresAt time.Time
}

// NewMemoryPriceCache creates an empty in-process cache
func NewMemoryPriceCache() *MemoryPriceCache {
	return &MemoryPriceCache{entries: make(map[string]cachedPrice), now: time.Now}
}

// Get returns the cached quote while it has not expired
func (c *MemoryPriceCache) Get(_ context.Context, pair string) (decimal.Decimal, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[NormalizePair(pair)]
	if !ok || !c.now().Before(e.expiresAt) {
		return decimal.Zero, false, nil
	}
	return e.price, true, nil
}

// Set stores a quote for ttl
func (c *MemoryPriceCache) Set(_ context.Context, pair string, price decimal.Decimal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[NormalizePair(pair)] = cachedPrice{price: price, expiresAt: c.now().Add(ttl)}
	return nil
}

// CachedOracle serves quotes from a cache and refreshes them from upstream.
// Cache failures are logged and bypassed.
type CachedOracle struct {
	upstream domain.PriceOracle
	cache    PriceCache
	ttl      time.Duration
	log      *zap.Logger
}

// NewCachedOracle wraps upstream with cache
func NewCachedOracle(upstream domain.PriceOracle, cache PriceCache, ttl time.Duration, log *zap.Logger) *CachedOracle {
	return &CachedOracle{upstream: upstream, cache: cache, ttl: ttl, log: log.Named("price_cache")}
}

// GetPrice returns a cached quote or fetches a fresh one
func (o *CachedOracle) GetPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if o.ttl > 0 {
		price, ok, err := o.cache.Get(ctx, pair)
		if err != nil {
			o.log.Warn("Price cache read failed", zap.String("pair", pair), zap.Error(err))
		} else if ok {
			return price, nil
		}
	}

	price, err := o.upstream.GetPrice(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	if o.ttl > 0 {
		if err := o.cache.Set(ctx, pair, price, o.ttl); err != nil {
			o.log.Warn("Price cache write failed", zap.String("pair", pair), zap.Error(err))
		}
	}
	return price, nil
}

// Quotes returns prices for pairs, skipping pairs whose lookup failed
func Quotes(ctx context.Context, oracle domain.PriceOracle, pairs []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(pairs))
	for _, pair := range pairs {
		if price, err := oracle.GetPrice(ctx, pair); err == nil {
			out[NormalizePair(pair)] = price
		}
	}
	return out
}
