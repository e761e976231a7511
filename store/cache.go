package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/levered/metrics"
	"github.com/rustyeddy/levered/rebalance"
)

const cachePrefix = "levered:closes:"

type cachedHistory struct {
	Limit  int       `json:"limit"`
	Closes []float64 `json:"closes"`
}

// CachedPrices serves price histories from Redis in front of another
// PriceRepository. Redis failures fall through to the wrapped repository.
type CachedPrices struct {
	next    rebalance.PriceRepository
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewCachedPrices wraps next. m may be nil.
func NewCachedPrices(next rebalance.PriceRepository, client *redis.Client, ttl time.Duration, m *metrics.Registry) *CachedPrices {
	return &CachedPrices{next: next, client: client, ttl: ttl, metrics: m}
}

// LatestPrice is not cached.
func (c *CachedPrices) LatestPrice(ctx context.Context, symbol string) (float64, bool, error) {
	return c.next.LatestPrice(ctx, symbol)
}

// PriceHistory returns a cached history when one was stored for at least
// limit closes.
func (c *CachedPrices) PriceHistory(ctx context.Context, symbol string, limit int) ([]float64, error) {
	key := cachePrefix + symbol

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.metrics.ObserveCache("miss")
	case err != nil:
		c.metrics.ObserveCache("error")
		log.Warn().Err(err).Str("symbol", symbol).Msg("price cache read failed")
	default:
		var h cachedHistory
		if err := json.Unmarshal(data, &h); err == nil && h.Limit >= limit {
			c.metrics.ObserveCache("hit")
			return tail(h.Closes, limit), nil
		}
		c.metrics.ObserveCache("miss")
	}

	closes, err := c.next.PriceHistory(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	data, err = json.Marshal(cachedHistory{Limit: limit, Closes: closes})
	if err != nil {
		return closes, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("price cache write failed")
	}
	return closes, nil
}

// Invalidate drops the cached histories of symbols.
func (c *CachedPrices) Invalidate(ctx context.Context, symbols ...string) error {
	if len(symbols) == 0 {
		return nil
	}
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = cachePrefix + s
	}
	return c.client.Del(ctx, keys...).Err()
}

func tail(xs []float64, n int) []float64 {
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}
