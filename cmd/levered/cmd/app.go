package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rustyeddy/levered/metrics"
	"github.com/rustyeddy/levered/rebalance"
	"github.com/rustyeddy/levered/store"
)

// app holds the opened store and the collaborators built on it.
type app struct {
	db      *store.DB
	reg     *prometheus.Registry
	metrics *metrics.Registry
	prices  rebalance.PriceRepository
	cache   *store.CachedPrices
	redis   *redis.Client
}

func openApp() (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	db, err := store.Open(cfg.Store, m)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, reg: reg, metrics: m, prices: db}

	if cfg.Cache.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		a.cache = store.NewCachedPrices(db, a.redis, cfg.Cache.TTL, m)
		a.prices = a.cache
	}
	return a, nil
}

func (a *app) engine() *rebalance.Engine {
	return rebalance.NewEngine(a.db, a.prices, a.db, a.db, cfg.Fetch, a.metrics)
}

func (a *app) applier() *rebalance.Applier {
	return rebalance.NewApplier(a.db, a.db, a.metrics)
}

func (a *app) invalidate(ctx context.Context, symbols ...string) error {
	if a.cache == nil {
		return nil
	}
	if err := a.cache.Invalidate(ctx, symbols...); err != nil {
		return fmt.Errorf("invalidate price cache: %w", err)
	}
	return nil
}

func (a *app) Close() error {
	if a.redis != nil {
		a.redis.Close()
	}
	return a.db.Close()
}
