package rebalance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/risk"
)

// memStore is an in-memory implementation of every collaborator interface.
type memStore struct {
	mu        sync.Mutex
	configs   map[string]config.Portfolio
	positions map[string][]risk.Position
	versions  map[string]int64
	latest    map[string]float64
	closes    map[string][]float64
	equity    map[string][]risk.EquitySnapshot // newest first
	recorded  []Proposal
	priceErr  error
}

func newMemStore() *memStore {
	return &memStore{
		configs:   map[string]config.Portfolio{},
		positions: map[string][]risk.Position{},
		versions:  map[string]int64{},
		latest:    map[string]float64{},
		closes:    map[string][]float64{},
		equity:    map[string][]risk.EquitySnapshot{},
	}
}

func (m *memStore) PortfolioConfig(_ context.Context, id string) (config.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok {
		return config.Portfolio{}, fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	return cfg, nil
}

func (m *memStore) LatestPrice(_ context.Context, sym string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priceErr != nil {
		return 0, false, m.priceErr
	}
	px, ok := m.latest[sym]
	return px, ok, nil
}

func (m *memStore) PriceHistory(_ context.Context, sym string, limit int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.closes[sym]
	if len(c) > limit {
		c = c[len(c)-limit:]
	}
	return append([]float64(nil), c...), nil
}

func (m *memStore) Positions(_ context.Context, id string) ([]risk.Position, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]risk.Position(nil), m.positions[id]...), m.versions[id], nil
}

func (m *memStore) ApplyPositions(_ context.Context, id string, base int64, updates []PositionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[id] != base {
		return ErrVersionConflict
	}
	for _, u := range updates {
		found := false
		for i, p := range m.positions[id] {
			if p.Symbol == u.Symbol {
				m.positions[id][i] = risk.Position{Symbol: u.Symbol, Quantity: u.Quantity, AvgPrice: u.AvgPrice}
				found = true
			}
		}
		if !found {
			m.positions[id] = append(m.positions[id], risk.Position{Symbol: u.Symbol, Quantity: u.Quantity, AvgPrice: u.AvgPrice})
		}
	}
	m.versions[id]++
	return nil
}

func (m *memStore) RecentEquity(_ context.Context, id string, n int) ([]risk.EquitySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.equity[id]
	if len(h) > n {
		h = h[:n]
	}
	return append([]risk.EquitySnapshot(nil), h...), nil
}

func (m *memStore) RecordProposal(_ context.Context, p Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, p)
	return nil
}

// closeSeries compounds daily log returns r(i) into n+1 closes from 100.
func closeSeries(n int, r func(i int) float64) []float64 {
	out := make([]float64, n+1)
	out[0] = 100
	for i := 0; i < n; i++ {
		out[i+1] = out[i] * math.Exp(r(i))
	}
	return out
}

// seeded returns a store holding the default portfolio with 60 days of
// history for each asset, positions worth 25000 and equity 10000.
func seeded() *memStore {
	m := newMemStore()
	cfg := config.DefaultPortfolio()
	m.configs[cfg.ID] = cfg

	m.closes["SPY"] = closeSeries(60, func(i int) float64 { return 0.0008 + 0.01*math.Sin(0.9*float64(i)) })
	m.closes["TLT"] = closeSeries(60, func(i int) float64 { return 0.0003 + 0.008*math.Cos(1.7*float64(i)+0.5) })
	m.closes["GLD"] = closeSeries(60, func(i int) float64 { return 0.0004 + 0.009*math.Sin(2.3*float64(i)+0.2) })
	m.latest["SPY"] = 500
	m.latest["TLT"] = 100
	m.latest["GLD"] = 200

	m.positions[cfg.ID] = []risk.Position{
		{Symbol: "SPY", Quantity: 30, AvgPrice: 450},
		{Symbol: "TLT", Quantity: 50, AvgPrice: 95},
		{Symbol: "GLD", Quantity: 25, AvgPrice: 180},
	}
	m.versions[cfg.ID] = 1

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		eq := 10000 * (1 + 0.002*math.Sin(float64(i)))
		m.equity[cfg.ID] = append([]risk.EquitySnapshot{{
			Time:       base.AddDate(0, 0, i),
			Equity:     eq,
			PeakEquity: 10100,
		}}, m.equity[cfg.ID]...)
	}
	m.equity[cfg.ID][0].Equity = 10000
	return m
}
