package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/metrics"
	"github.com/rustyeddy/levered/optimize"
	"github.com/rustyeddy/levered/pkg/id"
	"github.com/rustyeddy/levered/risk"
)

// ConfigurationProvider loads a portfolio's rebalance configuration.
type ConfigurationProvider interface {
	PortfolioConfig(ctx context.Context, portfolioID string) (config.Portfolio, error)
}

// PriceRepository serves daily closes.
type PriceRepository interface {
	// LatestPrice reports false when no close is known for symbol.
	LatestPrice(ctx context.Context, symbol string) (float64, bool, error)
	// PriceHistory returns up to limit of the most recent closes, oldest first.
	PriceHistory(ctx context.Context, symbol string, limit int) ([]float64, error)
}

// PositionRepository reads and overwrites a portfolio's positions. Every
// successful ApplyPositions increments the positions version.
type PositionRepository interface {
	Positions(ctx context.Context, portfolioID string) ([]risk.Position, int64, error)
	// ApplyPositions writes all updates atomically, or returns
	// ErrVersionConflict without writing when the stored version is not
	// baseVersion.
	ApplyPositions(ctx context.Context, portfolioID string, baseVersion int64, updates []PositionUpdate) error
}

// MetricsHistoryProvider serves stored equity snapshots, newest first.
type MetricsHistoryProvider interface {
	RecentEquity(ctx context.Context, portfolioID string, n int) ([]risk.EquitySnapshot, error)
}

// Engine gathers proposal inputs from its collaborators and assembles
// proposals.
type Engine struct {
	configs   ConfigurationProvider
	prices    PriceRepository
	positions PositionRepository
	history   MetricsHistoryProvider

	optimizer *optimize.Optimizer
	fetch     config.FetchConfig
	limiter   *rate.Limiter
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewEngine returns an Engine. m may be nil.
func NewEngine(configs ConfigurationProvider, prices PriceRepository, positions PositionRepository, history MetricsHistoryProvider, fetch config.FetchConfig, m *metrics.Registry) *Engine {
	if fetch.Concurrency < 1 {
		fetch.Concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if fetch.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(fetch.RatePerSec), fetch.Concurrency)
	}
	return &Engine{
		configs:   configs,
		prices:    prices,
		positions: positions,
		history:   history,
		optimizer: optimize.New(),
		fetch:     fetch,
		limiter:   limiter,
		metrics:   m,
		now:       time.Now,
	}
}

// CalculateProposal computes a fresh proposal for portfolioID from the
// persisted positions, prices, configuration and equity history. It returns
// ErrNotFound when the portfolio has no equity snapshot.
func (e *Engine) CalculateProposal(ctx context.Context, portfolioID string) (Proposal, error) {
	start := e.now()

	cfg, err := e.configs.PortfolioConfig(ctx, portfolioID)
	if err != nil {
		return Proposal{}, fmt.Errorf("load config %s: %w", portfolioID, err)
	}
	positions, version, err := e.positions.Positions(ctx, portfolioID)
	if err != nil {
		return Proposal{}, fmt.Errorf("load positions %s: %w", portfolioID, err)
	}
	history, err := e.history.RecentEquity(ctx, portfolioID, cfg.Deploy.VolatilityLookbackDays+1)
	if err != nil {
		return Proposal{}, fmt.Errorf("load equity %s: %w", portfolioID, err)
	}
	if len(history) == 0 {
		return Proposal{}, fmt.Errorf("equity snapshot for %s: %w", portfolioID, ErrNotFound)
	}

	latest, closes, err := e.loadPrices(ctx, symbolsOf(cfg, positions))
	if err != nil {
		return Proposal{}, err
	}

	now := e.now()
	p, res, optErr := assemble(Inputs{
		ID:           id.New(now),
		PortfolioID:  portfolioID,
		CreatedAt:    now.UTC(),
		Version:      version,
		Config:       cfg,
		Positions:    positions,
		LatestPrices: latest,
		Closes:       closes,
		Snapshot:     history[0],
		History:      history,
		Optimizer:    e.optimizer,
	})

	switch {
	case optErr == nil:
		e.metrics.ObserveOptimizer(portfolioID, res.Iterations, res.Sharpe)
		log.Debug().Str("portfolio", portfolioID).Int("iterations", res.Iterations).
			Bool("converged", res.Converged).Float64("sharpe", res.Sharpe).Msg("optimized weights")
	case errors.Is(optErr, optimize.ErrInsufficientData):
		log.Info().Str("portfolio", portfolioID).Msg("insufficient history, using configured weights")
	}

	e.metrics.ObserveProposal(portfolioID, p.DynamicWeightsComputed, e.now().Sub(start), p.State.Leverage, p.Signals.DeployFraction)
	log.Info().Str("portfolio", portfolioID).Str("proposal", p.ID).
		Float64("leverage", p.State.Leverage).Float64("target_exposure", p.TargetExposure).
		Str("branch", string(p.ExposureBranch)).Float64("deploy_fraction", p.Signals.DeployFraction).
		Int("positions", len(p.Positions)).Msg("proposal computed")
	return p, nil
}

// loadPrices fetches latest prices and close histories for syms concurrently.
func (e *Engine) loadPrices(ctx context.Context, syms []string) (map[string]float64, map[string][]float64, error) {
	type fetched struct {
		latest float64
		known  bool
		closes []float64
	}
	out := make([]fetched, len(syms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fetch.Concurrency)
	for i, sym := range syms {
		i, sym := i, sym
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}
			px, ok, err := e.prices.LatestPrice(gctx, sym)
			if err != nil {
				return fmt.Errorf("latest price %s: %w", sym, err)
			}
			closes, err := e.prices.PriceHistory(gctx, sym, e.fetch.HistoryLimit)
			if err != nil {
				return fmt.Errorf("price history %s: %w", sym, err)
			}
			out[i] = fetched{latest: px, known: ok, closes: closes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	latest := make(map[string]float64, len(syms))
	closes := make(map[string][]float64, len(syms))
	for i, sym := range syms {
		if out[i].known {
			latest[sym] = out[i].latest
		}
		if len(out[i].closes) > 0 {
			closes[sym] = out[i].closes
		}
	}
	return latest, closes, nil
}

// symbolsOf returns the sorted union of configured and held symbols.
func symbolsOf(cfg config.Portfolio, positions []risk.Position) []string {
	seen := make(map[string]struct{}, len(cfg.TargetWeights)+len(positions))
	for sym := range cfg.TargetWeights {
		seen[sym] = struct{}{}
	}
	for _, p := range positions {
		seen[p.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
