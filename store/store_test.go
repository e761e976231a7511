package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/market"
	"github.com/rustyeddy/levered/rebalance"
	"github.com/rustyeddy/levered/risk"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	cfg := config.Default().Store
	cfg.DSN = filepath.Join(t.TempDir(), "levered.sqlite")
	cfg.Retry.Attempts = 1

	s, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func withPortfolio(t *testing.T) (*DB, config.Portfolio) {
	t.Helper()
	s := openTest(t)
	p := config.DefaultPortfolio()
	require.NoError(t, s.SavePortfolio(context.Background(), p))
	return s, p
}

func day(s string) time.Time {
	d, err := market.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPortfolioRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, want := withPortfolio(t)

	got, err := s.PortfolioConfig(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.Name = "renamed"
	require.NoError(t, s.SavePortfolio(ctx, want))
	got, err = s.PortfolioConfig(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	ids, err := s.PortfolioIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, ids)
}

func TestPortfolioErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTest(t)

	_, err := s.PortfolioConfig(ctx, "missing")
	assert.True(t, errors.Is(err, rebalance.ErrNotFound))

	bad := config.DefaultPortfolio()
	bad.Leverage.Min = 5
	var verr *config.ValidationError
	assert.True(t, errors.As(s.SavePortfolio(ctx, bad), &verr))
}

func TestPositionsVersioning(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, p := withPortfolio(t)

	positions, version, err := s.Positions(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int64(0), version)

	require.NoError(t, s.SetPositions(ctx, p.ID, []risk.Position{
		{Symbol: "TLT", Quantity: 50, AvgPrice: 95},
		{Symbol: "SPY", Quantity: 30, AvgPrice: 450},
	}))
	positions, version, err = s.Positions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.Len(t, positions, 2)
	assert.Equal(t, "SPY", positions[0].Symbol)

	require.NoError(t, s.ApplyPositions(ctx, p.ID, 1, []rebalance.PositionUpdate{
		{Symbol: "SPY", Quantity: 36, AvgPrice: 500, Exposure: 18000},
		{Symbol: "GLD", Quantity: 30, AvgPrice: 200, Exposure: 6000},
	}))
	positions, version, err = s.Positions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, []risk.Position{
		{Symbol: "GLD", Quantity: 30, AvgPrice: 200},
		{Symbol: "SPY", Quantity: 36, AvgPrice: 500},
		{Symbol: "TLT", Quantity: 50, AvgPrice: 95},
	}, positions)

	err = s.ApplyPositions(ctx, p.ID, 1, []rebalance.PositionUpdate{{Symbol: "SPY", Quantity: 1, AvgPrice: 1}})
	assert.True(t, errors.Is(err, rebalance.ErrVersionConflict))
	positions, version, err = s.Positions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, 36.0, positions[1].Quantity)
}

func TestPositionsUnknownPortfolio(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTest(t)

	_, _, err := s.Positions(ctx, "missing")
	assert.True(t, errors.Is(err, rebalance.ErrNotFound))
	err = s.ApplyPositions(ctx, "missing", 0, nil)
	assert.True(t, errors.Is(err, rebalance.ErrNotFound))
}

func TestPrices(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTest(t)

	n, err := s.UpsertCloses(ctx, []market.Close{
		{Symbol: "SPY", Day: day("2026-09-02"), Price: 101},
		{Symbol: "SPY", Day: day("2026-09-01"), Price: 100},
		{Symbol: "SPY", Day: day("2026-09-03"), Price: 102},
		{Symbol: "TLT", Day: day("2026-09-01"), Price: 90},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = s.UpsertCloses(ctx, []market.Close{{Symbol: "SPY", Day: day("2026-09-03"), Price: 103}})
	require.NoError(t, err)

	px, ok, err := s.LatestPrice(ctx, "SPY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 103.0, px)

	_, ok, err = s.LatestPrice(ctx, "QQQ")
	require.NoError(t, err)
	assert.False(t, ok)

	hist, err := s.PriceHistory(ctx, "SPY", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 103}, hist)

	hist, err = s.PriceHistory(ctx, "SPY", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 103}, hist)

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "TLT"}, syms)
}

func TestEquityPeakTracking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, p := withPortfolio(t)
	base := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)

	for i, eq := range []float64{10000, 11000, 9000} {
		_, err := s.RecordEquity(ctx, p.ID, risk.EquitySnapshot{Time: base.AddDate(0, 0, i), Equity: eq})
		require.NoError(t, err)
	}

	hist, err := s.RecentEquity(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 9000.0, hist[0].Equity)
	assert.Equal(t, 11000.0, hist[0].PeakEquity)
	assert.True(t, base.AddDate(0, 0, 2).Equal(hist[0].Time))
	assert.Equal(t, 11000.0, hist[1].Equity)

	_, err = s.RecordEquity(ctx, "missing", risk.EquitySnapshot{Equity: 1})
	assert.True(t, errors.Is(err, rebalance.ErrNotFound))
}

func TestContribute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, p := withPortfolio(t)
	base := time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC)

	_, err := s.RecordEquity(ctx, p.ID, risk.EquitySnapshot{Time: base, Equity: 10000, PeakEquity: 12000})
	require.NoError(t, err)

	snap, err := s.Contribute(ctx, Contribution{
		PortfolioID: p.ID,
		Time:        base.Add(time.Hour),
		Amount:      decimal.RequireFromString("2500.10"),
		Note:        "monthly",
	})
	require.NoError(t, err)
	assert.InDelta(t, 12500.10, snap.Equity, 1e-9)
	assert.InDelta(t, 12500.10, snap.PeakEquity, 1e-9)

	_, err = s.Contribute(ctx, Contribution{PortfolioID: p.ID, Time: base.Add(2 * time.Hour), Amount: decimal.RequireFromString("0.2")})
	require.NoError(t, err)

	cs, err := s.Contributions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "monthly", cs[0].Note)
	assert.NotEmpty(t, cs[0].ID)
	assert.True(t, TotalContributed(cs).Equal(decimal.RequireFromString("2500.30")))

	latest, err := s.RecentEquity(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 12500.30, latest[0].Equity, 1e-9)
}

func TestContributeValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, p := withPortfolio(t)

	_, err := s.Contribute(ctx, Contribution{PortfolioID: p.ID, Amount: decimal.Zero})
	var verr *config.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = s.Contribute(ctx, Contribution{PortfolioID: "missing", Amount: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, rebalance.ErrNotFound))
}

func TestContributeWithoutSnapshotStartsFromZero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, p := withPortfolio(t)

	snap, err := s.Contribute(ctx, Contribution{PortfolioID: p.ID, Amount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.Equal(t, 5000.0, snap.Equity)
	assert.Equal(t, 5000.0, snap.PeakEquity)
}

func TestProposalAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, p := withPortfolio(t)

	prop := rebalance.Proposal{
		ID:          "01JTESTPROPOSAL00000000000",
		PortfolioID: p.ID,
		CreatedAt:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		BaseVersion: 3,
		WeightsUsed: map[string]float64{"SPY": 1},
		Positions:   []rebalance.ProposalPosition{{Symbol: "SPY", TargetQuantity: 2, Action: rebalance.ActionBuy}},
	}
	require.NoError(t, s.RecordProposal(ctx, prop))

	got, err := s.AcceptedProposal(ctx, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, prop.Positions, got.Positions)
	assert.Equal(t, prop.WeightsUsed, got.WeightsUsed)
	assert.Equal(t, int64(3), got.BaseVersion)

	ids, err := s.AcceptedProposalIDs(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{prop.ID}, ids)

	_, err = s.AcceptedProposal(ctx, "nope")
	assert.True(t, errors.Is(err, rebalance.ErrNotFound))
}
