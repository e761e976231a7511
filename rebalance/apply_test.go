package rebalance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/levered/metrics"
)

func TestAcceptOverwritesPositions(t *testing.T) {
	t.Parallel()

	m := seeded()
	p, err := newTestEngine(m, nil).CalculateProposal(context.Background(), "main")
	require.NoError(t, err)

	a := NewApplier(m, m, nil)
	require.NoError(t, a.Accept(context.Background(), p))

	positions, version, err := m.Positions(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	bySym := map[string]float64{}
	for _, pos := range positions {
		bySym[pos.Symbol] = pos.Quantity
	}
	for _, pp := range p.Positions {
		assert.InDelta(t, pp.TargetQuantity, bySym[pp.Symbol], 1e-12)
	}
	require.Len(t, m.recorded, 1)
	assert.Equal(t, p.ID, m.recorded[0].ID)
}

func TestAcceptRejectsStaleProposal(t *testing.T) {
	t.Parallel()

	m := seeded()
	reg := metrics.New(nil)
	p, err := newTestEngine(m, nil).CalculateProposal(context.Background(), "main")
	require.NoError(t, err)

	a := NewApplier(m, nil, reg)
	require.NoError(t, a.Accept(context.Background(), p))

	err = a.Accept(context.Background(), p)
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AcceptsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.AcceptsTotal.WithLabelValues("conflict")))
}

func TestAcceptConcurrentOnlyOneWins(t *testing.T) {
	t.Parallel()

	m := seeded()
	p, err := newTestEngine(m, nil).CalculateProposal(context.Background(), "main")
	require.NoError(t, err)

	a := NewApplier(m, nil, nil)
	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = a.Accept(context.Background(), p)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrVersionConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	_, version, _ := m.Positions(context.Background(), "main")
	assert.Equal(t, int64(2), version)
}

func TestAcceptRequiresPortfolio(t *testing.T) {
	t.Parallel()

	a := NewApplier(newMemStore(), nil, nil)
	assert.Error(t, a.Accept(context.Background(), Proposal{}))
}

func TestUpdates(t *testing.T) {
	t.Parallel()

	p := Proposal{Positions: []ProposalPosition{
		{Symbol: "SPY", TargetQuantity: 18, Price: 100, TargetValue: 1800},
	}}
	assert.Equal(t, []PositionUpdate{{Symbol: "SPY", Quantity: 18, AvgPrice: 100, Exposure: 1800}}, Updates(p))
}
