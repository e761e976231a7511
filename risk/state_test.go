package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrice(t *testing.T) {
	t.Parallel()

	p := Position{Symbol: "SPY", Quantity: 10, AvgPrice: 400}
	assert.Equal(t, 450.0, ResolvePrice(p, map[string]float64{"SPY": 450}))
	assert.Equal(t, 400.0, ResolvePrice(p, map[string]float64{"TLT": 90}))
	assert.Equal(t, 400.0, ResolvePrice(p, map[string]float64{"SPY": 0}))
}

func TestCalculateState(t *testing.T) {
	t.Parallel()

	positions := []Position{
		{Symbol: "SPY", Quantity: 40, AvgPrice: 400},
		{Symbol: "TLT", Quantity: 100, AvgPrice: 95},
	}
	latest := map[string]float64{"SPY": 500}

	st := CalculateState(positions, latest, EquitySnapshot{Equity: 10000, PeakEquity: 12000})

	assert.InDelta(t, 40*500+100*95, st.Exposure, 1e-9)
	assert.InDelta(t, 2.95, st.Leverage, 1e-12)
	assert.InDelta(t, 10000/29500.0, st.MarginRatio, 1e-12)
	assert.Equal(t, 12000.0, st.PeakEquity)
	assert.Equal(t, Holding{Symbol: "TLT", Quantity: 100, Price: 95, Value: 9500}, st.Holdings["TLT"])
	assert.Equal(t, []string{"SPY", "TLT"}, st.Symbols())
}

func TestCalculateStateGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		positions  []Position
		snap       EquitySnapshot
		leverage   float64
		margin     float64
		peakEquity float64
	}{
		{
			name:       "no_positions",
			snap:       EquitySnapshot{Equity: 5000, PeakEquity: 4000},
			leverage:   0,
			margin:     1,
			peakEquity: 5000,
		},
		{
			name:       "zero_equity",
			positions:  []Position{{Symbol: "SPY", Quantity: 1, AvgPrice: 100}},
			snap:       EquitySnapshot{},
			leverage:   0,
			margin:     0,
			peakEquity: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := CalculateState(tt.positions, nil, tt.snap)
			assert.Equal(t, tt.leverage, st.Leverage)
			assert.Equal(t, tt.margin, st.MarginRatio)
			assert.Equal(t, tt.peakEquity, st.PeakEquity)
		})
	}
}

func TestCalculateStateMergesDuplicateSymbols(t *testing.T) {
	t.Parallel()

	st := CalculateState([]Position{
		{Symbol: "GLD", Quantity: 5, AvgPrice: 180},
		{Symbol: "GLD", Quantity: 5, AvgPrice: 190},
	}, map[string]float64{"GLD": 200}, EquitySnapshot{Equity: 1000})

	assert.Equal(t, 10.0, st.Holdings["GLD"].Quantity)
	assert.InDelta(t, 2000, st.Exposure, 1e-9)
}
