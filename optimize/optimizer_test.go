package optimize

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/rustyeddy/levered/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pricesFrom compounds daily log returns into a close series starting at 100.
func pricesFrom(rets []float64) []float64 {
	out := make([]float64, len(rets)+1)
	out[0] = 100
	for i, r := range rets {
		out[i+1] = out[i] * math.Exp(r)
	}
	return out
}

func series(n int, f func(i int) float64) []float64 {
	rets := make([]float64, n)
	for i := range rets {
		rets[i] = f(i)
	}
	return pricesFrom(rets)
}

func portfolio(lo, hi float64, symbols ...string) config.Portfolio {
	p := config.DefaultPortfolio()
	p.Weights = config.WeightBounds{Min: lo, Max: hi}
	p.Leverage = config.LeverageBounds{Min: 2, Target: 2.5, Max: 3}
	p.Optimizer = config.OptimizerParams{MeanReturnShrinkage: 0.6, RiskFreeRate: 0.02}
	p.TargetWeights = map[string]float64{}
	for _, s := range symbols {
		p.TargetWeights[s] = 1 / float64(len(symbols))
	}
	return p
}

func sumOf(w map[string]float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func TestOptimizeDominantAssetTakesMaxWeight(t *testing.T) {
	t.Parallel()

	closes := map[string][]float64{
		"A": series(60, func(i int) float64 { return 0.002 + 0.001*math.Sin(0.9*float64(i)) }),
		"B": series(60, func(i int) float64 { return 0.0002 + 0.015*math.Sin(1.7*float64(i)+0.5) }),
		"C": series(60, func(i int) float64 { return 0.0001 + 0.015*math.Cos(2.3*float64(i)+0.2) }),
	}
	p := portfolio(0.05, 0.4, "A", "B", "C")

	res, err := New().Optimize(closes, p)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, res.Symbols)
	assert.Equal(t, 60, res.Observations)
	assert.False(t, res.FellBack)
	assert.InDelta(t, 0.4, res.Weights["A"], 0.015)
	assert.LessOrEqual(t, res.Weights["A"], 0.4+1e-3)
	assert.Greater(t, res.Weights["A"], res.Weights["B"])
	assert.Greater(t, res.Weights["A"], res.Weights["C"])
	assert.InDelta(t, 1, sumOf(res.Weights), 1e-3)
	assert.Greater(t, res.Sharpe, 0.0)
}

func TestOptimizeSymmetricAssets(t *testing.T) {
	t.Parallel()

	s := series(40, func(i int) float64 { return 0.0005 + 0.01*math.Sin(1.3*float64(i)) })
	closes := map[string][]float64{
		"X": s,
		"Y": append([]float64(nil), s...),
	}
	p := portfolio(0, 1, "X", "Y")

	res, err := New().Optimize(closes, p)
	require.NoError(t, err)
	assert.InDelta(t, res.Weights["X"], res.Weights["Y"], 1e-2)
}

func TestOptimizeWeightValidity(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	bounds := []config.WeightBounds{
		{Min: 0, Max: 1},
		{Min: 0.05, Max: 0.4},
		{Min: 0.1, Max: 0.5},
		{Min: 0.2, Max: 0.3},
	}

	for trial := 0; trial < 8; trial++ {
		syms := []string{"A", "B", "C", "D"}
		closes := map[string][]float64{}
		for _, s := range syms {
			drift := rng.Float64()*0.002 - 0.0005
			vol := 0.005 + rng.Float64()*0.02
			closes[s] = series(30+rng.Intn(40), func(int) float64 { return drift + vol*rng.NormFloat64() })
		}

		for _, b := range bounds {
			p := portfolio(b.Min, b.Max, syms...)
			res, err := New().Optimize(closes, p)
			require.NoError(t, err)

			assert.InDelta(t, 1, sumOf(res.Weights), 1e-3)
			for sym, w := range res.Weights {
				assert.GreaterOrEqual(t, w, b.Min-1e-3, "trial %d %s", trial, sym)
				assert.LessOrEqual(t, w, b.Max+1e-3, "trial %d %s", trial, sym)
				assert.False(t, math.IsNaN(w))
			}
		}
	}
}

func TestOptimizeAlignsToShortestSeries(t *testing.T) {
	t.Parallel()

	closes := map[string][]float64{
		"A": series(80, func(i int) float64 { return 0.001 * math.Sin(float64(i)) }),
		"B": series(25, func(i int) float64 { return 0.002 * math.Cos(float64(i)) }),
	}
	res, err := New().Optimize(closes, portfolio(0, 1, "A", "B"))
	require.NoError(t, err)
	assert.Equal(t, 25, res.Observations)
}

func TestOptimizeInsufficientData(t *testing.T) {
	t.Parallel()

	long := series(30, func(i int) float64 { return 0.001 })
	short := series(19, func(i int) float64 { return 0.001 })

	tests := []struct {
		name   string
		closes map[string][]float64
	}{
		{"no_assets", map[string][]float64{}},
		{"one_long_asset", map[string][]float64{"A": long, "B": short}},
		{"nineteen_returns", map[string][]float64{"A": short, "B": short}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New().Optimize(tt.closes, portfolio(0, 1, "A", "B"))
			assert.True(t, errors.Is(err, ErrInsufficientData))
		})
	}
}

func TestOptimizeZeroWeightForUnoptimizedTargets(t *testing.T) {
	t.Parallel()

	closes := map[string][]float64{
		"A": series(40, func(i int) float64 { return 0.001 + 0.01*math.Sin(float64(i)) }),
		"B": series(40, func(i int) float64 { return 0.0005 + 0.01*math.Cos(float64(i)) }),
		"C": series(5, func(i int) float64 { return 0.01 }),
	}
	res, err := New().Optimize(closes, portfolio(0, 1, "A", "B", "C", "D"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, res.Symbols)
	require.Contains(t, res.Weights, "C")
	require.Contains(t, res.Weights, "D")
	assert.Equal(t, 0.0, res.Weights["C"])
	assert.Equal(t, 0.0, res.Weights["D"])
	assert.InDelta(t, 1, res.Weights["A"]+res.Weights["B"], 1e-9)
}

func TestOptimizeDeterministic(t *testing.T) {
	t.Parallel()

	closes := map[string][]float64{
		"A": series(50, func(i int) float64 { return 0.001 + 0.01*math.Sin(0.7*float64(i)) }),
		"B": series(50, func(i int) float64 { return 0.0008 + 0.012*math.Cos(1.1*float64(i)) }),
		"C": series(50, func(i int) float64 { return 0.0004 + 0.008*math.Sin(2.1*float64(i)+1) }),
	}
	p := portfolio(0.05, 0.6, "A", "B", "C")

	first, err := New().Optimize(closes, p)
	require.NoError(t, err)
	second, err := New().Optimize(closes, p)
	require.NoError(t, err)

	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestOptimizeInfeasibleBoundsFallsBack(t *testing.T) {
	t.Parallel()

	// Two assets capped at 0.3 can never reach a sum of 1.
	closes := map[string][]float64{
		"A": series(30, func(i int) float64 { return 0.001 + 0.01*math.Sin(float64(i)) }),
		"B": series(30, func(i int) float64 { return 0.001 + 0.01*math.Cos(float64(i)) }),
	}
	res, err := New().Optimize(closes, portfolio(0, 0.3, "A", "B"))
	require.NoError(t, err)

	assert.True(t, res.FellBack)
	assert.InDelta(t, 0.5, res.Weights["A"], 1e-9)
	assert.InDelta(t, 0.5, res.Weights["B"], 1e-9)
}

func TestObjectiveRejectsOutOfBounds(t *testing.T) {
	t.Parallel()

	obj := objective{
		means:    []float64{0.001, 0.001},
		cov:      [][]float64{{1e-4, 0}, {0, 1e-4}},
		lo:       0.1,
		hi:       0.6,
		leverage: 2,
	}
	assert.True(t, math.IsInf(obj.value([]float64{0.9, 0.1}), 1))
	assert.True(t, math.IsInf(obj.value([]float64{0, 0}), 1))
	assert.False(t, math.IsInf(obj.value([]float64{0.5, 0.5}), 1))

	zeroVol := objective{means: []float64{0.001}, cov: [][]float64{{0}}, lo: 0, hi: 1, leverage: 2}
	assert.Equal(t, 0.0, zeroVol.sharpe([]float64{1}))
}
