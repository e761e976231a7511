// Package optimize computes Sharpe-ratio maximizing portfolio weights under
// per-asset box constraints with a derivative-free simplex search.
package optimize

import (
	"errors"
	"math"
	"sort"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/market"
	"github.com/rustyeddy/levered/risk"
)

// ErrInsufficientData means fewer than two assets had enough history. Callers
// fall back to the configured static weights.
var ErrInsufficientData = errors.New("insufficient price history for optimization")

// perturbation is added to one coordinate of the equal-weight start for each
// extra simplex vertex.
const perturbation = 0.05

// Result is the outcome of one optimization.
type Result struct {
	// Weights covers every configured target symbol; symbols left out of
	// the optimization carry weight 0.
	Weights map[string]float64
	// Symbols are the assets that took part, sorted.
	Symbols []string
	// Observations is the aligned return count per asset.
	Observations int
	Sharpe       float64
	Iterations   int
	Converged    bool
	// FellBack is set when the search produced no finite optimum and equal
	// weights were used instead.
	FellBack bool
}

// Optimizer maximizes the leveraged Sharpe ratio of a portfolio.
type Optimizer struct {
	MinHistory int
	Options    Options
}

// New returns an Optimizer with the default history requirement and search
// options.
func New() *Optimizer {
	return &Optimizer{
		MinHistory: config.MinHistory,
		Options:    DefaultOptions(),
	}
}

// Optimize computes weights from chronological close prices per symbol. It
// returns ErrInsufficientData when fewer than two symbols have MinHistory
// returns. The result is deterministic for identical inputs.
func (o *Optimizer) Optimize(closes map[string][]float64, p config.Portfolio) (Result, error) {
	syms, returns := o.qualify(closes)
	if len(syms) < 2 {
		return Result{}, ErrInsufficientData
	}

	m := len(returns[0])
	for _, r := range returns[1:] {
		if len(r) < m {
			m = len(r)
		}
	}
	for i, r := range returns {
		returns[i] = r[len(r)-m:]
	}

	obj := newObjective(returns, p)
	n := len(syms)

	x0 := equalWeights(n)
	simplex := [][]float64{x0}
	for i := 0; i < n; i++ {
		v := append([]float64(nil), x0...)
		v[i] = math.Min(v[i]+perturbation, p.Weights.Max)
		normalize(v)
		simplex = append(simplex, v)
	}

	sr := Minimize(obj.value, simplex, o.Options)

	res := Result{
		Symbols:      syms,
		Observations: m,
		Iterations:   sr.Iterations,
		Converged:    sr.Converged,
	}

	w := append([]float64(nil), sr.X...)
	if math.IsInf(sr.Value, 0) || math.IsNaN(sr.Value) || !normalize(w) {
		w = equalWeights(n)
		res.FellBack = true
	}
	clampToBounds(w, p.Weights.Min, p.Weights.Max)

	res.Sharpe = obj.sharpe(w)
	res.Weights = make(map[string]float64, len(p.TargetWeights)+n)
	for sym := range p.TargetWeights {
		res.Weights[sym] = 0
	}
	for i, sym := range syms {
		res.Weights[sym] = w[i]
	}
	return res, nil
}

// qualify returns the sorted symbols with at least MinHistory log returns and
// their return series.
func (o *Optimizer) qualify(closes map[string][]float64) ([]string, [][]float64) {
	all := make([]string, 0, len(closes))
	for sym := range closes {
		all = append(all, sym)
	}
	sort.Strings(all)

	var syms []string
	var returns [][]float64
	for _, sym := range all {
		r := market.LogReturns(closes[sym])
		if len(r) < o.MinHistory {
			continue
		}
		syms = append(syms, sym)
		returns = append(returns, r)
	}
	return syms, returns
}

type objective struct {
	means    []float64 // shrunk daily means
	cov      [][]float64
	lo, hi   float64
	leverage float64
	rf       float64
}

func newObjective(returns [][]float64, p config.Portfolio) objective {
	means := make([]float64, len(returns))
	for i, r := range returns {
		means[i] = risk.Mean(r) * p.Optimizer.MeanReturnShrinkage
	}
	return objective{
		means:    means,
		cov:      risk.SampleCovariance(returns),
		lo:       p.Weights.Min,
		hi:       p.Weights.Max,
		leverage: p.Leverage.Target,
		rf:       p.Optimizer.RiskFreeRate,
	}
}

// value is the negated Sharpe ratio of the normalized candidate, or +Inf when
// the candidate violates the weight bounds.
func (o objective) value(x []float64) float64 {
	w := append([]float64(nil), x...)
	if !normalize(w) || !withinBounds(w, o.lo, o.hi) {
		return math.Inf(1)
	}
	return -o.sharpe(w)
}

// sharpe is the annualized, leveraged Sharpe ratio of normalized weights w.
func (o objective) sharpe(w []float64) float64 {
	var mean, variance float64
	for i := range w {
		mean += w[i] * o.means[i]
		for j := range w {
			variance += w[i] * w[j] * o.cov[i][j]
		}
	}

	ret := mean * risk.TradingDays * o.leverage
	vol := math.Sqrt(math.Max(variance, 0)*risk.TradingDays) * o.leverage
	if !(vol > 0) {
		return 0
	}
	return (ret - o.rf) / vol
}
