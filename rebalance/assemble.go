package rebalance

import (
	"time"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/optimize"
	"github.com/rustyeddy/levered/risk"
)

// Inputs is everything a proposal is computed from.
type Inputs struct {
	ID          string
	PortfolioID string
	CreatedAt   time.Time
	Version     int64

	Config    config.Portfolio
	Positions []risk.Position
	// LatestPrices holds the latest known close per symbol.
	LatestPrices map[string]float64
	// Closes holds chronological close prices per symbol for the optimizer.
	Closes   map[string][]float64
	Snapshot risk.EquitySnapshot
	// History is newest first.
	History []risk.EquitySnapshot

	// Optimizer defaults to optimize.New().
	Optimizer *optimize.Optimizer
}

// Assemble computes a rebalance proposal. It performs no I/O and returns the
// same proposal for the same inputs.
func Assemble(in Inputs) Proposal {
	p, _, _ := assemble(in)
	return p
}

// assemble also returns the optimizer result and error for diagnostics.
func assemble(in Inputs) (Proposal, optimize.Result, error) {
	cfg := in.Config
	st := risk.CalculateState(in.Positions, in.LatestPrices, in.Snapshot)
	sig := risk.EvaluateSignals(st, in.History, cfg.TargetWeights, cfg.Deploy)

	opt := in.Optimizer
	if opt == nil {
		opt = optimize.New()
	}
	weights, dynamic := copyWeights(cfg.TargetWeights), false
	res, err := opt.Optimize(in.Closes, cfg)
	if err == nil {
		weights, dynamic = res.Weights, true
	}

	targetExposure, branch := risk.TargetExposure(st.Equity, st.Exposure, cfg.Leverage)
	positions := PositionDeltas(st, weights, deltaPrices(st, weights, in.LatestPrices), targetExposure)

	equityUsed, borrow := SplitExposureChange(st.Exposure, targetExposure)
	sum := Summary{
		NewEquity:      st.Equity + equityUsed,
		NewExposure:    targetExposure,
		EquityUsed:     equityUsed,
		BorrowIncrease: borrow,
	}
	if sum.NewEquity > 0 {
		sum.NewLeverage = sum.NewExposure / sum.NewEquity
	}

	return Proposal{
		ID:                     in.ID,
		PortfolioID:            in.PortfolioID,
		CreatedAt:              in.CreatedAt,
		BaseVersion:            in.Version,
		State:                  st,
		TargetLeverage:         cfg.Leverage.Target,
		TargetExposure:         targetExposure,
		ExposureBranch:         branch,
		Signals:                sig,
		Positions:              positions,
		Summary:                sum,
		WeightsUsed:            weights,
		DynamicWeightsComputed: dynamic,
	}, res, err
}

// deltaPrices prices each weighted symbol at its latest close, falling back
// to the price its holding was valued at.
func deltaPrices(st risk.State, weights, latest map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for sym := range weights {
		if px := latest[sym]; px > 0 {
			out[sym] = px
		} else if h, ok := st.Holdings[sym]; ok && h.Price > 0 {
			out[sym] = h.Price
		}
	}
	return out
}

func copyWeights(w map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
