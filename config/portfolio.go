package config

import (
	"fmt"
	"math"
	"os"
	"sort"
)

// MinHistory is the number of daily returns an asset needs before it takes
// part in weight optimization.
const MinHistory = 20

// WeightSumTolerance bounds how far configured target weights may stray from 1.
const WeightSumTolerance = 0.001

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Msg
}

// Portfolio is the rebalance configuration of one portfolio.
type Portfolio struct {
	ID            string             `json:"id" yaml:"id"`
	Name          string             `json:"name" yaml:"name"`
	Leverage      LeverageBounds     `json:"leverage" yaml:"leverage"`
	Weights       WeightBounds       `json:"weights" yaml:"weights"`
	Deploy        DeployThresholds   `json:"deploy" yaml:"deploy"`
	Optimizer     OptimizerParams    `json:"optimizer" yaml:"optimizer"`
	TargetWeights map[string]float64 `json:"target_weights" yaml:"target_weights"`
}

type LeverageBounds struct {
	Min    float64 `json:"min" yaml:"min"`
	Target float64 `json:"target" yaml:"target"`
	Max    float64 `json:"max" yaml:"max"`
}

// WeightBounds applies to every asset.
type WeightBounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

type DeployThresholds struct {
	Drawdown               float64 `json:"drawdown" yaml:"drawdown"`
	WeightDeviation        float64 `json:"weight_deviation" yaml:"weight_deviation"`
	VolatilityLookbackDays int     `json:"volatility_lookback_days" yaml:"volatility_lookback_days"`
	Volatility             float64 `json:"volatility" yaml:"volatility"`
	GradualDeployFactor    float64 `json:"gradual_deploy_factor" yaml:"gradual_deploy_factor"`
}

type OptimizerParams struct {
	MeanReturnShrinkage float64 `json:"mean_return_shrinkage" yaml:"mean_return_shrinkage"`
	RiskFreeRate        float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

// Symbols returns the target weight symbols in sorted order.
func (p Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.TargetWeights))
	for s := range p.TargetWeights {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Validate checks leverage bounds, weight bounds, thresholds and the
// target-weight mapping.
func (p Portfolio) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Msg: "is required"}
	}
	l := p.Leverage
	if l.Min <= 0 || l.Target <= 0 || l.Max <= 0 {
		return &ValidationError{Field: "leverage", Msg: fmt.Sprintf("bounds must be > 0, got min=%g target=%g max=%g", l.Min, l.Target, l.Max)}
	}
	if l.Min > l.Max {
		return &ValidationError{Field: "leverage", Msg: fmt.Sprintf("min %g exceeds max %g", l.Min, l.Max)}
	}
	if l.Target < l.Min || l.Target > l.Max {
		return &ValidationError{Field: "leverage.target", Msg: fmt.Sprintf("must be within [%g,%g], got %g", l.Min, l.Max, l.Target)}
	}
	w := p.Weights
	if w.Min < 0 || w.Max > 1 || w.Min > w.Max {
		return &ValidationError{Field: "weights", Msg: fmt.Sprintf("bounds must satisfy 0 <= min <= max <= 1, got min=%g max=%g", w.Min, w.Max)}
	}
	d := p.Deploy
	if d.Drawdown < 0 {
		return &ValidationError{Field: "deploy.drawdown", Msg: fmt.Sprintf("must be >= 0, got %g", d.Drawdown)}
	}
	if d.WeightDeviation < 0 {
		return &ValidationError{Field: "deploy.weight_deviation", Msg: fmt.Sprintf("must be >= 0, got %g", d.WeightDeviation)}
	}
	if d.VolatilityLookbackDays < 1 {
		return &ValidationError{Field: "deploy.volatility_lookback_days", Msg: "must be at least 1"}
	}
	if d.Volatility < 0 {
		return &ValidationError{Field: "deploy.volatility", Msg: fmt.Sprintf("must be >= 0, got %g", d.Volatility)}
	}
	if d.GradualDeployFactor < 0 || d.GradualDeployFactor > 1 {
		return &ValidationError{Field: "deploy.gradual_deploy_factor", Msg: fmt.Sprintf("must be within [0,1], got %g", d.GradualDeployFactor)}
	}
	o := p.Optimizer
	if o.MeanReturnShrinkage < 0 || o.MeanReturnShrinkage > 1 {
		return &ValidationError{Field: "optimizer.mean_return_shrinkage", Msg: fmt.Sprintf("must be within [0,1], got %g", o.MeanReturnShrinkage)}
	}
	if o.RiskFreeRate < 0 {
		return &ValidationError{Field: "optimizer.risk_free_rate", Msg: fmt.Sprintf("must be >= 0, got %g", o.RiskFreeRate)}
	}
	if len(p.TargetWeights) == 0 {
		return &ValidationError{Field: "target_weights", Msg: "must name at least one asset"}
	}
	var sum float64
	for _, s := range p.Symbols() {
		v := p.TargetWeights[s]
		if v < 0 || v > 1 {
			return &ValidationError{Field: "target_weights." + s, Msg: fmt.Sprintf("must be within [0,1], got %g", v)}
		}
		sum += v
	}
	if math.Abs(sum-1) > WeightSumTolerance {
		return &ValidationError{Field: "target_weights", Msg: fmt.Sprintf("must sum to 1, got %g", sum)}
	}
	return nil
}

// LoadPortfolioFile loads and validates a portfolio configuration file.
func LoadPortfolioFile(path string) (Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Portfolio{}, fmt.Errorf("read portfolio file: %w", err)
	}

	var p Portfolio
	if err := unmarshal(data, &p); err != nil {
		return Portfolio{}, err
	}
	if err := p.Validate(); err != nil {
		return Portfolio{}, fmt.Errorf("invalid portfolio: %w", err)
	}
	return p, nil
}

// SavePortfolioFile writes p as YAML or JSON depending on the extension.
func SavePortfolioFile(path string, p Portfolio) error {
	return save(path, p)
}

// DefaultPortfolio returns an example three asset configuration.
func DefaultPortfolio() Portfolio {
	return Portfolio{
		ID:   "main",
		Name: "Leveraged ETF core",
		Leverage: LeverageBounds{
			Min:    2.5,
			Target: 3.0,
			Max:    4.0,
		},
		Weights: WeightBounds{
			Min: 0.05,
			Max: 0.6,
		},
		Deploy: DeployThresholds{
			Drawdown:               0.10,
			WeightDeviation:        0.05,
			VolatilityLookbackDays: 20,
			Volatility:             0.15,
			GradualDeployFactor:    0.5,
		},
		Optimizer: OptimizerParams{
			MeanReturnShrinkage: 0.6,
			RiskFreeRate:        0.02,
		},
		TargetWeights: map[string]float64{
			"SPY": 0.5,
			"TLT": 0.3,
			"GLD": 0.2,
		},
	}
}
