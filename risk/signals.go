package risk

import (
	"math"
	"sort"

	"github.com/rustyeddy/levered/config"
)

// Signals are the deploy indicators of one evaluation. The three triggers are
// reported independently of which one set the fraction.
type Signals struct {
	Drawdown                 float64  `json:"drawdown"`
	WeightDeviation          float64  `json:"weight_deviation"`
	RealizedVolatility       *float64 `json:"realized_volatility"`
	DrawdownTriggered        bool     `json:"drawdown_triggered"`
	WeightDeviationTriggered bool     `json:"weight_deviation_triggered"`
	VolatilityTriggered      bool     `json:"volatility_triggered"`
	DeployFraction           float64  `json:"deploy_fraction"`
}

// Triggered reports whether any deploy signal fired.
func (s Signals) Triggered() bool {
	return s.DrawdownTriggered || s.WeightDeviationTriggered || s.VolatilityTriggered
}

// EvaluateSignals computes drawdown, weight deviation and realized volatility
// and derives the deploy fraction. history is newest first; only the first
// VolatilityLookbackDays+1 points are used.
func EvaluateSignals(st State, history []EquitySnapshot, target map[string]float64, d config.DeployThresholds) Signals {
	var s Signals

	if st.PeakEquity > 0 {
		s.Drawdown = st.Equity/st.PeakEquity - 1
	}
	s.DrawdownTriggered = s.Drawdown <= -d.Drawdown

	s.WeightDeviation = WeightDeviation(st, target)
	s.WeightDeviationTriggered = s.WeightDeviation >= d.WeightDeviation

	if n := d.VolatilityLookbackDays + 1; len(history) > n {
		history = history[:n]
	}
	if vol, ok := RealizedVolatility(history); ok {
		s.RealizedVolatility = &vol
		s.VolatilityTriggered = vol <= d.Volatility
	}

	// Magnitude past the threshold does not scale the fraction.
	candidate := 0.0
	switch {
	case s.DrawdownTriggered:
		candidate = 1.0
	case s.WeightDeviationTriggered || s.VolatilityTriggered:
		candidate = 1.0
	}
	if candidate > 0 {
		s.DeployFraction = math.Min(candidate, d.GradualDeployFactor)
	}
	return s
}

// WeightDeviation is the largest absolute gap between an asset's current
// share of exposure and its target weight, over target and held assets.
func WeightDeviation(st State, target map[string]float64) float64 {
	seen := make(map[string]struct{}, len(target)+len(st.Holdings))
	for sym := range target {
		seen[sym] = struct{}{}
	}
	for sym := range st.Holdings {
		seen[sym] = struct{}{}
	}
	syms := make([]string, 0, len(seen))
	for sym := range seen {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	var dev float64
	for _, sym := range syms {
		cur := 0.0
		if st.Exposure > 0 {
			cur = st.Holdings[sym].Value / st.Exposure
		}
		if d := math.Abs(cur - target[sym]); d > dev {
			dev = d
		}
	}
	return dev
}

// RealizedVolatility annualizes the sample standard deviation of the log
// returns between consecutive equity snapshots. history is newest first.
// Pairs with a non-positive equity are skipped. ok is false when fewer than
// two returns remain.
func RealizedVolatility(history []EquitySnapshot) (float64, bool) {
	if len(history) < 2 {
		return 0, false
	}
	rets := make([]float64, 0, len(history)-1)
	for i := len(history) - 1; i > 0; i-- {
		prev, cur := history[i].Equity, history[i-1].Equity
		if prev <= 0 || cur <= 0 {
			continue
		}
		rets = append(rets, math.Log(cur/prev))
	}
	sd, ok := SampleStdDev(rets)
	if !ok {
		return 0, false
	}
	return sd * math.Sqrt(TradingDays), true
}
