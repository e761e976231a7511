package rebalance

import (
	"sort"

	"github.com/rustyeddy/levered/risk"
)

// PositionDeltas sizes each weighted asset to its share of targetExposure.
// Assets with zero weight or without a positive price are left out, so a
// de-weighted holding is not liquidated. The result is sorted by symbol.
func PositionDeltas(st risk.State, weights map[string]float64, prices map[string]float64, targetExposure float64) []ProposalPosition {
	syms := make([]string, 0, len(weights))
	for sym := range weights {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	out := make([]ProposalPosition, 0, len(syms))
	for _, sym := range syms {
		w := weights[sym]
		px := prices[sym]
		if w == 0 || !(px > 0) {
			continue
		}

		h := st.Holdings[sym]
		pp := ProposalPosition{
			Symbol:          sym,
			CurrentQuantity: h.Quantity,
			CurrentValue:    h.Quantity * px,
			TargetValue:     targetExposure * w,
			TargetWeight:    w,
			Price:           px,
		}
		pp.TargetQuantity = pp.TargetValue / px
		pp.Delta = pp.TargetQuantity - pp.CurrentQuantity
		pp.Action = actionFor(pp.Delta)
		if st.Exposure > 0 {
			pp.CurrentWeight = h.Value / st.Exposure
		}
		out = append(out, pp)
	}
	return out
}

func actionFor(delta float64) Action {
	switch {
	case delta > QuantityThreshold:
		return ActionBuy
	case delta < -QuantityThreshold:
		return ActionSell
	default:
		return ActionHold
	}
}
