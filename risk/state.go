package risk

import (
	"sort"
	"time"
)

// Position is a held asset as persisted for a portfolio.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// EquitySnapshot is a stored equity reading. It is the authoritative source of
// portfolio equity.
type EquitySnapshot struct {
	Time       time.Time `json:"time"`
	Equity     float64   `json:"equity"`
	PeakEquity float64   `json:"peak_equity"`
}

// Holding is a position valued at its resolved price.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
}

// State is the current leverage picture of a portfolio.
type State struct {
	Equity      float64            `json:"equity"`
	Exposure    float64            `json:"exposure"`
	Leverage    float64            `json:"leverage"`
	MarginRatio float64            `json:"margin_ratio"`
	PeakEquity  float64            `json:"peak_equity"`
	Holdings    map[string]Holding `json:"holdings"`
}

// Symbols returns the held symbols in sorted order.
func (s State) Symbols() []string {
	out := make([]string, 0, len(s.Holdings))
	for sym := range s.Holdings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// ResolvePrice returns the latest close for the position's symbol, falling
// back to its average price when no positive close is known.
func ResolvePrice(p Position, latest map[string]float64) float64 {
	if px, ok := latest[p.Symbol]; ok && px > 0 {
		return px
	}
	return p.AvgPrice
}

// CalculateState values positions and derives leverage and margin figures.
// Equity comes from snap and is never rebuilt from exposure minus borrow.
func CalculateState(positions []Position, latest map[string]float64, snap EquitySnapshot) State {
	st := State{
		Equity:   snap.Equity,
		Holdings: make(map[string]Holding, len(positions)),
	}

	for _, p := range positions {
		px := ResolvePrice(p, latest)
		h := st.Holdings[p.Symbol]
		h.Symbol = p.Symbol
		h.Quantity += p.Quantity
		h.Price = px
		h.Value = h.Quantity * px
		st.Holdings[p.Symbol] = h
	}
	for _, sym := range st.Symbols() {
		st.Exposure += st.Holdings[sym].Value
	}

	if st.Equity > 0 {
		st.Leverage = st.Exposure / st.Equity
	}
	st.MarginRatio = 1
	if st.Exposure > 0 {
		st.MarginRatio = st.Equity / st.Exposure
	}
	st.PeakEquity = snap.PeakEquity
	if st.Equity > st.PeakEquity {
		st.PeakEquity = st.Equity
	}
	return st
}
