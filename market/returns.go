package market

import (
	"math"
	"time"
)

// Close is one daily closing price for a symbol.
type Close struct {
	Symbol string
	Day    time.Time
	Price  float64
}

// LogReturns converts a chronological close series into daily log returns.
// Pairs where either price is non-positive are skipped, so the result can
// be shorter than len(closes)-1.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// Prices extracts the price column of a close series.
func Prices(closes []Close) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = c.Price
	}
	return out
}
