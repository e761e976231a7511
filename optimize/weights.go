package optimize

import "math"

// boundSlack widens the weight bounds when testing candidate feasibility.
const boundSlack = 0.001

// clampPasses caps how often excess weight is redistributed.
const clampPasses = 10

// normalize scales w to sum to 1 in place. It reports false, leaving w
// untouched, when the sum is non-positive or not finite.
func normalize(w []float64) bool {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if !(sum > 0) || math.IsInf(sum, 0) {
		return false
	}
	for i := range w {
		w[i] /= sum
	}
	return true
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// clampToBounds pulls weights into [lo, hi] and spreads the clipped excess or
// deficit evenly over the weights still strictly inside the bounds. It stops
// after clampPasses rounds or once nothing moves, then renormalizes.
func clampToBounds(w []float64, lo, hi float64) {
	for pass := 0; pass < clampPasses; pass++ {
		var excess float64
		changed := false
		for i, v := range w {
			switch {
			case v > hi:
				excess += v - hi
				w[i] = hi
				changed = true
			case v < lo:
				excess -= lo - v
				w[i] = lo
				changed = true
			}
		}
		if !changed {
			break
		}

		var free []int
		for i, v := range w {
			if v > lo && v < hi {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			break
		}
		share := excess / float64(len(free))
		for _, i := range free {
			w[i] += share
		}
	}
	normalize(w)
}

// withinBounds reports whether every weight lies in [lo-boundSlack, hi+boundSlack].
func withinBounds(w []float64, lo, hi float64) bool {
	for _, v := range w {
		if v < lo-boundSlack || v > hi+boundSlack {
			return false
		}
	}
	return true
}
