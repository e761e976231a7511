package risk

import "math"

// TradingDays annualizes daily statistics.
const TradingDays = 252

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev returns the ddof=1 standard deviation. ok is false when fewer
// than two observations make it undefined.
func SampleStdDev(xs []float64) (sd float64, ok bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

// SampleCovariance returns the ddof=1 covariance matrix of equal-length
// series, where series[i] holds the observations of variable i.
func SampleCovariance(series [][]float64) [][]float64 {
	n := len(series)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	if n == 0 {
		return cov
	}
	m := len(series[0])
	if m < 2 {
		return cov
	}

	means := make([]float64, n)
	for i, s := range series {
		means[i] = Mean(s)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var acc float64
			for k := 0; k < m; k++ {
				acc += (series[i][k] - means[i]) * (series[j][k] - means[j])
			}
			v := acc / float64(m-1)
			cov[i][j] = v
			cov[j][i] = v
		}
	}
	return cov
}
