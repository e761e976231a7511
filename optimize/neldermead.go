package optimize

import (
	"math"
	"sort"
)

// Options configures the Nelder-Mead simplex search.
type Options struct {
	Reflection  float64
	Expansion   float64
	Contraction float64
	Shrink      float64

	// Tolerance stops the search once the spread between the best and worst
	// vertex values drops below it.
	Tolerance     float64
	MaxIterations int

	// Every candidate's raw coordinates are clamped to [Lower, Upper]
	// before evaluation.
	Lower float64
	Upper float64
}

// DefaultOptions returns the standard coefficients with a 500 iteration cap.
func DefaultOptions() Options {
	return Options{
		Reflection:    1.0,
		Expansion:     2.0,
		Contraction:   0.5,
		Shrink:        0.5,
		Tolerance:     1e-8,
		MaxIterations: 500,
		Lower:         0.01,
		Upper:         0.99,
	}
}

// SearchResult is the outcome of Minimize.
type SearchResult struct {
	X          []float64
	Value      float64
	Iterations int
	Converged  bool
}

// Minimize runs a derivative-free simplex search on f starting from the given
// n+1 vertices. f may return +Inf for infeasible points. A converged simplex
// is summarized by its centroid when that point is no worse than the best
// vertex within tolerance.
func Minimize(f func([]float64) float64, simplex [][]float64, opts Options) SearchResult {
	n := len(simplex) - 1
	if n < 1 {
		return SearchResult{Value: math.Inf(1)}
	}

	eval := func(x []float64) float64 {
		clampAll(x, opts.Lower, opts.Upper)
		return f(x)
	}

	pts := make([][]float64, n+1)
	vals := make([]float64, n+1)
	for i, v := range simplex {
		pts[i] = append([]float64(nil), v...)
		vals[i] = eval(pts[i])
	}

	res := SearchResult{}
	for {
		order(pts, vals)
		if vals[n]-vals[0] < opts.Tolerance {
			res.Converged = true
			break
		}
		if res.Iterations >= opts.MaxIterations {
			break
		}
		res.Iterations++

		c := centroid(pts[:n])
		worst := pts[n]

		xr := affine(c, c, worst, opts.Reflection)
		fr := eval(xr)

		switch {
		case fr < vals[0]:
			xe := affine(c, xr, c, opts.Expansion)
			if fe := eval(xe); fe < fr {
				pts[n], vals[n] = xe, fe
			} else {
				pts[n], vals[n] = xr, fr
			}
			continue
		case fr < vals[n-1]:
			pts[n], vals[n] = xr, fr
			continue
		case fr < vals[n]:
			xc := affine(c, xr, c, opts.Contraction)
			if fc := eval(xc); fc <= fr {
				pts[n], vals[n] = xc, fc
				continue
			}
		default:
			xc := affine(c, worst, c, opts.Contraction)
			if fc := eval(xc); fc < vals[n] {
				pts[n], vals[n] = xc, fc
				continue
			}
		}

		for i := 1; i <= n; i++ {
			pts[i] = affine(pts[0], pts[i], pts[0], opts.Shrink)
			vals[i] = eval(pts[i])
		}
	}

	res.X = pts[0]
	res.Value = vals[0]
	if res.Converged {
		c := centroid(pts)
		if fc := eval(c); !math.IsInf(fc, 0) && !math.IsNaN(fc) && fc <= vals[0]+opts.Tolerance {
			res.X = c
			res.Value = fc
		}
	}
	return res
}

// order sorts vertices by value, keeping earlier vertices first on ties.
func order(pts [][]float64, vals []float64) {
	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(vals[idx[a]], vals[idx[b]]) })

	sp := make([][]float64, len(pts))
	sv := make([]float64, len(vals))
	for i, j := range idx {
		sp[i], sv[i] = pts[j], vals[j]
	}
	copy(pts, sp)
	copy(vals, sv)
}

// less orders NaN after every other value.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}

func centroid(pts [][]float64) []float64 {
	c := make([]float64, len(pts[0]))
	for _, p := range pts {
		for j, v := range p {
			c[j] += v
		}
	}
	for j := range c {
		c[j] /= float64(len(pts))
	}
	return c
}

// affine returns base + k*(a - b).
func affine(base, a, b []float64, k float64) []float64 {
	out := make([]float64, len(base))
	for j := range base {
		out[j] = base[j] + k*(a[j]-b[j])
	}
	return out
}

func clampAll(x []float64, lo, hi float64) {
	for i, v := range x {
		x[i] = math.Min(math.Max(v, lo), hi)
	}
}
