package intraday

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// downsideEpsilon keeps the downside ratio finite when all returns are zero
const downsideEpsilon = 1e-12

// skewness is the adjusted Fisher-Pearson sample skewness.
// ok is false with fewer than 3 values or zero variance.
func skewness(xs []float64) (float64, bool) {
	if len(xs) < 3 || constant(xs) {
		return 0, false
	}
	v := stat.Skew(xs, nil)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// pearson is the sample correlation of xs and ys (same length).
// ok is false with fewer than 2 pairs or when either side is constant.
func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || len(xs) != len(ys) || constant(xs) || constant(ys) {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// downsideRatio is Σr²(r<0) / (Σr² + ε). ok is false without returns.
func downsideRatio(returns []float64) (float64, bool) {
	if len(returns) == 0 {
		return 0, false
	}
	var neg float64
	for _, r := range returns {
		if r < 0 {
			neg += r * r
		}
	}
	return neg / (floats.Dot(returns, returns) + downsideEpsilon), true
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
