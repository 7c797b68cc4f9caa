package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// Log2Pi is log(2π), the per-dimension term of the Gaussian normalization.
var Log2Pi = math.Log(2 * math.Pi)

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a > b {
		if b <= LogZero {
			return a
		}
		d := b - a
		if d < -36.0 {
			return a
		}
		return a + math.Log1p(math.Exp(d))
	}
	if a <= LogZero {
		return b
	}
	d := a - b
	if d < -36.0 {
		return b
	}
	return b + math.Log1p(math.Exp(d))
}

// LogNormConst returns -n/2·log(2π) - 0.5·log(det), the log normalization
// constant of an n-dimensional Gaussian whose covariance has determinant det.
func LogNormConst(n int, det float64) float64 {
	return LogNormConstLogDet(n, math.Log(det))
}

// LogNormConstLogDet is LogNormConst for a determinant given as log det.
func LogNormConstLogDet(n int, logDet float64) float64 {
	return -float64(n)/2*Log2Pi - 0.5*logDet
}

// Finite reports whether v is neither NaN nor ±Inf.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
