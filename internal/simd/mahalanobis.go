package simd

import "github.com/matthias-wolff/gmmscore/internal/mathutil"

// MahalanobisAccum computes sum((x[i]-mean[i])^2 * invVar[i]) for i in 0..len(x)-1.
// The 4-way unrolled loop lets the compiler keep independent accumulators in
// vector registers.
func MahalanobisAccum[F mathutil.Float](x, mean, invVar []F) F {
	n := len(x)
	if n == 0 {
		return 0
	}
	mean = mean[:n]
	invVar = invVar[:n]

	var s0, s1, s2, s3 F
	i := 0
	for ; i <= n-4; i += 4 {
		d0 := x[i] - mean[i]
		d1 := x[i+1] - mean[i+1]
		d2 := x[i+2] - mean[i+2]
		d3 := x[i+3] - mean[i+3]
		s0 += d0 * d0 * invVar[i]
		s1 += d1 * d1 * invVar[i+1]
		s2 += d2 * d2 * invVar[i+2]
		s3 += d3 * d3 * invVar[i+3]
	}
	for ; i < n; i++ {
		d := x[i] - mean[i]
		s0 += d * d * invVar[i]
	}
	return s0 + s1 + s2 + s3
}
