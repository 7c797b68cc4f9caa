package simd

import "github.com/matthias-wolff/gmmscore/internal/mathutil"

// maxRows bounds Ops.Rows; it sizes the partials array on the stack.
const maxRows = 4

// Bilinear computes hᵗ·A·h for the dense row-major n×n matrix a.
//
// The vector instructions run along each row: every row is reduced against
// h with one vek dot product. Rows are grouped in blocks of ops.Rows so the
// per-row partials, scaled by the matching h component, are summed
// pairwise per block instead of into one running sum. Rows left over after
// the last full block are finished with a scalar loop.
func Bilinear[F mathutil.Float](ops *Ops[F], h, a []F) F {
	n := len(h)
	if n == 0 {
		return 0
	}
	a = a[:n*n]
	r := ops.Rows

	var sum F
	var lanes [maxRows]F
	i := 0
	for ; i+r <= n; i += r {
		for j := 0; j < r; j++ {
			row := a[(i+j)*n : (i+j+1)*n]
			lanes[j] = ops.Dot(row, h) * h[i+j]
		}
		sum += hsum(lanes[:r])
	}
	for ; i < n; i++ {
		row := a[i*n : (i+1)*n]
		var acc F
		for j, v := range row {
			acc += v * h[j]
		}
		sum += acc * h[i]
	}
	return sum
}

func hsum[F mathutil.Float](lanes []F) F {
	switch len(lanes) {
	case 4:
		return (lanes[0] + lanes[1]) + (lanes[2] + lanes[3])
	case 2:
		return lanes[0] + lanes[1]
	}
	var s F
	for _, v := range lanes {
		s += v
	}
	return s
}
