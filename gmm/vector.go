package gmm

import "github.com/matthias-wolff/gmmscore/internal/simd"

// mdistSIMD computes hᵗ·A·h with h = mean - x directly, without the
// alpha/beta expansion. Diagonal models reduce to the weighted squared
// distance.
func (m *Model[F]) mdistSIMD(x []F, k int) F {
	mean := m.p.Mean.Row(k)
	if m.full == nil {
		return simd.MahalanobisAccum(x, mean, m.p.IVar.Row(k))
	}
	n := m.n
	m.ops.Sub(m.h, mean, x)
	return simd.Bilinear(m.ops, m.h, m.full[k*n*n:(k+1)*n*n])
}
