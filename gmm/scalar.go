package gmm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/covariance"
)

// Evaluate scores feature vector x against Gaussian k.
func (m *Model[F]) Evaluate(x []F, k int, mode Mode) (F, error) {
	if !m.ready {
		return 0, ErrNotPrecalculated
	}
	if len(x) != m.n {
		return 0, errors.Wrapf(ErrDimension, "got %d components, want %d", len(x), m.n)
	}
	if k < 0 || k >= m.k {
		return 0, errors.Wrapf(ErrGaussianIndex, "%d of %d", k, m.k)
	}
	m.memo.reset()
	return m.score(x, k, mode), nil
}

// score evaluates one (vector, Gaussian) pair. The term cache must have been
// reset for x.
func (m *Model[F]) score(x []F, k int, mode Mode) F {
	switch m.classes[m.cmap[k]].validity {
	case covariance.Singular:
		return F(m.set.limits.Sentinel(mode))
	}

	var d F
	switch m.kernel {
	case KernelLDL:
		d = m.mdistLDL(x, k)
	case KernelSIMD:
		d = m.mdistSIMD(x, k)
	default:
		d = m.mdistScalar(x, k)
	}
	if d < 0 {
		d = 0
	}

	switch mode {
	case LogDensity:
		return m.delta[k] - d/2
	case NegLogDensity:
		return d/2 - m.delta[k]
	case Density:
		return F(math.Exp(float64(m.delta[k]) - float64(d)/2))
	}
	return d
}

// mdistScalar computes alpha - 2·beta·x + Σ ivar·x² + term C.
func (m *Model[F]) mdistScalar(x []F, k int) F {
	n := m.n
	beta := m.beta[k*n : (k+1)*n]
	ivar := m.p.IVar.Row(k)
	var bx, sq F
	for i, xi := range x {
		bx += beta[i] * xi
		sq += ivar[i] * xi * xi
	}
	return m.alpha[k] - 2*bx + sq + m.termC(x, k)
}

// termC computes 2·Σ_{i<j} icov[i,j]·x[i]·x[j] for the class of Gaussian k,
// or returns the value another Gaussian of the class already computed for x.
func (m *Model[F]) termC(x []F, k int) F {
	if m.p.ICov == nil {
		return 0
	}
	c := m.cmap[k]
	if v, ok := m.memo.lookup(c); ok {
		return v
	}
	n := m.n
	icov := m.p.ICov.Row(c)
	var s F
	q := 0
	for i := 0; i < n; i++ {
		var r F
		for j := i + 1; j < n; j++ {
			r += icov[q] * x[j]
			q++
		}
		s += x[i] * r
	}
	s *= 2
	m.memo.store(c, s)
	return s
}

// mdistLDL computes Σ D·(U·x - beta')².
func (m *Model[F]) mdistLDL(x []F, k int) F {
	n := m.n
	y := m.ldlVector(x, k)
	beta := m.beta[k*n : (k+1)*n]
	d := m.ldlD[k*n : (k+1)*n]
	var s F
	for i, yi := range y {
		e := yi - beta[i]
		s += d[i] * e * e
	}
	return s
}

func (m *Model[F]) ldlVector(x []F, k int) []F {
	c := m.cmap[k]
	y, ready := m.memo.slot(c)
	if y == nil {
		m.transform(m.y, x, k)
		return m.y
	}
	if !ready {
		m.transform(y, x, k)
		m.memo.fill(c)
	}
	return y
}
