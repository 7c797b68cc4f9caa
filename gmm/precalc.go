package gmm

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/covariance"
	"github.com/matthias-wolff/gmmscore/internal/mathutil"
	"github.com/matthias-wolff/gmmscore/internal/simd"
)

// accelerated is the host capability check; tests replace it.
var accelerated = simd.Accelerated

// Precalculate builds the scoring caches from the parameter tables, or frees
// them when cleanup is true. Cleanup always succeeds. On error the model is
// left empty, as after a cleanup.
func (m *Model[F]) Precalculate(cleanup bool) error {
	m.release()
	if cleanup {
		return nil
	}
	if err := m.setUp(); err != nil {
		m.release()
		return err
	}
	if err := m.allocate(); err != nil {
		m.release()
		return err
	}
	for k := 0; k < m.k; k++ {
		if m.classes[m.cmap[k]].validity != covariance.Valid {
			continue
		}
		if m.kernel == KernelLDL {
			m.factorize(k)
		} else {
			m.expand(k)
		}
	}
	m.ready = true
	return nil
}

func (m *Model[F]) release() {
	m.n, m.k = 0, 0
	m.cmap, m.classes = nil, nil
	m.kernel = KernelNone
	m.alpha, m.beta, m.delta = nil, nil, nil
	m.ldlU, m.ldlD, m.full = nil, nil, nil
	m.memo = nil
	m.h, m.y = nil, nil
	m.ws = workspace[F]{}
	m.ready = false
}

// setUp validates the parameter tables and derives the shape, the tying map
// and the class descriptors.
func (m *Model[F]) setUp() error {
	p := m.p
	switch {
	case p.Mean == nil:
		return errors.Wrap(ErrNotSetUp, "no mean table")
	case p.IVar == nil:
		return errors.Wrap(ErrNotSetUp, "no inverse variance table")
	case len(p.Det) == 0:
		return errors.Wrap(ErrNotSetUp, "no determinant vector")
	}
	if err := m.set.limits.Validate(); err != nil {
		return errors.Wrap(ErrNotSetUp, err.Error())
	}
	if lim := m.set.limits; !fits[F](lim.MaxDist) || !fits[F](lim.LogFloor) {
		return errors.Wrapf(ErrNotSetUp, "limits %g, %g overflow the element type", lim.MaxDist, lim.LogFloor)
	}
	if m.set.ldlCoeffs < 0 {
		return errors.Wrapf(ErrNotSetUp, "negative LDL coefficient count %d", m.set.ldlCoeffs)
	}

	k, n := p.Mean.Records(), p.Mean.Components()
	if k == 0 || n == 0 {
		return errors.Wrapf(ErrNotSetUp, "empty mean table (%dx%d)", k, n)
	}
	if p.IVar.Records() != k || p.IVar.Components() != n {
		return errors.Wrapf(ErrNotSetUp, "inverse variance table is %dx%d, want %dx%d",
			p.IVar.Records(), p.IVar.Components(), k, n)
	}

	c := len(p.Det)
	cmap := p.CMap
	switch {
	case cmap == nil && c != k:
		return errors.Wrapf(ErrNotSetUp, "%d determinants for %d untied Gaussians", c, k)
	case cmap == nil:
		cmap = make([]int, k)
		for i := range cmap {
			cmap[i] = i
		}
	case len(cmap) != k:
		return errors.Wrapf(ErrNotSetUp, "tying map has %d entries, want %d", len(cmap), k)
	}
	for i, ci := range cmap {
		if ci < 0 || ci >= c {
			return errors.Wrapf(ErrNotSetUp, "Gaussian %d tied to class %d of %d", i, ci, c)
		}
	}
	if p.ICov != nil && (p.ICov.Records() != c || p.ICov.Components() != mathutil.TriLen(n)) {
		return errors.Wrapf(ErrNotSetUp, "inverse covariance table is %dx%d, want %dx%d",
			p.ICov.Records(), p.ICov.Components(), c, mathutil.TriLen(n))
	}

	if p.LogDet != nil && len(p.LogDet) != c {
		return errors.Wrapf(ErrNotSetUp, "%d log determinants for %d classes", len(p.LogDet), c)
	}

	classes := make([]class, c)
	for ci := range classes {
		if p.LogDet != nil {
			classes[ci].validity = covariance.ValidityOfLogDet(p.LogDet[ci])
		} else {
			classes[ci].validity = covariance.ValidityOf(p.Det[ci])
		}
	}
	for _, ci := range cmap {
		classes[ci].members++
	}

	m.n, m.k = n, k
	m.cmap = cmap
	m.classes = classes
	switch {
	case m.set.ldl:
		m.kernel = KernelLDL
	case m.set.simd && accelerated():
		m.kernel = KernelSIMD
	default:
		m.kernel = KernelScalar
	}
	return nil
}

// allocate sizes every cache, checks the total against the budget and
// allocates.
func (m *Model[F]) allocate() error {
	n, k := m.n, m.k
	share := m.shareable()
	dense := m.kernel == KernelSIMD && m.p.ICov != nil

	elems := 3*float64(n) + 2*float64(k) + float64(k)*float64(n)
	if m.kernel == KernelLDL {
		elems += float64(k) * float64(mathutil.TriLen(n)+n)
	}
	if dense {
		elems += float64(k) * float64(n) * float64(n)
	}
	if share != nil {
		elems += float64(len(m.classes)) * float64(n+1)
	}
	var zero F
	bytes := elems * float64(unsafe.Sizeof(zero))
	if budget := m.set.maxCacheBytes; budget > 0 && bytes > float64(budget) {
		return errors.Wrapf(ErrOutOfMemory, "caches need %.0f bytes, budget is %d", bytes, budget)
	}

	m.alpha = make([]F, k)
	m.beta = make([]F, k*n)
	m.delta = make([]F, k)
	if m.kernel == KernelLDL {
		m.ldlU = make([]F, k*mathutil.TriLen(n))
		m.ldlD = make([]F, k*n)
	}
	if dense {
		m.full = make([]F, k*n*n)
	}
	if share != nil {
		m.memo = newTermCache[F](share, n, m.kernel == KernelLDL)
	}
	m.h = make([]F, n)
	m.y = make([]F, n)
	return nil
}

// shareable returns, per class, whether the term cache may reuse a value
// across the Gaussians of that class. It returns nil when no class would
// benefit, in which case no cache is allocated.
//
// On the dense path term C only depends on the class's inverse covariance.
// On the ldl path the factor also depends on the inverse variances, so all
// members of a class must carry identical ones.
func (m *Model[F]) shareable() []bool {
	switch m.kernel {
	case KernelSIMD:
		return nil
	case KernelScalar:
		if m.p.ICov == nil {
			return nil
		}
	}
	share := make([]bool, len(m.classes))
	first := make([]int, len(m.classes))
	for i := range first {
		first[i] = -1
	}
	for k, c := range m.cmap {
		cl := m.classes[c]
		if cl.validity != covariance.Valid || cl.members < 2 {
			continue
		}
		if first[c] < 0 {
			first[c] = k
			share[c] = true
			continue
		}
		if m.kernel == KernelLDL && share[c] && !equalRows(m.p.IVar.Row(first[c]), m.p.IVar.Row(k)) {
			share[c] = false
		}
	}
	for _, s := range share {
		if s {
			return share
		}
	}
	return nil
}

// fits reports whether v stays finite when converted to F.
func fits[F Float](v float64) bool {
	return mathutil.Finite(float64(F(v)))
}

// logDet returns log det(Σ) of class c.
func (m *Model[F]) logDet(c int) float64 {
	if m.p.LogDet != nil {
		return m.p.LogDet[c]
	}
	return math.Log(m.p.Det[c])
}

func equalRows[F Float](a, b []F) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// expand fills alpha, beta and delta of Gaussian k for the dense kernels,
// and the full inverse covariance matrix when the simd kernel needs it.
func (m *Model[F]) expand(k int) {
	n := m.n
	c := m.cmap[k]
	mean := m.p.Mean.Row(k)
	ivar := m.p.IVar.Row(k)
	beta := m.beta[k*n : (k+1)*n]

	for i := range beta {
		beta[i] = ivar[i] * mean[i]
	}
	if m.p.ICov != nil {
		icov := m.p.ICov.Row(c)
		q := 0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				v := icov[q]
				q++
				beta[i] += v * mean[j]
				beta[j] += v * mean[i]
			}
		}
	}
	m.alpha[k] = mathutil.DotVec(mean, beta)
	m.delta[k] = F(mathutil.LogNormConstLogDet(n, m.logDet(c)))

	if m.full == nil {
		return
	}
	a := m.full[k*n*n : (k+1)*n*n]
	icov := m.p.ICov.Row(c)
	q := 0
	for i := 0; i < n; i++ {
		a[i*n+i] = ivar[i]
		for j := i + 1; j < n; j++ {
			a[i*n+j] = icov[q]
			a[j*n+i] = icov[q]
			q++
		}
	}
}
