package gmm

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

// factorize fills the ldl caches of Gaussian k. The inverse covariance
// A (diagonal from IVar, off-diagonal from ICov) is written as A = Uᵗ·D·U
// with U unit upper triangular, so that
//
//	(x-μ)ᵗ·A·(x-μ) = Σ_n D[n]·((U·x)[n] - (U·μ)[n])²
//
// beta holds U·μ.
func (m *Model[F]) factorize(k int) {
	n := m.n
	tri := mathutil.TriLen(n)
	c := m.cmap[k]
	ivar := m.p.IVar.Row(k)

	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, float64(ivar[i]))
	}
	if m.p.ICov != nil {
		icov := m.p.ICov.Row(c)
		q := 0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				a.SetSym(i, j, float64(icov[q]))
				q++
			}
		}
	}

	u := m.ldlU[k*tri : (k+1)*tri]
	d := m.ldlD[k*n : (k+1)*n]
	if !choleskyLDL(a, u, d) {
		decomposeLDL(a, u, d)
	}
	if keep := m.set.ldlCoeffs; keep > 0 && keep < n-1 {
		sparsify(u, n, keep)
	}

	mean := m.p.Mean.Row(k)
	m.transform(m.beta[k*n:(k+1)*n], mean, k)
	m.delta[k] = F(mathutil.LogNormConstLogDet(n, m.logDet(c)))
}

// choleskyLDL derives the LDL factors from the Cholesky factor A = Rᵗ·R:
// D[i] = R[i,i]², U[i,j] = R[i,j]/R[i,i]. It reports false when A is not
// positive definite.
func choleskyLDL[F Float](a *mat.SymDense, u, d []F) bool {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return false
	}
	var r mat.TriDense
	chol.UTo(&r)
	n := a.SymmetricDim()
	for i := 0; i < n; i++ {
		rii := r.At(i, i)
		d[i] = F(rii * rii)
		for j := i + 1; j < n; j++ {
			u[mathutil.TriIndex(n, i, j)] = F(r.At(i, j) / rii)
		}
	}
	return true
}

// decomposeLDL is the unpivoted LDLᵗ recurrence for symmetric matrices that
// are not positive definite. A zero pivot zeroes the matching column of the
// factor.
func decomposeLDL[F Float](a *mat.SymDense, u, d []F) {
	n := a.SymmetricDim()
	l := make([]float64, n*n) // l[i*n+j] = L[i,j], i > j
	dd := make([]float64, n)
	for j := 0; j < n; j++ {
		s := a.At(j, j)
		for p := 0; p < j; p++ {
			s -= l[j*n+p] * l[j*n+p] * dd[p]
		}
		dd[j] = s
		for i := j + 1; i < n; i++ {
			if s == 0 {
				l[i*n+j] = 0
				continue
			}
			v := a.At(i, j)
			for p := 0; p < j; p++ {
				v -= l[i*n+p] * l[j*n+p] * dd[p]
			}
			l[i*n+j] = v / s
		}
	}
	for j := 0; j < n; j++ {
		d[j] = F(dd[j])
		for i := j + 1; i < n; i++ {
			u[mathutil.TriIndex(n, j, i)] = F(l[i*n+j])
		}
	}
}

// sparsify keeps the keep largest-magnitude coefficients of every row of
// the packed factor u and zeroes the rest. The magnitudes of a row are
// sorted and everything below the keep-th largest is dropped, so ties at
// the threshold are all kept.
func sparsify[F Float](u []F, n, keep int) {
	mags := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		width := n - 1 - i
		if width <= keep {
			break
		}
		row := u[mathutil.TriIndex(n, i, i+1) : mathutil.TriIndex(n, i, i+1)+width]
		mags = mags[:0]
		for _, v := range row {
			mags = append(mags, math.Abs(float64(v)))
		}
		slices.Sort(mags)
		threshold := mags[width-keep]
		for j, v := range row {
			if math.Abs(float64(v)) < threshold {
				row[j] = 0
			}
		}
	}
}

// transform stores U_k·x in dst: dst[n] = x[n] + Σ_{m>n} U[n,m]·x[m].
func (m *Model[F]) transform(dst, x []F, k int) {
	n := m.n
	tri := mathutil.TriLen(n)
	u := m.ldlU[k*tri : (k+1)*tri]
	q := 0
	for i := 0; i < n; i++ {
		s := x[i]
		for j := i + 1; j < n; j++ {
			s += u[q] * x[j]
			q++
		}
		dst[i] = s
	}
}
