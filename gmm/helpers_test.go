package gmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/matthias-wolff/gmmscore/covariance"
	"github.com/matthias-wolff/gmmscore/internal/mathutil"
	"github.com/matthias-wolff/gmmscore/table"
)

// build turns means and covariance matrices into parameter tables. cmap may
// be nil for untied models; full=false drops the off-diagonal table.
func build[F Float](t testing.TB, means [][]float64, cov []*mat.SymDense, cmap []int, full bool) Params[F] {
	t.Helper()
	prep, _, err := covariance.Prepare(covariance.Set{Matrices: cov}, false, 0)
	require.NoError(t, err)

	k, n := len(means), prep.Dim
	if cmap == nil {
		cmap = make([]int, k)
		for i := range cmap {
			cmap[i] = i
		}
	}
	mean := table.NewDense[F](k, n, nil)
	ivar := table.NewDense[F](k, n, nil)
	for i, mu := range means {
		mathutil.Convert(mean.Row(i), mu)
		mathutil.Convert(ivar.Row(i), prep.Diagonal(cmap[i]))
	}
	p := Params[F]{
		Mean:   mean,
		IVar:   ivar,
		Det:    append([]float64(nil), prep.Det...),
		LogDet: append([]float64(nil), prep.LogDet...),
		CMap:   cmap,
	}
	if full {
		icov := table.NewDense[F](prep.Classes(), mathutil.TriLen(n), nil)
		for c := 0; c < prep.Classes(); c++ {
			mathutil.Convert(icov.Row(c), prep.OffDiagonal(c))
		}
		p.ICov = icov
	}
	return p
}

// randomSPD returns B·Bᵗ + n·I for a random B.
func randomSPD(rng *rand.Rand, n int) *mat.SymDense {
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, rng.NormFloat64())
		}
	}
	s := mat.NewSymDense(n, nil)
	s.SymOuterK(1, b)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+float64(n))
	}
	return s
}

func randomVec(rng *rand.Rand, n int, scale float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = scale * rng.NormFloat64()
	}
	return v
}

// mahalanobis is the reference (x-μ)ᵗ·Σ⁻¹·(x-μ).
func mahalanobis(x, mu []float64, cov *mat.SymDense) float64 {
	n := len(x)
	h := mat.NewVecDense(n, nil)
	for i := range x {
		h.SetVec(i, x[i]-mu[i])
	}
	var sol mat.VecDense
	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return math.NaN()
	}
	if err := chol.SolveVecTo(&sol, h); err != nil {
		return math.NaN()
	}
	return mat.Dot(h, &sol)
}

func convert[F Float](v []float64) []F {
	out := make([]F, len(v))
	mathutil.Convert(out, v)
	return out
}

// forceSIMD makes the capability check succeed for the duration of t.
func forceSIMD(t testing.TB) {
	old := accelerated
	accelerated = func() bool { return true }
	t.Cleanup(func() { accelerated = old })
}

func identity(n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, 1)
	}
	return s
}
