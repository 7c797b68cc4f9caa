// Package covariance prepares covariance classes for scoring: it inverts
// them, computes their determinants and flags the rank-deficient ones.
package covariance

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

// Validity tells whether a covariance class can be used for scoring.
type Validity int

const (
	// Valid classes have a finite determinant above the threshold.
	Valid Validity = iota
	// Singular classes are rank deficient; Gaussians tied to them score the
	// configured limit value.
	Singular
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Singular:
		return "singular"
	}
	return "unknown"
}

// ValidityOf classifies a determinant: zero or non-finite means Singular.
func ValidityOf(det float64) Validity {
	if det == 0 || !mathutil.Finite(det) {
		return Singular
	}
	return Valid
}

// ValidityOfLogDet classifies log det(Σ): -Inf (det 0), +Inf and NaN mean
// Singular.
func ValidityOfLogDet(logDet float64) Validity {
	if !mathutil.Finite(logDet) {
		return Singular
	}
	return Valid
}

var (
	// ErrEmptySet is returned when no covariance class is given.
	ErrEmptySet = errors.New("covariance: empty set")
	// ErrDimensionMismatch is returned when the classes differ in size.
	ErrDimensionMismatch = errors.New("covariance: dimension mismatch")
	// ErrNegativeThreshold is returned for a negative minimum determinant.
	ErrNegativeThreshold = errors.New("covariance: negative determinant threshold")
)

// Set holds one symmetric matrix per covariance class.
type Set struct {
	Matrices []*mat.SymDense
}

// Diagonal builds a Set of diagonal covariance matrices, one per row of
// variances.
func Diagonal(variances [][]float64) Set {
	s := Set{Matrices: make([]*mat.SymDense, len(variances))}
	for c, v := range variances {
		m := mat.NewSymDense(len(v), nil)
		for i, x := range v {
			m.SetSym(i, i, x)
		}
		s.Matrices[c] = m
	}
	return s
}

// Prepared is the result of Prepare.
type Prepared struct {
	Dim int
	// Inverse holds the inverse covariance matrix of each class; zero for
	// singular classes.
	Inverse []*mat.SymDense
	// Det holds det(Σ) of each class, forced to 0 for singular classes. It
	// may underflow to 0 for valid high-dimensional classes; LogDet does not.
	Det []float64
	// LogDet holds log det(Σ) of each class, -Inf for singular classes.
	LogDet   []float64
	Validity []Validity
}

// Classes returns the number of covariance classes.
func (p *Prepared) Classes() int { return len(p.Det) }

// Singular returns the number of rank-deficient classes.
func (p *Prepared) Singular() int {
	n := 0
	for _, v := range p.Validity {
		if v == Singular {
			n++
		}
	}
	return n
}

// OffDiagonal returns the strictly upper triangle of the inverse covariance
// of class c, packed row-major.
func (p *Prepared) OffDiagonal(c int) []float64 {
	n := p.Dim
	out := make([]float64, mathutil.TriLen(n))
	inv := p.Inverse[c]
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out[mathutil.TriIndex(n, i, j)] = inv.At(i, j)
		}
	}
	return out
}

// Diagonal returns the main diagonal of the inverse covariance of class c,
// i.e. the inverse variances.
func (p *Prepared) Diagonal(c int) []float64 {
	out := make([]float64, p.Dim)
	for i := range out {
		out[i] = p.Inverse[c].At(i, i)
	}
	return out
}

// Prepare inverts every class of set and computes det(Σ). When
// alreadyInverse is true the matrices are taken to be inverse covariances
// and det(Σ) = 1/det(Σ⁻¹).
//
// A class that is not positive definite, whose inversion is ill-conditioned,
// or whose determinant is non-finite or below minDet is rank deficient: its
// determinant is forced to 0, its inverse is zeroed and it is marked
// Singular. Determinants are compared in the log domain, so a valid class
// stays valid when det(Σ) underflows. Prepare returns the number of valid
// classes.
func Prepare(set Set, alreadyInverse bool, minDet float64) (*Prepared, int, error) {
	if len(set.Matrices) == 0 {
		return nil, 0, ErrEmptySet
	}
	if minDet < 0 || math.IsNaN(minDet) {
		return nil, 0, errors.Wrapf(ErrNegativeThreshold, "min determinant %g", minDet)
	}
	n := set.Matrices[0].SymmetricDim()
	for c, m := range set.Matrices {
		if d := m.SymmetricDim(); d != n {
			return nil, 0, errors.Wrapf(ErrDimensionMismatch, "class %d is %dx%d, want %dx%d", c, d, d, n, n)
		}
	}

	classes := len(set.Matrices)
	p := &Prepared{
		Dim:      n,
		Inverse:  make([]*mat.SymDense, classes),
		Det:      make([]float64, classes),
		LogDet:   make([]float64, classes),
		Validity: make([]Validity, classes),
	}
	logMin := math.Log(minDet) // -Inf for minDet == 0
	valid := 0
	for c, m := range set.Matrices {
		inv, logDet, ok := invert(m, alreadyInverse)
		if !ok || ValidityOfLogDet(logDet) == Singular || logDet < logMin {
			p.Inverse[c] = mat.NewSymDense(n, nil)
			p.LogDet[c] = math.Inf(-1)
			p.Validity[c] = Singular
			continue
		}
		p.Inverse[c] = inv
		p.Det[c] = math.Exp(logDet)
		p.LogDet[c] = logDet
		valid++
	}
	return p, valid, nil
}

// invert returns the inverse covariance and log det(Σ) of class m.
func invert(m *mat.SymDense, alreadyInverse bool) (*mat.SymDense, float64, bool) {
	n := m.SymmetricDim()
	if floats.HasNaN(m.RawSymmetric().Data) {
		return nil, 0, false
	}
	var chol mat.Cholesky
	if !chol.Factorize(m) {
		return nil, 0, false
	}
	logDet := chol.LogDet()
	inv := mat.NewSymDense(n, nil)
	if alreadyInverse {
		inv.CopySym(m)
		return inv, -logDet, true
	}
	if err := chol.InverseTo(inv); err != nil {
		return nil, 0, false
	}
	return inv, logDet, true
}
