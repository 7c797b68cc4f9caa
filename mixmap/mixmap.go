// Package mixmap reduces per-Gaussian scores to per-mixture scores.
//
// Both mappers satisfy gmm.Mapper; Linear also satisfies gmm.RowMapper and
// maps a whole score matrix with one matrix product. Mappers keep scratch
// buffers and are not safe for concurrent use.
package mixmap

import (
	"math"

	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/internal/blas"
	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

var (
	// ErrEmpty is returned for a mapper without mixtures or Gaussians.
	ErrEmpty = errors.New("mixmap: empty mapping")
	// ErrShape is returned for ragged weight tables.
	ErrShape = errors.New("mixmap: shape mismatch")
	// ErrIndex is returned for member indices outside the model.
	ErrIndex = errors.New("mixmap: Gaussian index out of range")
)

// Linear maps scores with an M×K weight matrix: out = W·scores.
type Linear[F mathutil.Float] struct {
	m, k int
	w    []float64 // row-major M×K
	in   []float64
	out  []float64
}

// NewLinear creates a Linear mapper from one weight row per mixture.
func NewLinear[F mathutil.Float](weights [][]float64) (*Linear[F], error) {
	if len(weights) == 0 || len(weights[0]) == 0 {
		return nil, ErrEmpty
	}
	m, k := len(weights), len(weights[0])
	w := make([]float64, 0, m*k)
	for i, row := range weights {
		if len(row) != k {
			return nil, errors.Wrapf(ErrShape, "row %d has %d weights, want %d", i, len(row), k)
		}
		w = append(w, row...)
	}
	return &Linear[F]{m: m, k: k, w: w}, nil
}

// Mixtures returns M.
func (l *Linear[F]) Mixtures() int { return l.m }

// Gaussians returns K.
func (l *Linear[F]) Gaussians() int { return l.k }

// MapVector writes the M mixture scores of one row of K Gaussian scores.
func (l *Linear[F]) MapVector(scores, out []F) {
	l.in = mathutil.Grow(l.in, l.k)
	l.out = mathutil.Grow(l.out, l.m)
	mathutil.Convert(l.in, scores[:l.k])
	blas.Dgemv(l.m, l.k, 1, l.w, l.k, l.in, 0, l.out)
	mathutil.Convert(out[:l.m], l.out)
}

// MapRows maps a row-major rows×K score matrix into a rows×M one.
func (l *Linear[F]) MapRows(scores []F, rows int, out []F) {
	if rows == 0 {
		return
	}
	l.in = mathutil.Grow(l.in, rows*l.k)
	l.out = mathutil.Grow(l.out, rows*l.m)
	mathutil.Convert(l.in, scores[:rows*l.k])
	blas.Dgemm(false, true, rows, l.m, l.k,
		1, l.in, l.k,
		l.w, l.k,
		0, l.out, l.m)
	mathutil.Convert(out[:rows*l.m], l.out)
}

// LogSum combines log densities: out[i] = log Σ_j w_ij·exp(score_j) over
// the members j of mixture i.
type LogSum[F mathutil.Float] struct {
	k       int
	members [][]int
	logw    [][]float64
}

// NewLogSum creates a LogSum mapper over a model of k Gaussians. members
// lists the Gaussians of each mixture and weights their linear mixture
// weights; a zero weight excludes the member.
func NewLogSum[F mathutil.Float](k int, members [][]int, weights [][]float64) (*LogSum[F], error) {
	if k <= 0 || len(members) == 0 {
		return nil, ErrEmpty
	}
	if len(weights) != len(members) {
		return nil, errors.Wrapf(ErrShape, "%d weight rows for %d mixtures", len(weights), len(members))
	}
	logw := make([][]float64, len(members))
	for i, mem := range members {
		if len(mem) == 0 {
			return nil, errors.Wrapf(ErrEmpty, "mixture %d has no members", i)
		}
		if len(weights[i]) != len(mem) {
			return nil, errors.Wrapf(ErrShape, "mixture %d: %d weights for %d members", i, len(weights[i]), len(mem))
		}
		logw[i] = make([]float64, len(mem))
		for j, g := range mem {
			if g < 0 || g >= k {
				return nil, errors.Wrapf(ErrIndex, "mixture %d: Gaussian %d of %d", i, g, k)
			}
			switch w := weights[i][j]; {
			case w < 0 || math.IsNaN(w):
				return nil, errors.Wrapf(ErrShape, "mixture %d: weight %g", i, w)
			case w == 0:
				logw[i][j] = mathutil.LogZero
			default:
				logw[i][j] = math.Log(w)
			}
		}
	}
	return &LogSum[F]{k: k, members: members, logw: logw}, nil
}

// Mixtures returns the number of mixtures.
func (s *LogSum[F]) Mixtures() int { return len(s.members) }

// Gaussians returns the number of Gaussians the mapper reads.
func (s *LogSum[F]) Gaussians() int { return s.k }

// MapVector expects log densities and writes mixture log densities.
func (s *LogSum[F]) MapVector(scores, out []F) {
	for i, mem := range s.members {
		acc := mathutil.LogZero
		for j, g := range mem {
			acc = mathutil.LogAdd(acc, s.logw[i][j]+float64(scores[g]))
		}
		out[i] = F(acc)
	}
}
