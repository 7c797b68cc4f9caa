package gmmscore

import (
	"bytes"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/matthias-wolff/gmmscore/config"
	"github.com/matthias-wolff/gmmscore/covariance"
	"github.com/matthias-wolff/gmmscore/gmm"
	"github.com/matthias-wolff/gmmscore/mixmap"
	"github.com/matthias-wolff/gmmscore/table"
)

func TestNewScorerDiagonal(t *testing.T) {
	set := covariance.Diagonal([][]float64{{1, 1}})
	s, err := NewScorer[float64](nil, [][]float64{{0, 0}}, set, nil, false)
	require.NoError(t, err)
	assert.Zero(t, s.Covariance.Inverse[0].At(0, 1))

	got, err := s.Evaluate([]float64{0, 0}, 0, gmm.Density)
	require.NoError(t, err)
	assert.InDelta(t, 1/(2*math.Pi), got, 1e-12)

	got, err = s.Evaluate([]float64{1, 1}, 0, gmm.Density)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-1)/(2*math.Pi), got, 1e-12)
}

func TestNewScorerTiedFull(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{2, 0.5, 0.5, 1})
	set := covariance.Set{Matrices: []*mat.SymDense{cov}}
	means := [][]float64{{0, 0}, {1, 2}}

	cfg := config.LoadDefaults()
	cfg.Evaluation.Precision = "float32"
	cfg.Evaluation.UseLDL = true
	s, err := NewScorer[float32](cfg, means, set, []int{0, 0}, false)
	require.NoError(t, err)
	info := s.Info()
	assert.Equal(t, gmm.KernelLDL, info.Kernel)
	assert.True(t, info.TermCache)

	// Σ⁻¹ = [1 -0.5; -0.5 2] / 1.75
	d, err := s.Evaluate([]float32{1, 1}, 0, gmm.MDist)
	require.NoError(t, err)
	assert.InDelta(t, 2/1.75, float64(d), 1e-5)
}

func TestNewScorerAlreadyInverse(t *testing.T) {
	inv := mat.NewSymDense(2, []float64{4, 0, 0, 4})
	s, err := NewScorer[float64](nil, [][]float64{{0, 0}}, covariance.Set{Matrices: []*mat.SymDense{inv}}, nil, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/16, s.Covariance.Det[0], 1e-12)

	d, err := s.Evaluate([]float64{1, 0}, 0, gmm.MDist)
	require.NoError(t, err)
	assert.InDelta(t, 4, d, 1e-12)
}

func TestNewScorerSingularClass(t *testing.T) {
	set := covariance.Set{Matrices: []*mat.SymDense{mat.NewSymDense(2, []float64{1, 1, 1, 1})}}
	cfg := config.LoadDefaults()
	cfg.Evaluation.MaxDistance = 1234
	var logs bytes.Buffer
	s, err := NewScorer[float64](cfg, [][]float64{{0, 0}, {3, 3}}, set, []int{0, 0}, false,
		gmm.WithLogger(log.New(&logs, "", 0)))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Info().Singular)
	assert.Equal(t, "covariance: 1 of 1 classes rank deficient\n", logs.String())

	for k := 0; k < 2; k++ {
		d, err := s.Evaluate([]float64{0.5, -0.5}, k, gmm.MDist)
		require.NoError(t, err)
		assert.Equal(t, 1234.0, d)
	}
}

func TestNewScorerSmallDeterminant(t *testing.T) {
	tests := []struct {
		name string
		dim  int
	}{
		// det(Σ) ≈ 1.8e-51, below the float32 range
		{"below float32", 39},
		// det(Σ) ≈ 1e-390, below the float64 range
		{"below float64", 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variance := make([]float64, tt.dim)
			for i := range variance {
				variance[i] = 0.05
			}
			means := [][]float64{make([]float64, tt.dim)}
			set := covariance.Diagonal([][]float64{variance})
			want := -float64(tt.dim)/2*math.Log(2*math.Pi) - float64(tt.dim)/2*math.Log(0.05)

			s32, err := NewScorer[float32](nil, means, set, nil, false)
			require.NoError(t, err)
			assert.Equal(t, 0, s32.Info().Singular)
			got32, err := s32.Evaluate(make([]float32, tt.dim), 0, gmm.LogDensity)
			require.NoError(t, err)
			assert.InDelta(t, want, float64(got32), 1e-3)

			s64, err := NewScorer[float64](nil, means, set, nil, false)
			require.NoError(t, err)
			assert.Equal(t, 0, s64.Info().Singular)
			got64, err := s64.Evaluate(make([]float64, tt.dim), 0, gmm.LogDensity)
			require.NoError(t, err)
			assert.InDelta(t, want, got64, 1e-9)
		})
	}
}

func TestNewScorerErrors(t *testing.T) {
	set := covariance.Diagonal([][]float64{{1, 1}})

	cfg := config.LoadDefaults()
	cfg.Evaluation.Precision = "half"
	_, err := NewScorer[float64](cfg, [][]float64{{0, 0}}, set, nil, false)
	assert.Error(t, err)

	_, err = NewScorer[float64](nil, nil, set, nil, false)
	assert.ErrorIs(t, err, gmm.ErrNotSetUp)
	_, err = NewScorer[float64](nil, [][]float64{{0}}, set, nil, false)
	assert.ErrorIs(t, err, gmm.ErrNotSetUp)
	_, err = NewScorer[float64](nil, [][]float64{{0, 0}, {1, 1}}, set, nil, false)
	assert.ErrorIs(t, err, gmm.ErrNotSetUp)
	_, err = NewScorer[float64](nil, [][]float64{{0, 0}}, set, []int{1}, false)
	assert.ErrorIs(t, err, gmm.ErrNotSetUp)
	_, err = NewScorer[float64](nil, [][]float64{{0, 0}}, covariance.Set{}, nil, false)
	assert.ErrorIs(t, err, covariance.ErrEmptySet)

	cfg = config.LoadDefaults()
	cfg.Evaluation.MaxCacheBytes = 8
	_, err = NewScorer[float64](cfg, [][]float64{{0, 0}}, set, nil, false)
	assert.ErrorIs(t, err, gmm.ErrOutOfMemory)
}

func TestTablesOmitDiagonalOffDiagonals(t *testing.T) {
	prep, _, err := PrepareCovariances(covariance.Diagonal([][]float64{{1, 2}, {3, 4}}), false, 0)
	require.NoError(t, err)
	p, err := Tables[float64]([][]float64{{0, 0}, {1, 1}, {2, 2}}, prep, []int{0, 1, 1})
	require.NoError(t, err)
	assert.Nil(t, p.ICov)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 0.25}, p.IVar.Row(2), 1e-15)
	assert.Equal(t, []int{0, 1, 1}, p.CMap)
}

func TestOptions(t *testing.T) {
	cfg := config.LoadDefaults()
	cfg.Evaluation.LogDensityCeiling = 3
	m := gmm.New(gmm.Params[float64]{}, Options(cfg)...)
	assert.Equal(t, 3.0, m.Limits().LogCeiling)
	assert.Equal(t, cfg.Evaluation.MaxDistance, m.Limits().MaxDist)
}

func TestBatchWithMixtureMappers(t *testing.T) {
	set := covariance.Diagonal([][]float64{{1, 1}, {4, 4}})
	means := [][]float64{{0, 0}, {2, 2}, {-2, 0}}
	var logs bytes.Buffer
	s, err := NewScorer[float64](nil, means, set, []int{0, 1, 1}, false,
		gmm.WithLogger(log.New(&logs, "", 0)))
	require.NoError(t, err)

	x := table.FromRows([][]float64{{0, 0}, {1, 1}, {2, -1}})
	raw, err := s.EvaluateBatch(x, nil, gmm.LogDensity)
	require.NoError(t, err)

	lin, err := mixmap.NewLinear[float64]([][]float64{{1, 0, 0}, {0, 0.5, 0.5}})
	require.NoError(t, err)
	require.NoError(t, s.SetMapper(lin))
	res, err := s.EvaluateBatch(x, nil, gmm.LogDensity)
	require.NoError(t, err)
	require.Equal(t, 2, res.Scores.Components())
	for r := 0; r < 3; r++ {
		assert.InDelta(t, raw.Scores.At(r, 0), res.Scores.At(r, 0), 1e-12)
		assert.InDelta(t, (raw.Scores.At(r, 1)+raw.Scores.At(r, 2))/2, res.Scores.At(r, 1), 1e-12)
	}

	ls, err := mixmap.NewLogSum[float64](3, [][]int{{0}, {1, 2}}, [][]float64{{1}, {0.3, 0.7}})
	require.NoError(t, err)
	require.NoError(t, s.SetMapper(ls))
	res, err = s.EvaluateBatch(x, nil, gmm.LogDensity)
	require.NoError(t, err)
	for r := 0; r < 3; r++ {
		want := math.Log(0.3*math.Exp(raw.Scores.At(r, 1)) + 0.7*math.Exp(raw.Scores.At(r, 2)))
		assert.InDelta(t, want, res.Scores.At(r, 1), 1e-9)
	}
	assert.Empty(t, logs.String())

	wrong, err := mixmap.NewLinear[float64]([][]float64{{1, 1}})
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetMapper(wrong), gmm.ErrMapper)
}
