package gmm

import (
	"bytes"
	"log"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/matthias-wolff/gmmscore/table"
)

// sumMapper sums consecutive pairs of Gaussian scores.
type sumMapper struct{ mix int }

func (s sumMapper) Mixtures() int { return s.mix }

func (s sumMapper) MapVector(scores, out []float64) {
	for i := range out[:s.mix] {
		out[i] = scores[2*i] + scores[2*i+1]
	}
}

// rowSumMapper is sumMapper with a bulk path.
type rowSumMapper struct {
	sumMapper
	calls int
}

func (s *rowSumMapper) MapRows(scores []float64, rows int, out []float64) {
	s.calls++
	k := len(scores) / rows
	for r := 0; r < rows; r++ {
		s.MapVector(scores[r*k:(r+1)*k], out[r*s.mix:(r+1)*s.mix])
	}
}

func batchModel(t *testing.T, opts ...Option) (*Model[float64], [][]float64, []*mat.SymDense) {
	rng := rand.New(rand.NewSource(31))
	const n = 3
	cov := []*mat.SymDense{randomSPD(rng, n), randomSPD(rng, n)}
	means := [][]float64{randomVec(rng, n, 1), randomVec(rng, n, 1), randomVec(rng, n, 1), randomVec(rng, n, 1)}
	p := build[float64](t, means, cov, []int{0, 1, 0, 1}, true)
	m := New(p, opts...)
	require.NoError(t, m.Precalculate(false))
	return m, means, cov
}

func TestEvaluateBatchDense(t *testing.T) {
	m, means, cov := batchModel(t)
	x := table.FromRows([][]float64{
		{0, 0, 0},
		{1, -1, 0.5},
		{2, 0, -1},
	})
	res, err := m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)
	assert.Empty(t, res.Invalid)
	require.Equal(t, 3, res.Scores.Records())
	require.Equal(t, 4, res.Scores.Components())

	cmap := []int{0, 1, 0, 1}
	for r := 0; r < 3; r++ {
		for k := 0; k < 4; k++ {
			want := mahalanobis(x.Row(r), means[k], cov[cmap[k]])
			assert.InEpsilon(t, want, res.Scores.At(r, k), 1e-9, "(%d,%d)", r, k)

			single, err := m.Evaluate(x.Row(r), k, MDist)
			require.NoError(t, err)
			assert.Equal(t, single, res.Scores.At(r, k))
		}
	}
}

func TestEvaluateBatchFrame(t *testing.T) {
	m, _, _ := batchModel(t)
	dense := table.FromRows([][]float64{
		{1, -2, 3},
		{0, 4, -1},
	})
	frame, err := table.NewFrame(
		table.StringColumn{"a", "b"},
		table.Int16Column{1, 0},
		table.Float32Column{-2, 4},
		table.StringColumn{"c", "d"},
		table.Int32Column{3, -1},
		table.Float64Column{99, 99},
	)
	require.NoError(t, err)

	want, err := m.EvaluateBatch(dense, nil, LogDensity)
	require.NoError(t, err)
	got, err := m.EvaluateBatch(frame, nil, LogDensity)
	require.NoError(t, err)
	assert.Equal(t, want.Scores.Data(), got.Scores.Data())
}

func TestEvaluateBatchFloat32Source(t *testing.T) {
	m, _, _ := batchModel(t)
	x32 := table.FromRows([][]float32{{0.5, 0.25, -1}})
	x64 := table.FromRows([][]float64{{0.5, 0.25, -1}})

	a, err := m.EvaluateBatch(x32, nil, MDist)
	require.NoError(t, err)
	b, err := m.EvaluateBatch(x64, nil, MDist)
	require.NoError(t, err)
	assert.Equal(t, b.Scores.Data(), a.Scores.Data())
}

func TestEvaluateBatchMask(t *testing.T) {
	m, _, _ := batchModel(t)
	x := table.FromRows([][]float64{{0, 0, 0}, {1, 1, 1}})
	mask := table.NewMask(2, 4)
	mask.Set(0, 1, false)
	mask.Set(1, 3, false)

	for _, mode := range []Mode{MDist, LogDensity, NegLogDensity, Density} {
		full, err := m.EvaluateBatch(x, nil, mode)
		require.NoError(t, err)
		res, err := m.EvaluateBatch(x, mask, mode)
		require.NoError(t, err)
		sentinel := m.Limits().Sentinel(mode)
		for r := 0; r < 2; r++ {
			for k := 0; k < 4; k++ {
				if mask.At(r, k) {
					assert.Equal(t, full.Scores.At(r, k), res.Scores.At(r, k))
				} else {
					assert.Equal(t, sentinel, res.Scores.At(r, k), "%s (%d,%d)", mode, r, k)
				}
			}
		}
	}
}

func TestEvaluateBatchErrors(t *testing.T) {
	m := New(Params[float64]{})
	_, err := m.EvaluateBatch(table.NewDense[float64](1, 3, nil), nil, MDist)
	assert.ErrorIs(t, err, ErrNotPrecalculated)

	m, _, _ = batchModel(t)
	_, err = m.EvaluateBatch(table.NewDense[float64](1, 3, nil), table.NewMask(1, 3), MDist)
	assert.ErrorIs(t, err, ErrMask)
	_, err = m.EvaluateBatch(table.NewDense[float64](1, 3, nil), table.NewMask(2, 4), MDist)
	assert.ErrorIs(t, err, ErrMask)

	_, err = m.EvaluateBatch(table.NewDense[float64](1, 2, nil), nil, MDist)
	assert.ErrorIs(t, err, ErrDimension)

	frame, ferr := table.NewFrame(table.Float64Column{1}, table.StringColumn{"x"}, table.Float64Column{2})
	require.NoError(t, ferr)
	_, err = m.EvaluateBatch(frame, nil, MDist)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestEvaluateBatchMapper(t *testing.T) {
	m, _, _ := batchModel(t)
	x := table.FromRows([][]float64{{0, 0, 0}, {1, 2, 3}, {-1, 0, 1}})
	raw, err := m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)

	check := func(res *Result[float64]) {
		require.Equal(t, 3, res.Scores.Records())
		require.Equal(t, 2, res.Scores.Components())
		for r := 0; r < 3; r++ {
			for i := 0; i < 2; i++ {
				want := raw.Scores.At(r, 2*i) + raw.Scores.At(r, 2*i+1)
				assert.InDelta(t, want, res.Scores.At(r, i), 1e-12)
			}
		}
	}

	require.NoError(t, m.SetMapper(sumMapper{mix: 2}))
	res, err := m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)
	check(res)

	rm := &rowSumMapper{sumMapper: sumMapper{mix: 2}}
	require.NoError(t, m.SetMapper(rm))
	res, err = m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)
	check(res)
	assert.Equal(t, 1, rm.calls)
}

func TestEvaluateBatchClampsOncePerColumn(t *testing.T) {
	var buf bytes.Buffer
	limits := DefaultLimits()
	limits.LogCeiling = -2 // below the peak log density of a standard normal
	p := build[float64](t,
		[][]float64{{0, 0}, {0, 0}, {50, 50}},
		[]*mat.SymDense{identity(2)}, []int{0, 0, 0}, false)
	m := New(p, WithLimits(limits), WithLogger(log.New(&buf, "", 0)))
	require.NoError(t, m.Precalculate(false))

	x := table.FromRows([][]float64{{0, 0}, {0.1, 0}, {0, 0.1}})
	res, err := m.EvaluateBatch(x, nil, LogDensity)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, res.Invalid)
	for r := 0; r < 3; r++ {
		assert.Equal(t, -2.0, res.Scores.At(r, 0))
		assert.Equal(t, -2.0, res.Scores.At(r, 1))
		assert.Less(t, res.Scores.At(r, 2), -2.0)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "column 0: 3 logdensity")
	assert.Contains(t, lines[1], "column 1: 3 logdensity")
}

func TestEvaluateBatchDistanceCeiling(t *testing.T) {
	var buf bytes.Buffer
	limits := DefaultLimits()
	limits.MaxDist = 10
	p := build[float64](t, [][]float64{{0}}, []*mat.SymDense{identity(1)}, nil, false)
	m := New(p, WithLimits(limits), WithLogger(log.New(&buf, "", 0)))
	require.NoError(t, m.Precalculate(false))

	x := table.FromRows([][]float64{{1}, {100}, {math.Inf(1)}})
	res, err := m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 10, 10}, res.Scores.Data())
	assert.Equal(t, []int{0}, res.Invalid)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestClampReplacesNaN(t *testing.T) {
	var buf bytes.Buffer
	p := build[float64](t, [][]float64{{0}}, []*mat.SymDense{identity(1)}, nil, false)
	m := New(p, WithLogger(log.New(&buf, "", 0)))
	require.NoError(t, m.Precalculate(false))

	out := table.FromRows([][]float64{{math.NaN()}, {-1}})
	invalid := m.clamp(out, LogDensity)
	assert.Equal(t, []int{0}, invalid)
	assert.Equal(t, DefaultLimits().LogFloor, out.At(0, 0))
	assert.Equal(t, -1.0, out.At(1, 0))
	assert.Contains(t, buf.String(), "column 0: 1 logdensity")
}

func TestWorkspaceReused(t *testing.T) {
	m, _, _ := batchModel(t)
	x := table.FromRows([][]float64{{0, 0, 0}})
	_, err := m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)
	buf := m.ws.x
	_, err = m.EvaluateBatch(x, nil, MDist)
	require.NoError(t, err)
	assert.Same(t, &buf[0], &m.ws.x[0])
}

func BenchmarkEvaluateBatch(b *testing.B) {
	rng := rand.New(rand.NewSource(33))
	const n, k, rows = 24, 32, 100
	var means [][]float64
	cmap := make([]int, k)
	for i := 0; i < k; i++ {
		means = append(means, randomVec(rng, n, 1))
		cmap[i] = i % 4
	}
	var cov []*mat.SymDense
	for c := 0; c < 4; c++ {
		cov = append(cov, randomSPD(rng, n))
	}
	p := build[float64](b, means, cov, cmap, true)
	m := New(p)
	if err := m.Precalculate(false); err != nil {
		b.Fatal(err)
	}
	data := make([][]float64, rows)
	for i := range data {
		data[i] = randomVec(rng, n, 1)
	}
	x := table.FromRows(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.EvaluateBatch(x, nil, NegLogDensity); err != nil {
			b.Fatal(err)
		}
	}
}
