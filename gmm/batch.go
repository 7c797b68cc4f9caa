package gmm

import (
	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
	"github.com/matthias-wolff/gmmscore/table"
)

// workspace holds the buffers reused across EvaluateBatch calls.
type workspace[F Float] struct {
	x   []F // current feature vector
	mix []F // mixture scores of one row
}

func (ws *workspace[F]) ensure(n, mix int) {
	ws.x = mathutil.Grow(ws.x, n)
	ws.mix = mathutil.Grow(ws.mix, mix)
}

// Result is the output of EvaluateBatch.
type Result[F Float] struct {
	// Scores holds one row per feature vector and one column per Gaussian,
	// or per mixture when a mapper is installed.
	Scores *table.Dense[F]
	// Invalid lists the columns in which at least one score was clamped.
	Invalid []int
}

// EvaluateBatch scores every record of x against every Gaussian.
//
// The first N numeric components of each record form the feature vector;
// homogeneously typed sources of the model's element type are copied in
// bulk. Pairs excluded by mask receive the sentinel value of mode. When a
// mapper is installed the Gaussian scores of each row are reduced to
// mixture scores. Finally every score is clamped into the bounds of mode,
// and each column that needed clamping is reported once.
func (m *Model[F]) EvaluateBatch(x table.Source, mask *table.Mask, mode Mode) (*Result[F], error) {
	if !m.ready {
		return nil, ErrNotPrecalculated
	}
	rows := x.Records()
	if mask != nil && (mask.Records() != rows || mask.Components() != m.k) {
		return nil, errors.Wrapf(ErrMask, "mask is %dx%d, want %dx%d",
			mask.Records(), mask.Components(), rows, m.k)
	}

	rs, bulk := x.(table.RowSource[F])
	var cols []int
	if bulk {
		if x.Components() < m.n {
			return nil, errors.Wrapf(ErrDimension, "source has %d components, want %d", x.Components(), m.n)
		}
	} else {
		cols = table.NumericComponents(x)
		if len(cols) < m.n {
			return nil, errors.Wrapf(ErrDimension, "source has %d numeric components, want %d", len(cols), m.n)
		}
		cols = cols[:m.n]
	}

	mix := 0
	if m.mapper != nil {
		mix = m.mapper.Mixtures()
	}
	m.ws.ensure(m.n, mix)
	buf := m.ws.x
	sentinel := F(m.set.limits.Sentinel(mode))

	out := table.NewDense[F](rows, m.k, nil)
	for r := 0; r < rows; r++ {
		m.memo.reset()
		if bulk {
			copy(buf, rs.Row(r)[:m.n])
		} else {
			for j, c := range cols {
				buf[j] = F(x.Float64(r, c))
			}
		}
		row := out.Row(r)
		for k := range row {
			if mask != nil && !mask.At(r, k) {
				row[k] = sentinel
				continue
			}
			row[k] = m.score(buf, k, mode)
		}
	}

	if m.mapper != nil {
		out = m.mapScores(out)
	}
	return &Result[F]{
		Scores:  out,
		Invalid: m.clamp(out, mode),
	}, nil
}

// mapScores reduces the Gaussian scores to mixture scores and drops the
// trailing columns.
func (m *Model[F]) mapScores(scores *table.Dense[F]) *table.Dense[F] {
	rows := scores.Records()
	mix := m.mapper.Mixtures()
	if rm, ok := m.mapper.(RowMapper[F]); ok {
		out := table.NewDense[F](rows, mix, nil)
		rm.MapRows(scores.Data(), rows, out.Data())
		return out
	}
	tmp := m.ws.mix
	for r := 0; r < rows; r++ {
		row := scores.Row(r)
		m.mapper.MapVector(row, tmp)
		copy(row[:mix], tmp)
	}
	return scores.Columns(mix)
}
