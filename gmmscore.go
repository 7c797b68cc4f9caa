// Package gmmscore scores feature vectors against Gaussian mixture models.
//
// It ties the building blocks together: covariance preparation (package
// covariance), the scoring model (package gmm), mixture mappers (package
// mixmap) and file/env configuration (package config).
package gmmscore

import (
	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/config"
	"github.com/matthias-wolff/gmmscore/covariance"
	"github.com/matthias-wolff/gmmscore/gmm"
	"github.com/matthias-wolff/gmmscore/internal/mathutil"
	"github.com/matthias-wolff/gmmscore/table"
)

// Scorer is a precalculated model together with its prepared covariances.
type Scorer[F gmm.Float] struct {
	*gmm.Model[F]
	Covariance *covariance.Prepared
}

// PrepareCovariances inverts the covariance classes of set and marks rank
// deficient ones. It returns the number of valid classes and does not log.
func PrepareCovariances(set covariance.Set, alreadyInverse bool, minDet float64) (*covariance.Prepared, int, error) {
	return covariance.Prepare(set, alreadyInverse, minDet)
}

// Options translates cfg into model options.
func Options(cfg *config.Config) []gmm.Option {
	e := cfg.Evaluation
	return []gmm.Option{
		gmm.WithSIMD(e.UseSIMD),
		gmm.WithLDL(e.UseLDL),
		gmm.WithLDLCoefficients(e.LDLCoefficients),
		gmm.WithLimits(gmm.Limits{
			MaxDist:    e.MaxDistance,
			LogFloor:   e.LogDensityFloor,
			LogCeiling: e.LogDensityCeiling,
		}),
		gmm.WithMaxCacheBytes(e.MaxCacheBytes),
	}
}

// Tables builds the parameter tables of a model from its means and prepared
// covariances. cmap ties Gaussians to classes; nil ties Gaussian k to class
// k. The off-diagonal table is omitted when every class is diagonal.
func Tables[F gmm.Float](means [][]float64, prep *covariance.Prepared, cmap []int) (gmm.Params[F], error) {
	var p gmm.Params[F]
	if len(means) == 0 {
		return p, errors.Wrap(gmm.ErrNotSetUp, "no means")
	}
	n, c := prep.Dim, prep.Classes()
	if cmap == nil {
		if len(means) != c {
			return p, errors.Wrapf(gmm.ErrNotSetUp, "%d means for %d untied classes", len(means), c)
		}
		cmap = make([]int, len(means))
		for i := range cmap {
			cmap[i] = i
		}
	}
	if len(cmap) != len(means) {
		return p, errors.Wrapf(gmm.ErrNotSetUp, "tying map has %d entries for %d means", len(cmap), len(means))
	}

	mean := table.NewDense[F](len(means), n, nil)
	ivar := table.NewDense[F](len(means), n, nil)
	for k, mu := range means {
		if len(mu) != n {
			return p, errors.Wrapf(gmm.ErrNotSetUp, "mean %d has %d components, want %d", k, len(mu), n)
		}
		if cmap[k] < 0 || cmap[k] >= c {
			return p, errors.Wrapf(gmm.ErrNotSetUp, "Gaussian %d tied to class %d of %d", k, cmap[k], c)
		}
		mathutil.Convert(mean.Row(k), mu)
		mathutil.Convert(ivar.Row(k), prep.Diagonal(cmap[k]))
	}
	p = gmm.Params[F]{
		Mean:   mean,
		IVar:   ivar,
		Det:    append([]float64(nil), prep.Det...),
		LogDet: append([]float64(nil), prep.LogDet...),
		CMap:   cmap,
	}
	icov := table.NewDense[F](c, mathutil.TriLen(n), nil)
	full := false
	for ci := 0; ci < c; ci++ {
		off := prep.OffDiagonal(ci)
		for _, v := range off {
			if v != 0 {
				full = true
				break
			}
		}
		mathutil.Convert(icov.Row(ci), off)
	}
	if full {
		p.ICov = icov
	}
	return p, nil
}

// NewScorer prepares the covariances of set, builds the model tables and
// precalculates a model configured by cfg. opts are applied after the
// options derived from cfg.
func NewScorer[F gmm.Float](cfg *config.Config, means [][]float64, set covariance.Set,
	cmap []int, alreadyInverse bool, opts ...gmm.Option) (*Scorer[F], error) {

	if cfg == nil {
		cfg = config.LoadDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prep, _, err := PrepareCovariances(set, alreadyInverse, cfg.Covariance.MinDeterminant)
	if err != nil {
		return nil, err
	}
	p, err := Tables[F](means, prep, cmap)
	if err != nil {
		return nil, err
	}
	m := gmm.New(p, append(Options(cfg), opts...)...)
	if bad := prep.Singular(); bad > 0 {
		m.Logger().Printf("covariance: %d of %d classes rank deficient", bad, prep.Classes())
	}
	if err := m.Precalculate(false); err != nil {
		return nil, err
	}
	return &Scorer[F]{Model: m, Covariance: prep}, nil
}
