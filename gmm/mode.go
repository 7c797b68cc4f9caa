package gmm

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

// Mode selects what a score is.
type Mode int

const (
	// MDist is the Mahalanobis distance (x-μ)ᵗ·Σ⁻¹·(x-μ).
	MDist Mode = iota
	// LogDensity is log N(x; μ, Σ).
	LogDensity
	// NegLogDensity is -log N(x; μ, Σ).
	NegLogDensity
	// Density is N(x; μ, Σ).
	Density
)

var modeNames = [...]string{
	MDist:         "mdist",
	LogDensity:    "logdensity",
	NegLogDensity: "neglogdensity",
	Density:       "density",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the name returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return 0, errors.Errorf("gmm: unknown mode %q", s)
}

// Limits bounds the scores of each mode and supplies the value returned for
// Gaussians whose covariance class is singular.
type Limits struct {
	// MaxDist is the distance ceiling.
	MaxDist float64
	// LogFloor is the lowest log density.
	LogFloor float64
	// LogCeiling is the highest log density; +Inf leaves it unbounded.
	LogCeiling float64
}

// DefaultLimits returns a distance ceiling of 1e10, a log density floor of
// LogZero and no log density ceiling.
func DefaultLimits() Limits {
	return Limits{
		MaxDist:    1e10,
		LogFloor:   mathutil.LogZero,
		LogCeiling: math.Inf(1),
	}
}

// Validate checks that every mode has a non-empty range and that the
// sentinel values are finite. Only LogCeiling may be infinite.
func (l Limits) Validate() error {
	switch {
	case !mathutil.Finite(l.MaxDist) || l.MaxDist <= 0:
		return errors.Errorf("gmm: distance ceiling %g must be positive and finite", l.MaxDist)
	case !mathutil.Finite(l.LogFloor):
		return errors.Errorf("gmm: log density floor %g must be finite", l.LogFloor)
	case math.IsNaN(l.LogCeiling):
		return errors.New("gmm: log density ceiling must not be NaN")
	case l.LogFloor >= l.LogCeiling:
		return errors.Errorf("gmm: log density floor %g not below ceiling %g", l.LogFloor, l.LogCeiling)
	}
	return nil
}

// Sentinel returns the limit value reported for mode when a score cannot be
// computed.
func (l Limits) Sentinel(mode Mode) float64 {
	switch mode {
	case MDist:
		return l.MaxDist
	case LogDensity:
		return l.LogFloor
	case NegLogDensity:
		return -l.LogFloor
	}
	return 0
}

// Bounds returns the closed range scores of mode are clamped to.
func (l Limits) Bounds(mode Mode) (lo, hi float64) {
	switch mode {
	case MDist:
		return 0, l.MaxDist
	case LogDensity:
		return l.LogFloor, l.LogCeiling
	case NegLogDensity:
		return -l.LogCeiling, -l.LogFloor
	}
	return 0, math.Exp(l.LogCeiling)
}
