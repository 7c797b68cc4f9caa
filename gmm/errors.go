package gmm

import "github.com/pkg/errors"

var (
	// ErrNotSetUp is returned by Precalculate when the parameter tables are
	// missing or inconsistent.
	ErrNotSetUp = errors.New("gmm: not set up")
	// ErrOutOfMemory is returned by Precalculate when the caches do not fit
	// the configured budget. The model is left empty.
	ErrOutOfMemory = errors.New("gmm: out of memory")
	// ErrNotPrecalculated is returned when scoring before Precalculate.
	ErrNotPrecalculated = errors.New("gmm: not precalculated")
	// ErrDimension is returned for feature vectors of the wrong size.
	ErrDimension = errors.New("gmm: feature dimension mismatch")
	// ErrGaussianIndex is returned for an out-of-range Gaussian index.
	ErrGaussianIndex = errors.New("gmm: Gaussian index out of range")
	// ErrMask is returned when a batch mask does not match the batch shape.
	ErrMask = errors.New("gmm: mask shape mismatch")
	// ErrMapper is returned for a mixture mapper that maps to more
	// mixtures than there are Gaussians.
	ErrMapper = errors.New("gmm: invalid mixture mapper")
)
