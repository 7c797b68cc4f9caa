package gmm

import (
	"log"

	"github.com/pkg/errors"

	"github.com/matthias-wolff/gmmscore/covariance"
	"github.com/matthias-wolff/gmmscore/internal/simd"
	"github.com/matthias-wolff/gmmscore/table"
)

// Float is the element type a Model is instantiated for.
type Float = table.Float

// Params are the parameter tables of a model. They are owned by the caller
// and only read by the Model.
type Params[F Float] struct {
	// Mean holds one mean vector per Gaussian (K×N).
	Mean table.Matrix[F]
	// IVar holds the inverse variances, i.e. the diagonal of the inverse
	// covariance matrix, of each Gaussian (K×N).
	IVar table.Matrix[F]
	// ICov holds the strictly upper triangle of the inverse covariance
	// matrix of each covariance class, packed row-major (C×N(N-1)/2).
	// Nil for diagonal models.
	ICov table.Matrix[F]
	// Det holds det(Σ) of each covariance class; 0 marks a singular class.
	// It is kept in float64 whatever F is.
	Det []float64
	// LogDet optionally holds log det(Σ) of each class. When set it replaces
	// Det, so that determinants below the float64 range stay usable; -Inf
	// marks a singular class.
	LogDet []float64
	// CMap maps Gaussians to covariance classes. Nil ties nothing.
	CMap []int
}

// Mapper reduces the K Gaussian scores of one feature vector to M ≤ K
// mixture scores.
type Mapper[F Float] interface {
	Mixtures() int
	MapVector(scores, out []F)
}

// RowMapper is a Mapper that can map a whole row-major score matrix at
// once.
type RowMapper[F Float] interface {
	Mapper[F]
	MapRows(scores []F, rows int, out []F)
}

// Kernel names the distance kernel selected by Precalculate.
type Kernel int

const (
	KernelNone Kernel = iota
	KernelScalar
	KernelSIMD
	KernelLDL
)

func (k Kernel) String() string {
	switch k {
	case KernelScalar:
		return "scalar"
	case KernelSIMD:
		return "simd"
	case KernelLDL:
		return "ldl"
	}
	return "none"
}

type settings struct {
	simd          bool
	ldl           bool
	ldlCoeffs     int
	limits        Limits
	logger        *log.Logger
	maxCacheBytes int64
}

func defaultSettings() settings {
	return settings{
		limits:        DefaultLimits(),
		logger:        log.Default(),
		maxCacheBytes: 1 << 30,
	}
}

// Option configures a Model.
type Option func(*settings)

// WithSIMD enables the vectorized kernel on hosts that support it.
func WithSIMD(enabled bool) Option {
	return func(s *settings) { s.simd = enabled }
}

// WithLDL switches to the LDL-factorized kernel.
func WithLDL(enabled bool) Option {
	return func(s *settings) { s.ldl = enabled }
}

// WithLDLCoefficients keeps only the n largest-magnitude off-diagonal
// coefficients per row of the LDL factor. 0 keeps all of them.
func WithLDLCoefficients(n int) Option {
	return func(s *settings) { s.ldlCoeffs = n }
}

// WithLimits sets the score bounds and sentinel values.
func WithLimits(l Limits) Option {
	return func(s *settings) { s.limits = l }
}

// WithLogger sets the logger clamping warnings are written to.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxCacheBytes bounds the memory Precalculate may allocate for its
// caches. n <= 0 removes the bound.
func WithMaxCacheBytes(n int64) Option {
	return func(s *settings) { s.maxCacheBytes = n }
}

// class describes one covariance class.
type class struct {
	validity covariance.Validity
	members  int
}

// Model is a Gaussian mixture model prepared for scoring.
type Model[F Float] struct {
	p      Params[F]
	set    settings
	mapper Mapper[F]
	ops    *simd.Ops[F]

	n, k    int
	cmap    []int
	classes []class
	kernel  Kernel

	alpha []F // K: μᵗ·A·μ
	beta  []F // K×N: A·μ, or μ + U·μ on the ldl path
	delta []F // K: log normalization constant
	ldlU  []F // K×N(N-1)/2: strictly upper part of the unit upper factor
	ldlD  []F // K×N
	full  []F // K×N×N: dense inverse covariance for the simd kernel
	memo  *termCache[F]

	h, y []F // scratch
	ws   workspace[F]

	ready bool
}

// New creates a Model over p. The model must be precalculated before use.
func New[F Float](p Params[F], opts ...Option) *Model[F] {
	m := &Model[F]{
		p:   p,
		set: defaultSettings(),
		ops: simd.For[F](),
	}
	for _, opt := range opts {
		opt(&m.set)
	}
	return m
}

// SetMapper installs a mixture mapper applied by EvaluateBatch. A nil
// mapper removes it.
func (m *Model[F]) SetMapper(mp Mapper[F]) error {
	if mp == nil {
		m.mapper = nil
		return nil
	}
	k := 0
	if m.p.Mean != nil {
		k = m.p.Mean.Records()
	}
	if mix := mp.Mixtures(); mix <= 0 || mix > k {
		return errors.Wrapf(ErrMapper, "%d mixtures for %d Gaussians", mix, k)
	}
	if g, ok := mp.(interface{ Gaussians() int }); ok && g.Gaussians() != k {
		return errors.Wrapf(ErrMapper, "mapper reads %d Gaussians, model has %d", g.Gaussians(), k)
	}
	m.mapper = mp
	return nil
}

// Dim returns the feature dimension N, 0 before Precalculate.
func (m *Model[F]) Dim() int { return m.n }

// Gaussians returns the number of Gaussians K, 0 before Precalculate.
func (m *Model[F]) Gaussians() int { return m.k }

// Logger returns the logger warnings are written to.
func (m *Model[F]) Logger() *log.Logger { return m.set.logger }

// Limits returns the configured score bounds.
func (m *Model[F]) Limits() Limits { return m.set.limits }

// Info summarizes a Model.
type Info struct {
	Gaussians int
	Dim       int
	Classes   int
	Singular  int
	Kernel    Kernel
	// TermCache is true when the shared per-class cache is in use.
	TermCache       bool
	SIMD            string
	SIMDAccelerated bool
}

// Info reports the shape of the model and the selected kernel.
func (m *Model[F]) Info() Info {
	rt := simd.Info()
	info := Info{
		Gaussians:       m.k,
		Dim:             m.n,
		Classes:         len(m.classes),
		Kernel:          m.kernel,
		TermCache:       m.memo != nil,
		SIMD:            string(rt.Implementation),
		SIMDAccelerated: rt.Accelerated,
	}
	for _, c := range m.classes {
		if c.validity == covariance.Singular {
			info.Singular++
		}
	}
	return info
}
