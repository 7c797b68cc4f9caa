// Package simd provides the vectorized building blocks of the dense
// full-covariance scoring kernel and the host capability check that decides
// whether that kernel is used.
package simd

import (
	"github.com/viterin/vek"
	"github.com/viterin/vek/vek32"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

// Implementation names the active SIMD backend.
type Implementation string

const (
	// ImplGeneric indicates the pure Go fallback.
	ImplGeneric Implementation = "generic"
	// ImplAVX2 indicates x86 AVX2+FMA.
	ImplAVX2 Implementation = "avx2"
	// ImplNEON indicates ARM NEON.
	ImplNEON Implementation = "neon"
)

// RuntimeInfo describes the SIMD support detected on the host.
type RuntimeInfo struct {
	Implementation Implementation
	// Features lists the CPU features reported by the vector library.
	Features []string
	// Accelerated is true when the vectorized kernel should be preferred.
	Accelerated bool
}

// Ops bundles the vector primitives for one element type. The function
// fields are bound once per type so generic callers pay no type switch in
// the hot loop.
type Ops[F mathutil.Float] struct {
	// Dot returns sum(a[i]*b[i]); a and b must have equal length.
	Dot func(a, b []F) F
	// Sub stores a-b in dst.
	Sub func(dst, a, b []F)
	// Rows is the number of row partials Bilinear sums pairwise per block.
	Rows int
}

var (
	ops32 = Ops[float32]{
		Dot:  vek32.Dot,
		Sub:  func(dst, a, b []float32) { vek32.Sub_Into(dst, a, b) },
		Rows: 4,
	}
	ops64 = Ops[float64]{
		Dot:  vek.Dot,
		Sub:  func(dst, a, b []float64) { vek.Sub_Into(dst, a, b) },
		Rows: 2,
	}
)

// For returns the Ops for F. It panics for types whose underlying
// representation is not float32 or float64 exactly.
func For[F mathutil.Float]() *Ops[F] {
	var zero F
	switch any(zero).(type) {
	case float32:
		if o, ok := any(&ops32).(*Ops[F]); ok {
			return o
		}
	case float64:
		if o, ok := any(&ops64).(*Ops[F]); ok {
			return o
		}
	}
	panic("simd: unsupported element type")
}

// Info returns information about the SIMD support on this host.
func Info() RuntimeInfo {
	return runtimeInfo()
}

// Accelerated reports whether the host passed the capability check.
func Accelerated() bool {
	return runtimeInfo().Accelerated
}
