//go:build !darwin || !cgo

// Package blas wraps the two level-2/3 routines the mixture mapping needs.
package blas

// Dgemm performs C = alpha*op(A)*op(B) + beta*C in pure Go.
// All matrices are row-major. op(X) = X if trans=false, X^T if trans=true.
func Dgemm(transA, transB bool, m, n, k int,
	alpha float64, a []float64, lda int,
	b []float64, ldb int,
	beta float64, c []float64, ldc int) {

	for i := 0; i < m; i++ {
		crow := c[i*ldc : i*ldc+n]
		for j := range crow {
			sum := 0.0
			for p := 0; p < k; p++ {
				sum += elem(a, lda, transA, i, p) * elem(b, ldb, transB, p, j)
			}
			crow[j] = alpha*sum + beta*crow[j]
		}
	}
}

// Dgemv performs y = alpha*A*x + beta*y in pure Go. A is row-major (m x n).
func Dgemv(m, n int,
	alpha float64, a []float64, lda int,
	x []float64, beta float64, y []float64) {

	for i := 0; i < m; i++ {
		row := a[i*lda : i*lda+n]
		sum := 0.0
		for j, v := range row {
			sum += v * x[j]
		}
		y[i] = alpha*sum + beta*y[i]
	}
}

func elem(a []float64, ld int, trans bool, r, c int) float64 {
	if trans {
		return a[c*ld+r]
	}
	return a[r*ld+c]
}

// HasAccelerate returns false on non-darwin platforms.
func HasAccelerate() bool { return false }
