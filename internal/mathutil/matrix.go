package mathutil

// Float is the set of floating-point element types the scoring code is
// instantiated for.
type Float interface {
	~float32 | ~float64
}

// TriLen returns the number of strictly-upper-triangle elements of an n×n
// matrix, the length of one packed inverse-covariance record.
func TriLen(n int) int {
	return n * (n - 1) / 2
}

// TriIndex returns the packed offset of element (i, j), i < j, of an n×n
// matrix stored as its strictly upper triangle in row-major order:
// (0,1) (0,2) … (0,n-1) (1,2) … (n-2,n-1).
func TriIndex(n, i, j int) int {
	return i*n - i*(i+1)/2 + (j - i - 1)
}

// DotVec returns the dot product of a and b.
func DotVec[F Float](a, b []F) F {
	var sum F
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Grow returns buf resliced to n elements, reallocating when the capacity
// is too small. Contents are not preserved across a reallocation.
func Grow[F Float](buf []F, n int) []F {
	if cap(buf) < n {
		return make([]F, n)
	}
	return buf[:n]
}

// Convert copies src into dst, converting the element type.
func Convert[D, S Float](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}
