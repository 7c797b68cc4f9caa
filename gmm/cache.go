package gmm

// termCache memoizes, per covariance class, the part of a score that only
// depends on the feature vector and the class: term C on the dense path,
// U·x on the ldl path. It is valid for one feature vector and must be reset
// before the next one.
type termCache[F Float] struct {
	n     int
	share []bool // class may reuse a cached value
	ready []bool // value of class computed for the current vector
	term  []F    // per class term C
	vec   []F    // per class U·x, classes×n
}

func newTermCache[F Float](share []bool, n int, vectors bool) *termCache[F] {
	c := &termCache[F]{
		n:     n,
		share: share,
		ready: make([]bool, len(share)),
	}
	if vectors {
		c.vec = make([]F, len(share)*n)
	} else {
		c.term = make([]F, len(share))
	}
	return c
}

// reset invalidates every class. It is a no-op on a nil cache.
func (c *termCache[F]) reset() {
	if c == nil {
		return
	}
	clear(c.ready)
}

// lookup returns the cached term C of class cls.
func (c *termCache[F]) lookup(cls int) (F, bool) {
	if c == nil || !c.share[cls] || !c.ready[cls] {
		return 0, false
	}
	return c.term[cls], true
}

// store records term C of class cls if the class is shareable.
func (c *termCache[F]) store(cls int, v F) {
	if c == nil || !c.share[cls] {
		return
	}
	c.term[cls] = v
	c.ready[cls] = true
}

// slot returns the U·x buffer of class cls and whether it already holds the
// value for the current vector. It returns nil for classes that may not
// share.
func (c *termCache[F]) slot(cls int) ([]F, bool) {
	if c == nil || !c.share[cls] {
		return nil, false
	}
	return c.vec[cls*c.n : (cls+1)*c.n], c.ready[cls]
}

func (c *termCache[F]) fill(cls int) {
	c.ready[cls] = true
}
