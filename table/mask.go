package table

// Mask selects which (record, Gaussian) pairs of a batch are evaluated.
// A false entry excludes the pair.
type Mask struct {
	rows, cols int
	bits       []bool
}

// NewMask creates a rows x cols mask with every pair selected.
func NewMask(rows, cols int) *Mask {
	m := &Mask{rows: rows, cols: cols, bits: make([]bool, rows*cols)}
	for i := range m.bits {
		m.bits[i] = true
	}
	return m
}

func (m *Mask) Records() int    { return m.rows }
func (m *Mask) Components() int { return m.cols }

// At reports whether pair (r, c) is selected.
func (m *Mask) At(r, c int) bool { return m.bits[r*m.cols+c] }

// Set selects or excludes pair (r, c).
func (m *Mask) Set(r, c int, v bool) { m.bits[r*m.cols+c] = v }
