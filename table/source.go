package table

import (
	"math"

	"github.com/pkg/errors"
)

// Source is a feature matrix whose components may be of mixed type.
type Source interface {
	Records() int
	Components() int
	// Numeric reports whether component c holds numbers.
	Numeric(c int) bool
	// Float64 fetches component c of record r converted to float64.
	Float64(r, c int) float64
}

// RowSource is a homogeneously typed Source whose records can be copied in
// bulk.
type RowSource[F Float] interface {
	Source
	Row(r int) []F
}

// Column is one typed component of a Frame.
type Column interface {
	Len() int
	Numeric() bool
	Float64(i int) float64
}

// Float32Column is a column of float32 values.
type Float32Column []float32

func (c Float32Column) Len() int              { return len(c) }
func (c Float32Column) Numeric() bool         { return true }
func (c Float32Column) Float64(i int) float64 { return float64(c[i]) }

// Float64Column is a column of float64 values.
type Float64Column []float64

func (c Float64Column) Len() int              { return len(c) }
func (c Float64Column) Numeric() bool         { return true }
func (c Float64Column) Float64(i int) float64 { return c[i] }

// Int16Column is a column of int16 values, e.g. raw PCM-derived features.
type Int16Column []int16

func (c Int16Column) Len() int              { return len(c) }
func (c Int16Column) Numeric() bool         { return true }
func (c Int16Column) Float64(i int) float64 { return float64(c[i]) }

// Int32Column is a column of int32 values.
type Int32Column []int32

func (c Int32Column) Len() int              { return len(c) }
func (c Int32Column) Numeric() bool         { return true }
func (c Int32Column) Float64(i int) float64 { return float64(c[i]) }

// StringColumn is a non-numeric column such as a label.
type StringColumn []string

func (c StringColumn) Len() int            { return len(c) }
func (c StringColumn) Numeric() bool       { return false }
func (c StringColumn) Float64(int) float64 { return math.NaN() }

// Frame is a heterogeneous Source built from typed columns.
type Frame struct {
	cols []Column
	rows int
}

// ErrColumnLength is returned when the columns of a Frame differ in length.
var ErrColumnLength = errors.New("table: columns differ in length")

// NewFrame creates a Frame; all columns must have the same length.
func NewFrame(cols ...Column) (*Frame, error) {
	f := &Frame{cols: cols}
	for i, c := range cols {
		if i == 0 {
			f.rows = c.Len()
			continue
		}
		if c.Len() != f.rows {
			return nil, errors.Wrapf(ErrColumnLength, "column %d has %d records, want %d", i, c.Len(), f.rows)
		}
	}
	return f, nil
}

func (f *Frame) Records() int             { return f.rows }
func (f *Frame) Components() int          { return len(f.cols) }
func (f *Frame) Numeric(c int) bool       { return f.cols[c].Numeric() }
func (f *Frame) Float64(r, c int) float64 { return f.cols[c].Float64(r) }

// NumericComponents returns the indices of the numeric components of s in
// order.
func NumericComponents(s Source) []int {
	var idx []int
	for c := 0; c < s.Components(); c++ {
		if s.Numeric(c) {
			idx = append(idx, c)
		}
	}
	return idx
}
