// Package table holds the record × component storage the scorer reads its
// parameters and feature vectors from.
package table

import (
	"fmt"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

// Float is the element type constraint of numeric tables.
type Float = mathutil.Float

// Matrix is random-access storage keyed by (record, component).
type Matrix[F Float] interface {
	Records() int
	Components() int
	// At fetches one element.
	At(r, c int) F
	// Row addresses the components of record r in place. Callers must not
	// retain or modify the slice unless they own the table.
	Row(r int) []F
}

// Dense is a row-major Matrix backed by a single slice.
type Dense[F Float] struct {
	rows, cols int
	data       []F
}

// NewDense creates a rows x cols table. A nil data slice is allocated and
// zeroed; otherwise data is used as backing storage and must hold
// rows*cols elements.
func NewDense[F Float](rows, cols int, data []F) *Dense[F] {
	if data == nil {
		data = make([]F, rows*cols)
	}
	if len(data) != rows*cols {
		panic(fmt.Sprintf("table: data length %d does not match %dx%d", len(data), rows, cols))
	}
	return &Dense[F]{rows: rows, cols: cols, data: data}
}

// FromRows copies a slice-of-rows matrix into a Dense table. All rows must
// have the same length.
func FromRows[F Float](rows [][]F) *Dense[F] {
	if len(rows) == 0 {
		return NewDense[F](0, 0, nil)
	}
	cols := len(rows[0])
	d := NewDense[F](len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			panic(fmt.Sprintf("table: row %d has %d components, want %d", i, len(row), cols))
		}
		copy(d.data[i*cols:(i+1)*cols], row)
	}
	return d
}

// Records returns the number of rows.
func (d *Dense[F]) Records() int { return d.rows }

// Components returns the number of columns.
func (d *Dense[F]) Components() int { return d.cols }

// At returns element (r, c).
func (d *Dense[F]) At(r, c int) F { return d.data[r*d.cols+c] }

// Set stores v at (r, c).
func (d *Dense[F]) Set(r, c int, v F) { d.data[r*d.cols+c] = v }

// Row returns record r as a slice into the backing storage.
func (d *Dense[F]) Row(r int) []F { return d.data[r*d.cols : (r+1)*d.cols] }

// Data returns the backing storage.
func (d *Dense[F]) Data() []F { return d.data }

// Numeric reports true for every component; Dense implements Source.
func (d *Dense[F]) Numeric(int) bool { return true }

// Float64 returns element (r, c) widened to float64.
func (d *Dense[F]) Float64(r, c int) float64 { return float64(d.At(r, c)) }

// Columns returns a new table holding the first n columns of d.
func (d *Dense[F]) Columns(n int) *Dense[F] {
	if n > d.cols {
		panic(fmt.Sprintf("table: %d columns requested from %d", n, d.cols))
	}
	out := NewDense[F](d.rows, n, nil)
	for r := 0; r < d.rows; r++ {
		copy(out.Row(r), d.Row(r)[:n])
	}
	return out
}
