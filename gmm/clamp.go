package gmm

import (
	"math"

	"github.com/matthias-wolff/gmmscore/table"
)

// clamp clips every score into the bounds of mode and replaces NaN with the
// sentinel. It logs one warning per column that needed clamping, however
// many rows were affected, and returns those columns.
func (m *Model[F]) clamp(out *table.Dense[F], mode Mode) []int {
	lim := m.set.limits
	lo, hi := lim.Bounds(mode)
	flo, fhi := F(lo), F(hi)
	sentinel := F(lim.Sentinel(mode))

	counts := make([]int, out.Components())
	for r := 0; r < out.Records(); r++ {
		row := out.Row(r)
		for c, v := range row {
			switch {
			case math.IsNaN(float64(v)):
				row[c] = sentinel
			case v < flo:
				row[c] = flo
			case v > fhi:
				row[c] = fhi
			default:
				continue
			}
			counts[c]++
		}
	}

	var invalid []int
	for c, n := range counts {
		if n == 0 {
			continue
		}
		invalid = append(invalid, c)
		m.set.logger.Printf("gmm: column %d: %d %s score(s) outside [%g, %g] clamped", c, n, mode, lo, hi)
	}
	return invalid
}
