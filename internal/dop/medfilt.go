package dop

import (
	"math"
	"sort"
)

// medianFilter3x3 returns a NaN-aware 3x3 median filter of f. Each output
// cell is the median of the finite values in its 3x3 neighbourhood
// (including itself); cells with no finite neighbours stay NaN. Edges use
// the truncated neighbourhood.
func medianFilter3x3(f *Field) *Field {
	out := NewField(f.R, f.T)
	buf := make([]float64, 0, 9)
	for r := 0; r < f.R; r++ {
		for t := 0; t < f.T; t++ {
			buf = buf[:0]
			for dr := -1; dr <= 1; dr++ {
				for dt := -1; dt <= 1; dt++ {
					rr, tt := r+dr, t+dt
					if rr < 0 || rr >= f.R || tt < 0 || tt >= f.T {
						continue
					}
					if v := f.At(rr, tt); !math.IsNaN(v) {
						buf = append(buf, v)
					}
				}
			}
			out.Set(r, t, medianOf(buf))
		}
	}
	return out
}

// medianOf returns the median of vals, or NaN for an empty slice.
// vals is sorted in place.
func medianOf(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
