package dop

import "math"

// Hybrid mode anchors the velocity estimate to the highest-frequency phase
// track, which has the finest velocity resolution but the smallest
// unambiguous span. The IRLS estimate serves only as a coarse guide to
// resolve the high-frequency integer wrap count; the reconstructed track is
// then despiked and the remaining frequencies are re-unwrapped against it.

const (
	// spikeWindow is the half-width of the spike detector's sliding
	// window (2 -> 5x5 neighbourhood) and the excluded boundary margin.
	spikeWindow = 2
	// spikeMinNeighbors is the minimum number of finite neighbours
	// required before a correction is attempted; sparser neighbourhoods
	// skip correction rather than guess.
	spikeMinNeighbors = 10
	// spikeDetectThresh flags a pixel as a spike candidate when its
	// high-frequency phase deviates from the local window average by
	// more than this (radians).
	spikeDetectThresh = math.Pi
	// spikeImproveFactor: a wrap adjustment is applied on the first pass
	// only if it shrinks the deviation from the neighbourhood median by
	// at least this factor.
	spikeImproveFactor = 0.5
	// invalidStdDefault is the fallback uncertainty (m/s) assigned to
	// quality-rejected pixels when no valid pixel exists to scale from.
	invalidStdDefault = 0.05
)

// applyHybrid rewrites res in place with the high-frequency-anchored
// estimate. valid marks pixels that passed the quality floor; their wrap
// counts come from the IRLS guide, while quality-rejected pixels borrow
// the wrap count of their nearest valid neighbour and carry inflated
// uncertainty. Bins outside the valid-range bounds are left NaN.
func applyHybrid(res *UnwrapResult, phase, correl *Cube, ambV []float64, valid []bool, opts UnwrapOptions) {
	R, T := phase.R, phase.T
	hi := res.Roles.High
	vH := ambV[hi]
	rangeMin, rangeMax := opts.RangeMin, opts.RangeMax
	if rangeMax == 0 || rangeMax > R {
		rangeMax = R
	}

	guide := res.Velocity
	if opts.MedianFilter3x3 {
		guide = medianFilter3x3(res.Velocity)
	}

	// Integer wrap count bringing the raw high-frequency track into
	// agreement with the coarse guide.
	wraps := NewFieldFilled(R, T, math.NaN())
	for r := 0; r < R; r++ {
		for t := 0; t < T; t++ {
			if !valid[r*T+t] {
				continue
			}
			raw := phaseToVelocity(phase.At(r, t, hi), vH)
			g := guide.At(r, t)
			if math.IsNaN(raw) || math.IsNaN(g) {
				continue
			}
			wraps.Set(r, t, math.Round((g-raw)/vH))
		}
	}
	interpolateNearest(wraps)

	// Reconstruct the high-frequency phase track from the corrected wrap
	// counts, then despike it.
	phiH := NewFieldFilled(R, T, math.NaN())
	for r := rangeMin; r < rangeMax; r++ {
		for t := 0; t < T; t++ {
			n := wraps.At(r, t)
			raw := phase.At(r, t, hi)
			if math.IsNaN(n) || math.IsNaN(raw) {
				continue
			}
			phiH.Set(r, t, raw+2*math.Pi*n)
		}
	}
	despike(phiH)

	// Final velocity from the corrected track; all other frequencies are
	// re-unwrapped to stay consistent with it.
	inflated := inflatedStd(res.Std, valid)
	for r := rangeMin; r < rangeMax; r++ {
		for t := 0; t < T; t++ {
			v := phaseToVelocity(phiH.At(r, t), vH)
			res.Velocity.Set(r, t, v)
			for fi := range ambV {
				if math.IsNaN(v) {
					res.Phase.Set(r, t, fi, math.NaN())
					continue
				}
				vObs := phaseToVelocity(phase.At(r, t, fi), ambV[fi])
				u := v + wrapToHalf(vObs-v, ambV[fi])
				res.Phase.Set(r, t, fi, velocityToPhase(u, ambV[fi]))
			}
			if !valid[r*T+t] {
				res.Std.Set(r, t, inflated)
			}
		}
	}
}

// inflatedStd returns twice the median uncertainty of the valid pixels, or
// a fixed default when none exist.
func inflatedStd(std *Field, valid []bool) float64 {
	vals := make([]float64, 0, len(valid))
	for r := 0; r < std.R; r++ {
		for t := 0; t < std.T; t++ {
			if valid[r*std.T+t] && !math.IsNaN(std.At(r, t)) {
				vals = append(vals, std.At(r, t))
			}
		}
	}
	if len(vals) == 0 {
		return invalidStdDefault
	}
	return 2 * medianOf(vals)
}

// interpolateNearest fills NaN cells of f with the value of the nearest
// non-NaN cell on the 2-D grid (Euclidean distance, searched over
// expanding Chebyshev rings). A field with no finite cells is left as is.
func interpolateNearest(f *Field) {
	type fill struct {
		r, t int
		v    float64
	}
	var fills []fill
	maxRing := f.R
	if f.T > maxRing {
		maxRing = f.T
	}
	for r := 0; r < f.R; r++ {
		for t := 0; t < f.T; t++ {
			if !math.IsNaN(f.At(r, t)) {
				continue
			}
			best := math.NaN()
			bestD2 := math.Inf(1)
			for ring := 1; ring <= maxRing; ring++ {
				// Once a candidate is found, rings beyond the current
				// Euclidean best cannot improve on it.
				if !math.IsNaN(best) && float64(ring*ring) > bestD2 {
					break
				}
				for dr := -ring; dr <= ring; dr++ {
					for dt := -ring; dt <= ring; dt++ {
						if maxAbs(dr, dt) != ring {
							continue
						}
						rr, tt := r+dr, t+dt
						if rr < 0 || rr >= f.R || tt < 0 || tt >= f.T {
							continue
						}
						v := f.At(rr, tt)
						if math.IsNaN(v) {
							continue
						}
						d2 := float64(dr*dr + dt*dt)
						if d2 < bestD2 {
							bestD2 = d2
							best = v
						}
					}
				}
			}
			if !math.IsNaN(best) {
				fills = append(fills, fill{r, t, best})
			}
		}
	}
	// Apply after the scan so interpolated cells never seed each other.
	for _, fl := range fills {
		f.Set(fl.r, fl.t, fl.v)
	}
}

func maxAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

// despike runs the two-pass spike corrector over the reconstructed
// high-frequency phase track. Interior pixels (a spikeWindow margin is
// excluded) whose value deviates from the sliding-window local average by
// more than spikeDetectThresh are candidates. Each candidate is tested
// against the true median of its neighbourhood (centre excluded): a 0 or
// +/-2pi wrap adjustment is applied when it meaningfully shrinks the
// deviation, and on the second pass a still-severe candidate is forcibly
// replaced by the neighbour median. Neighbourhoods with fewer than
// spikeMinNeighbors finite members are skipped.
func despike(phi *Field) {
	buf := make([]float64, 0, (2*spikeWindow+1)*(2*spikeWindow+1)-1)
	for pass := 1; pass <= 2; pass++ {
		for r := spikeWindow; r < phi.R-spikeWindow; r++ {
			for t := spikeWindow; t < phi.T-spikeWindow; t++ {
				x := phi.At(r, t)
				if math.IsNaN(x) {
					continue
				}
				buf = buf[:0]
				var sum float64
				for dr := -spikeWindow; dr <= spikeWindow; dr++ {
					for dt := -spikeWindow; dt <= spikeWindow; dt++ {
						if dr == 0 && dt == 0 {
							continue
						}
						v := phi.At(r+dr, t+dt)
						if math.IsNaN(v) {
							continue
						}
						buf = append(buf, v)
						sum += v
					}
				}
				if len(buf) < spikeMinNeighbors {
					continue
				}
				if math.Abs(x-sum/float64(len(buf))) <= spikeDetectThresh {
					continue
				}
				m := medianOf(buf)
				best, bestDev := x, math.Abs(x-m)
				for _, adj := range [...]float64{-2 * math.Pi, 2 * math.Pi} {
					if d := math.Abs(x + adj - m); d < bestDev {
						best, bestDev = x+adj, d
					}
				}
				switch {
				case bestDev < spikeImproveFactor*math.Abs(x-m):
					phi.Set(r, t, best)
				case pass == 2 && math.Abs(x-m) > spikeDetectThresh:
					phi.Set(r, t, m)
				}
			}
		}
	}
}
