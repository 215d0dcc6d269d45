package dop

import (
	"math"
)

// UnwrapOptions configures the multi-frequency phase unwrapper. The zero
// value is not useful; start from DefaultUnwrapOptions.
type UnwrapOptions struct {
	// Kappa is the Huber threshold on standardized residuals.
	Kappa float64
	// MaxIter caps IRLS refinement iterations per pixel.
	MaxIter int
	// Tol is the convergence tolerance on the velocity update (m/s).
	Tol float64
	// MinCorrel is the quality floor (percent). Pixels whose correlation
	// at the reference (highest) frequency falls below it are invalid.
	MinCorrel float64
	// MaxWeight caps the inverse-variance weights when positive.
	MaxWeight float64
	// UseHuber toggles robust reweighting; when false the IRLS loop uses
	// the base inverse-variance weights only.
	UseHuber bool
	// MedianFilter3x3 enables 3x3 median post-smoothing of the velocity
	// field (in hybrid mode, of the coarse guide).
	MedianFilter3x3 bool
	// HybridMode anchors the result to the highest frequency's unwrapped
	// phase track, with wrap-count interpolation and spike correction.
	HybridMode bool
	// RangeMin/RangeMax bound the valid range bins [RangeMin, RangeMax).
	// RangeMax == 0 means the full extent. Excluded bins are NaN in
	// every mode; hybrid anchoring rescues quality-rejected pixels only.
	RangeMin, RangeMax int
}

// DefaultUnwrapOptions returns the standard unwrapper configuration.
func DefaultUnwrapOptions() UnwrapOptions {
	return UnwrapOptions{
		Kappa:     1.345,
		MaxIter:   12,
		Tol:       1e-6,
		MinCorrel: 40,
		UseHuber:  true,
	}
}

// FrequencyRoles records which input frequencies were assigned the low,
// middle and high beat-anchor roles. Indices refer to the caller's
// frequency slice. For two-frequency captures Mid == Low.
type FrequencyRoles struct {
	Low, Mid, High int
	SortedHz       []float64
}

// UnwrapResult is the output of UnwrapBeam for one beam channel.
type UnwrapResult struct {
	// Phase is the unwrapped phase cube (radians). Re-wrapping any cell
	// into (-pi, pi] reproduces the input phase at that frequency.
	Phase *Cube
	// Velocity and Std are the per-pixel robust velocity estimate and its
	// standard deviation (m/s). Invalid pixels are NaN in standard mode.
	Velocity *Field
	Std      *Field
	// Iterations counts IRLS iterations spent per pixel.
	Iterations *IntField
	// Roles records the beat-anchor frequency assignment.
	Roles FrequencyRoles
	// InvalidCount is the number of pixels rejected by the quality floor
	// or the valid-range bounds.
	InvalidCount int
}

// UnwrapBeam unwraps the multi-frequency phase cube of a single beam.
//
// The strategy is beat-frequency seeding refined by iteratively reweighted
// least squares: two candidate velocity seeds come from the (high,mid) and
// (high,low) beat-pair phase differences, the per-pixel winner is whichever
// maximizes the correlation-weighted coherent vector sum of phase residuals
// across all frequencies, and IRLS with Huber weighting then polishes the
// estimate against every frequency's wrapped observation.
//
// correl may be nil, which is treated as 100% everywhere. Three or more
// frequencies use the full beat-pair strategy; exactly two fall back to the
// single (high,low) beat seed; fewer is a ConfigError.
func UnwrapBeam(phase, correl *Cube, freqs []float64, acq Acquisition, opts UnwrapOptions) (*UnwrapResult, error) {
	if phase == nil {
		return nil, configErrorf("nil phase cube")
	}
	if len(freqs) < 2 {
		return nil, configErrorf("beat unwrapping needs at least 2 frequencies, got %d", len(freqs))
	}
	if phase.F != len(freqs) {
		return nil, configErrorf("phase cube has %d frequency planes, frequency list has %d", phase.F, len(freqs))
	}
	if correl != nil && !phase.SameShape(correl) {
		return nil, configErrorf("correlation cube shape (%d,%d,%d) does not match phase (%d,%d,%d)",
			correl.R, correl.T, correl.F, phase.R, phase.T, phase.F)
	}
	if opts.MaxIter <= 0 || opts.Tol <= 0 {
		return nil, configErrorf("max_iter and tol must be positive")
	}
	rangeMin, rangeMax := opts.RangeMin, opts.RangeMax
	if rangeMax == 0 {
		rangeMax = phase.R
	}
	if rangeMin < 0 || rangeMax > phase.R || rangeMin >= rangeMax {
		return nil, configErrorf("valid range bounds [%d,%d) outside cube extent %d", rangeMin, rangeMax, phase.R)
	}

	roles := assignRoles(freqs)
	ambV := make([]float64, len(freqs))
	for i, f := range freqs {
		ambV[i] = AmbiguityVelocity(acq, f)
	}

	// Beat-pair ambiguity spans. The beat between two carriers wraps at the
	// ambiguity velocity of their difference frequency, which exceeds any
	// single carrier's span and so resolves the coarse wrap count.
	beatHL := AmbiguityVelocity(acq, freqs[roles.High]-freqs[roles.Low])
	twoFreq := len(freqs) == 2
	var beatHM float64
	if !twoFreq {
		beatHM = AmbiguityVelocity(acq, freqs[roles.High]-freqs[roles.Mid])
	}

	res := &UnwrapResult{
		Phase:      NewCubeFilled(phase.R, phase.T, phase.F, math.NaN()),
		Velocity:   NewFieldFilled(phase.R, phase.T, math.NaN()),
		Std:        NewFieldFilled(phase.R, phase.T, math.NaN()),
		Iterations: NewIntField(phase.R, phase.T),
		Roles:      roles,
	}
	valid := make([]bool, phase.R*phase.T)

	px := pixelScratch{
		phase: make([]float64, phase.F),
		w:     make([]float64, phase.F),
		resid: make([]float64, phase.F),
	}

	for r := 0; r < phase.R; r++ {
		for t := 0; t < phase.T; t++ {
			inRange := r >= rangeMin && r < rangeMax
			refCorrel := 100.0
			if correl != nil {
				refCorrel = correl.At(r, t, roles.High)
			}
			ok := inRange && refCorrel >= opts.MinCorrel
			valid[r*phase.T+t] = ok

			for fi := range freqs {
				px.phase[fi] = phase.At(r, t, fi)
				c := 100.0
				if correl != nil {
					c = correl.At(r, t, fi)
				}
				px.w[fi] = velocityWeight(c, ambV[fi], opts.MaxWeight)
			}

			// Seed selection.
			var seed float64
			if twoFreq {
				seed = phaseToVelocity(wrapPhase(px.phase[roles.High]-px.phase[roles.Low]), beatHL)
			} else {
				sHM := phaseToVelocity(wrapPhase(px.phase[roles.High]-px.phase[roles.Mid]), beatHM)
				sHL := phaseToVelocity(wrapPhase(px.phase[roles.High]-px.phase[roles.Low]), beatHL)
				if coherence(px.phase, px.w, ambV, sHM) >= coherence(px.phase, px.w, ambV, sHL) {
					seed = sHM
				} else {
					seed = sHL
				}
			}

			v, sigma, iters := irlsRefine(&px, ambV, seed, opts)
			res.Iterations.Set(r, t, iters)

			if !ok {
				res.InvalidCount++
				if !opts.HybridMode || !inRange {
					continue
				}
			}

			res.Velocity.Set(r, t, v)
			res.Std.Set(r, t, sigma)
			for fi := range freqs {
				vObs := phaseToVelocity(px.phase[fi], ambV[fi])
				u := v + wrapToHalf(vObs-v, ambV[fi])
				res.Phase.Set(r, t, fi, velocityToPhase(u, ambV[fi]))
			}
		}
	}

	if opts.HybridMode {
		applyHybrid(res, phase, correl, ambV, valid, opts)
	} else if opts.MedianFilter3x3 {
		res.Velocity = medianFilter3x3(res.Velocity)
	}

	return res, nil
}

// pixelScratch holds per-pixel work arrays reused across the grid.
type pixelScratch struct {
	phase, w, resid []float64
}

// assignRoles sorts the frequency list by value and picks the lowest,
// middle and highest carriers as beat-pair anchors.
func assignRoles(freqs []float64) FrequencyRoles {
	order := make([]int, len(freqs))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && freqs[order[j]] < freqs[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	sorted := make([]float64, len(freqs))
	for i, oi := range order {
		sorted[i] = freqs[oi]
	}
	mid := order[len(order)/2]
	if len(order) == 2 {
		mid = order[0]
	}
	return FrequencyRoles{
		Low:      order[0],
		Mid:      mid,
		High:     order[len(order)-1],
		SortedHz: sorted,
	}
}

// coherence scores a candidate velocity by the magnitude of the weighted
// coherent vector sum of per-frequency phase residuals. A seed near the
// true velocity leaves residuals clustered around zero phase, so the
// vectors add; a wrong wrap count scatters them.
func coherence(phase, w, ambV []float64, v float64) float64 {
	var re, im float64
	for fi := range phase {
		r := phase[fi] - velocityToPhase(v, ambV[fi])
		re += w[fi] * math.Cos(r)
		im += w[fi] * math.Sin(r)
	}
	return math.Hypot(re, im)
}

// irlsRefine polishes a velocity seed by iteratively reweighted least
// squares across frequencies. Each iteration wraps every frequency's
// observed velocity into the half-span window around the current estimate,
// Huber-downweights residuals exceeding Kappa in sigma units, and
// re-averages. Returns the estimate, its standard deviation
// sqrt(1/sum(w)), and the number of iterations spent.
func irlsRefine(px *pixelScratch, ambV []float64, seed float64, opts UnwrapOptions) (v, sigma float64, iters int) {
	v = seed
	sumWH := 0.0
	for iters = 1; iters <= opts.MaxIter; iters++ {
		for fi := range px.phase {
			vObs := phaseToVelocity(px.phase[fi], ambV[fi])
			px.resid[fi] = wrapToHalf(vObs-v, ambV[fi])
		}

		var num float64
		sumWH = 0
		for fi := range px.phase {
			h := 1.0
			if opts.UseHuber {
				// w is the observation's inverse variance, so
				// |e|*sqrt(w) is the residual in sigma units.
				z := math.Abs(px.resid[fi]) * math.Sqrt(px.w[fi])
				if z > opts.Kappa {
					h = opts.Kappa / z
				}
			}
			wh := px.w[fi] * h
			num += wh * (v + px.resid[fi])
			sumWH += wh
		}
		if sumWH <= 0 {
			break
		}
		next := num / sumWH
		delta := math.Abs(next - v)
		v = next
		if delta < opts.Tol {
			break
		}
	}
	if iters > opts.MaxIter {
		iters = opts.MaxIter
	}
	if sumWH <= 0 {
		return v, math.NaN(), iters
	}
	return v, math.Sqrt(1 / sumWH), iters
}
