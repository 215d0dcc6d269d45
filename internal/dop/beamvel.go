package dop

import "math"

// BeamVelocityResult holds the time-binned velocity estimate for a single
// beam combined across frequencies.
type BeamVelocityResult struct {
	// Velocity and Std are range x output-bin fields (m/s). Bins with no
	// valid observation are NaN.
	Velocity *Field
	Std      *Field
	// Time holds the centre time of each output bin in seconds from the
	// first ping.
	Time []float64
	// Nave is the averaging window actually applied.
	Nave int
}

// EstimateBeamVelocity reduces a single beam's per-frequency phase to one
// velocity-versus-time-versus-range estimate with error variance.
//
// Phase is converted to velocity per frequency at normal incidence (no
// geometry), weighted by inverse variance from correlation, and averaged
// over centred non-overlapping windows of nave pings. The reported
// uncertainty is sqrt(1/sum(w)). correl may be nil (100% everywhere).
// nave must be odd; an even window is a ConfigError.
func EstimateBeamVelocity(phase, correl *Cube, freqs []float64, acq Acquisition, nave int) (*BeamVelocityResult, error) {
	if phase == nil {
		return nil, configErrorf("nil phase cube")
	}
	if len(freqs) == 0 || phase.F != len(freqs) {
		return nil, configErrorf("phase cube has %d frequency planes, frequency list has %d", phase.F, len(freqs))
	}
	if correl != nil && !phase.SameShape(correl) {
		return nil, configErrorf("correlation cube shape does not match phase cube")
	}
	if nave < 1 || nave%2 == 0 {
		return nil, configErrorf("averaging window nave must be odd and positive, got %d", nave)
	}

	ambV := make([]float64, len(freqs))
	for i, f := range freqs {
		ambV[i] = AmbiguityVelocity(acq, f)
	}

	bins := phase.T / nave
	res := &BeamVelocityResult{
		Velocity: NewFieldFilled(phase.R, bins, math.NaN()),
		Std:      NewFieldFilled(phase.R, bins, math.NaN()),
		Time:     make([]float64, bins),
		Nave:     nave,
	}
	for b := 0; b < bins; b++ {
		res.Time[b] = float64(b*nave+nave/2) * acq.PingInterval
	}

	for r := 0; r < phase.R; r++ {
		for b := 0; b < bins; b++ {
			var sumW, sumWV float64
			for t := b * nave; t < (b+1)*nave; t++ {
				for fi := range freqs {
					p := phase.At(r, t, fi)
					if math.IsNaN(p) {
						continue
					}
					c := 100.0
					if correl != nil {
						c = correl.At(r, t, fi)
						if math.IsNaN(c) {
							continue
						}
					}
					w := velocityWeight(c, ambV[fi], 0)
					sumW += w
					sumWV += w * phaseToVelocity(p, ambV[fi])
				}
			}
			if sumW > 0 {
				res.Velocity.Set(r, b, sumWV/sumW)
				res.Std.Set(r, b, math.Sqrt(1/sumW))
			}
		}
	}
	return res, nil
}
