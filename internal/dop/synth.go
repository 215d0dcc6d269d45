package dop

// Synthetic capture generation for tests and the offline demo tool. The
// forward model is the exact inverse of the processing chain: a known
// velocity field is projected to per-frequency wrapped phase at a given
// correlation level.

// SynthOptions describes a synthetic single-beam capture.
type SynthOptions struct {
	R, T int
	// Velocity returns the true beam velocity (m/s) at (range, time).
	Velocity func(r, t int) float64
	// Correl is the uniform correlation percentage written to every cell.
	Correl float64
}

// RampVelocity returns a velocity function ramping linearly from start to
// end across the time axis, constant in range.
func RampVelocity(start, end float64, timeSteps int) func(r, t int) float64 {
	return func(_, t int) float64 {
		if timeSteps <= 1 {
			return start
		}
		return start + (end-start)*float64(t)/float64(timeSteps-1)
	}
}

// SynthBeamCapture builds wrapped phase and correlation cubes for a beam
// observing the given velocity field at normal incidence.
func SynthBeamCapture(opts SynthOptions, freqs []float64, acq Acquisition) (phase, correl *Cube) {
	phase = NewCube(opts.R, opts.T, len(freqs))
	correl = NewCubeFilled(opts.R, opts.T, len(freqs), opts.Correl)
	for fi, f := range freqs {
		ambV := AmbiguityVelocity(acq, f)
		for r := 0; r < opts.R; r++ {
			for t := 0; t < opts.T; t++ {
				phase.Set(r, t, fi, wrapPhase(velocityToPhase(opts.Velocity(r, t), ambV)))
			}
		}
	}
	return phase, correl
}

// SynthHeadCapture builds per-beam wrapped phase cubes for a multi-beam
// head observing a uniform Cartesian velocity (u,v,w), projected through
// the head's design matrix with the given orientation. Outboard beams use
// their range-dependent ambiguity velocities, so the cubes are consistent
// with what InvertHead expects to see.
func SynthHeadCapture(beams []Beam, uvw [3]float64, freqs []float64, acq Acquisition, rangeAxis []float64, timeSteps int, correlPct float64, pitchDeg, rollDeg, yawDeg float64) (phase, correl []*Cube, err error) {
	design := DesignMatrix(beams, pitchDeg, rollDeg, yawDeg)
	phase = make([]*Cube, len(beams))
	correl = make([]*Cube, len(beams))
	for i, b := range beams {
		amb, err := AmbiguityTable(acq, freqs, b.Baseline, rangeAxis)
		if err != nil {
			return nil, nil, err
		}
		bv := design.At(i, 0)*uvw[0] + design.At(i, 1)*uvw[1] + design.At(i, 2)*uvw[2]
		pol := b.Polarity
		if pol == 0 {
			pol = 1
		}
		pc := NewCube(len(rangeAxis), timeSteps, len(freqs))
		for r := range rangeAxis {
			for t := 0; t < timeSteps; t++ {
				for fi := range freqs {
					// DesignMatrix rows already carry polarity; the raw
					// phase observation is the unsigned projection.
					pc.Set(r, t, fi, wrapPhase(velocityToPhase(bv/pol, amb[r][fi])))
				}
			}
		}
		phase[i] = pc
		correl[i] = NewCubeFilled(len(rangeAxis), timeSteps, len(freqs), correlPct)
	}
	return phase, correl, nil
}
