package dop

import "math"

// SingleBeamResult is the reduced scalar velocity series for a lone
// auxiliary beam. Which physical component it represents (w for a vertical
// beam, v with a sign flip for a horizontal one) is a labelling convention
// applied by the caller, not here.
type SingleBeamResult struct {
	Velocity *Field
	Std      *Field
	Time     []float64
	Nave     int
}

// ReduceSingleBeam is the degenerate one-beam form of the geometric
// inversion: a frequency-weighted average with no geometry. The beam's
// polarity is applied so that positive output means flow toward the
// transducer under the standard convention.
func ReduceSingleBeam(beam Beam, phase, correl *Cube, freqs []float64, acq Acquisition, nave int) (*SingleBeamResult, error) {
	bv, err := EstimateBeamVelocity(phase, correl, freqs, acq, nave)
	if err != nil {
		return nil, err
	}
	pol := beam.Polarity
	if pol == 0 {
		pol = 1
	}
	if pol != 1 {
		for r := 0; r < bv.Velocity.R; r++ {
			for t := 0; t < bv.Velocity.T; t++ {
				if v := bv.Velocity.At(r, t); !math.IsNaN(v) {
					bv.Velocity.Set(r, t, pol*v)
				}
			}
		}
	}
	return &SingleBeamResult{
		Velocity: bv.Velocity,
		Std:      bv.Std,
		Time:     bv.Time,
		Nave:     bv.Nave,
	}, nil
}
