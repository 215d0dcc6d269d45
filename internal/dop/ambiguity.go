package dop

import "math"

// Acquisition holds the scalar acquisition parameters shared by every beam
// of a head: sound speed in water (m/s), transmitted pulse length (s), and
// the ping repetition interval (s).
type Acquisition struct {
	SoundSpeed   float64
	PulseLength  float64
	PingInterval float64
}

// AmbiguityVelocity returns the velocity magnitude corresponding to a full
// 2-pi phase wrap for a normal-incidence beam at carrier frequency f (Hz).
func AmbiguityVelocity(acq Acquisition, f float64) float64 {
	return acq.SoundSpeed / (2 * f * acq.PulseLength)
}

// BistaticAngle returns the full bistatic angle subtended at a scatterer at
// the given range by two transducers separated by baseline, from the law of
// cosines: theta = acos(1 - b^2 / (2 r^2)).
//
// Fails with GeometryError when the arc-cosine argument leaves (-1, 1],
// i.e. when the baseline meets or exceeds twice the range and the geometry
// degenerates.
func BistaticAngle(baseline, rng float64) (float64, error) {
	if rng <= 0 {
		return 0, geometryErrorf("non-positive range %g m", rng)
	}
	arg := 1 - baseline*baseline/(2*rng*rng)
	if arg <= -1 || arg > 1 {
		return 0, geometryErrorf("bistatic angle undefined: baseline %g m at range %g m", baseline, rng)
	}
	return math.Acos(arg), nil
}

// OutboardAmbiguityVelocity returns the half-angle-corrected ambiguity
// velocity for an outboard beam whose receiver sits baseline metres from
// the transmit centre, evaluated at the given range:
//
//	V = pi / (2 k T cos(theta/2)),  k = 2 pi f / c
func OutboardAmbiguityVelocity(acq Acquisition, f, baseline, rng float64) (float64, error) {
	theta, err := BistaticAngle(baseline, rng)
	if err != nil {
		return 0, err
	}
	k := 2 * math.Pi * f / acq.SoundSpeed
	return math.Pi / (2 * k * acq.PingInterval * math.Cos(theta/2)), nil
}

// AmbiguityTable builds the per-(range, frequency) ambiguity velocities for
// one beam. Center beams (zero baseline) use the normal-incidence formula,
// which is range-independent; outboard beams apply the half-angle
// correction at every range bin. The first GeometryError encountered
// aborts the table.
func AmbiguityTable(acq Acquisition, freqs []float64, baseline float64, rangeAxis []float64) ([][]float64, error) {
	table := make([][]float64, len(rangeAxis))
	for ri, rng := range rangeAxis {
		row := make([]float64, len(freqs))
		for fi, f := range freqs {
			if baseline == 0 {
				row[fi] = AmbiguityVelocity(acq, f)
				continue
			}
			v, err := OutboardAmbiguityVelocity(acq, f, baseline, rng)
			if err != nil {
				return nil, err
			}
			row[fi] = v
		}
		table[ri] = row
	}
	return table, nil
}
