package dop

import "math"

// Correlation values arrive as percentages (0-100). They are used solely to
// derive a measurement-noise variance for the least-squares steps: low
// correlation means high variance means down-weighted, never an error.

// minVariance floors correlation-derived variance so weights stay finite.
const minVariance = 2.220446049250313e-16 // machine epsilon for float64

// phaseVariance returns the per-ping phase variance (rad^2) implied by a
// correlation percentage. The model is the usual pulse-pair small-error
// form var = (1 - rho^2) / (2 rho^2), with rho clamped away from 0 and 1
// so the result is always finite and positive.
func phaseVariance(correlPct float64) float64 {
	rho := correlPct / 100
	if math.IsNaN(rho) || rho < 1e-3 {
		rho = 1e-3
	}
	if rho > 1 {
		rho = 1
	}
	v := (1 - rho*rho) / (2 * rho * rho)
	if v < minVariance {
		v = minVariance
	}
	return v
}

// velocityWeight returns the inverse-variance weight, in velocity units, for
// an observation at ambiguity velocity ambV with the given correlation.
// maxWeight caps the weight when positive; zero means no ceiling.
func velocityWeight(correlPct, ambV, maxWeight float64) float64 {
	scale := ambV / (2 * math.Pi) // radians -> m/s
	variance := phaseVariance(correlPct) * scale * scale
	if variance < minVariance {
		variance = minVariance
	}
	w := 1 / variance
	if maxWeight > 0 && w > maxWeight {
		w = maxWeight
	}
	return w
}

// phaseToVelocity converts a phase in radians to velocity for a channel
// whose full 2-pi wrap corresponds to ambV.
func phaseToVelocity(phase, ambV float64) float64 {
	return phase * ambV / (2 * math.Pi)
}

// velocityToPhase is the inverse of phaseToVelocity.
func velocityToPhase(v, ambV float64) float64 {
	return v * 2 * math.Pi / ambV
}
