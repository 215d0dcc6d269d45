package dop

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// InversionOptions configures the multi-beam geometric inversion.
type InversionOptions struct {
	// Nave is the centred time-averaging window in pings; must be odd.
	Nave int
	// PitchDeg, RollDeg, YawDeg are instrument orientation corrections in
	// degrees applied to the beam-to-Cartesian transform.
	PitchDeg, RollDeg, YawDeg float64
	// Workers bounds the worker pool; <= 0 means one per CPU.
	Workers int
}

// DefaultInversionOptions returns the standard inversion configuration:
// no averaging, no orientation correction.
func DefaultInversionOptions() InversionOptions {
	return InversionOptions{Nave: 1}
}

// InversionResult holds the Cartesian velocity field recovered from a
// multi-beam head, plus the diagnostic per-beam arrays in the caller's
// original beam order.
type InversionResult struct {
	// U, V, W and their standard deviations are range x output-bin
	// fields (m/s). Bins with no valid beam observation are NaN.
	U, V, W          *Field
	StdU, StdV, StdW *Field
	// Time is the centre time of each output bin (s); Range copies the
	// range axis (m).
	Time, Range []float64
	// BeamVelocity holds each beam's velocity cube (positive toward the
	// transducer) and Ambiguity its per-(range, frequency) ambiguity
	// velocities, both indexed like the input beams slice.
	BeamVelocity []*Cube
	Ambiguity    [][][]float64
	// Design is the beam-to-Cartesian transform in canonical beam order.
	Design *mat.Dense
}

// InvertHead recovers Cartesian velocity from the five-beam Main head by
// weighted least squares per (range, output-time) bin.
//
// Each frequency contributes an independent observation row (the design
// matrix replicated per frequency, weighted by that frequency's ambiguity
// velocity through the inverse-variance weights), and the per-bin system
// is solved through an SVD pseudo-inverse so that bins with dropped beams
// degrade to reduced rank instead of failing. Bins with zero valid rows
// yield NaN components. correl may be nil or contain nil entries (100%).
func InvertHead(beams []Beam, phase, correl []*Cube, freqs []float64, acq Acquisition, rangeAxis []float64, opts InversionOptions) (*InversionResult, error) {
	if len(beams) == 0 || len(phase) != len(beams) {
		return nil, configErrorf("got %d beams and %d phase cubes", len(beams), len(phase))
	}
	if correl != nil && len(correl) != len(beams) {
		return nil, configErrorf("got %d beams and %d correlation cubes", len(beams), len(correl))
	}
	if opts.Nave < 1 || opts.Nave%2 == 0 {
		return nil, configErrorf("averaging window nave must be odd and positive, got %d", opts.Nave)
	}
	for i, pc := range phase {
		if pc == nil {
			return nil, configErrorf("beam %q has no phase cube", beams[i].Name)
		}
		if !phase[0].SameShape(pc) {
			return nil, configErrorf("beam %q phase cube shape differs from beam %q", beams[i].Name, beams[0].Name)
		}
	}
	R, T, F := phase[0].R, phase[0].T, phase[0].F
	if F != len(freqs) {
		return nil, configErrorf("phase cubes have %d frequency planes, frequency list has %d", F, len(freqs))
	}
	if len(rangeAxis) != R {
		return nil, configErrorf("range axis has %d bins, cubes have %d", len(rangeAxis), R)
	}

	order, err := canonicalOrder(beams, mainHeadOrder)
	if err != nil {
		return nil, err
	}

	// Per-beam ambiguity tables and beam-velocity cubes, original order.
	amb := make([][][]float64, len(beams))
	beamVel := make([]*Cube, len(beams))
	for i, b := range beams {
		amb[i], err = AmbiguityTable(acq, freqs, b.Baseline, rangeAxis)
		if err != nil {
			return nil, err
		}
		pol := b.Polarity
		if pol == 0 {
			pol = 1
		}
		bv := NewCube(R, T, F)
		for r := 0; r < R; r++ {
			for t := 0; t < T; t++ {
				for fi := 0; fi < F; fi++ {
					bv.Set(r, t, fi, pol*phaseToVelocity(phase[i].At(r, t, fi), amb[i][r][fi]))
				}
			}
		}
		beamVel[i] = bv
	}

	design := DesignMatrix(reorder(beams, order), opts.PitchDeg, opts.RollDeg, opts.YawDeg)
	bins := T / opts.Nave

	res := &InversionResult{
		U: NewFieldFilled(R, bins, math.NaN()), V: NewFieldFilled(R, bins, math.NaN()), W: NewFieldFilled(R, bins, math.NaN()),
		StdU: NewFieldFilled(R, bins, math.NaN()), StdV: NewFieldFilled(R, bins, math.NaN()), StdW: NewFieldFilled(R, bins, math.NaN()),
		Time:         make([]float64, bins),
		Range:        append([]float64(nil), rangeAxis...),
		BeamVelocity: beamVel,
		Ambiguity:    amb,
		Design:       design,
	}
	for b := 0; b < bins; b++ {
		res.Time[b] = float64(b*opts.Nave+opts.Nave/2) * acq.PingInterval
	}

	// Each range bin is an independent work unit over bin-local output.
	parallelFor(R, opts.Workers, func(r int) {
		maxRows := len(order) * F * opts.Nave
		rows := make([]float64, 0, maxRows*3)
		y := make([]float64, 0, maxRows)
		for b := 0; b < bins; b++ {
			rows = rows[:0]
			y = y[:0]
			for slot, bi := range order {
				for t := b * opts.Nave; t < (b+1)*opts.Nave; t++ {
					for fi := 0; fi < F; fi++ {
						v := beamVel[bi].At(r, t, fi)
						if math.IsNaN(v) {
							continue
						}
						c := 100.0
						if correl != nil && correl[bi] != nil {
							c = correl[bi].At(r, t, fi)
							if math.IsNaN(c) {
								continue
							}
						}
						sw := math.Sqrt(velocityWeight(c, amb[bi][r][fi], 0))
						rows = append(rows,
							sw*design.At(slot, 0), sw*design.At(slot, 1), sw*design.At(slot, 2))
						y = append(y, sw*v)
					}
				}
			}
			if len(y) == 0 {
				continue
			}
			x, std, ok := solveWLSPinv(rows, y)
			if !ok {
				continue
			}
			res.U.Set(r, b, x[0])
			res.V.Set(r, b, x[1])
			res.W.Set(r, b, x[2])
			res.StdU.Set(r, b, std[0])
			res.StdV.Set(r, b, std[1])
			res.StdW.Set(r, b, std[2])
		}
	})

	return res, nil
}

func reorder(beams []Beam, order []int) []Beam {
	out := make([]Beam, len(order))
	for i, bi := range order {
		out[i] = beams[bi]
	}
	return out
}

// solveWLSPinv solves the pre-weighted least-squares system rows*x = y
// (rows is n x 3 row-major, already scaled by sqrt(weight)) through a thin
// SVD pseudo-inverse, never a direct inverse, so rank-deficient systems
// from dropped beams stay solvable. std is the square root of the
// covariance diagonal (A^T W A)^+; components outside the resolved
// subspace come back with +Inf deviation rather than garbage.
func solveWLSPinv(rows, y []float64) (x, std [3]float64, ok bool) {
	n := len(y)
	if n == 0 {
		return x, std, false
	}
	a := mat.NewDense(n, 3, rows)

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return x, std, false
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Default pseudo-inverse tolerance: max dimension times epsilon
	// times the largest singular value.
	const eps = 2.220446049250313e-16
	dim := n
	if dim < 3 {
		dim = 3
	}
	tol := float64(dim) * eps * s[0]

	// x = V S^+ U^T y, cov = (A^T A)^+ = V S^-2 V^T over resolved modes.
	var cov [3]float64
	for k := range s {
		if s[k] <= tol {
			continue
		}
		var uty float64
		for i := 0; i < n; i++ {
			uty += u.At(i, k) * y[i]
		}
		for j := 0; j < 3; j++ {
			x[j] += v.At(j, k) * uty / s[k]
			cov[j] += v.At(j, k) * v.At(j, k) / (s[k] * s[k])
		}
	}
	resolved := false
	for j := 0; j < 3; j++ {
		if cov[j] > 0 {
			std[j] = math.Sqrt(cov[j])
			resolved = true
		} else {
			std[j] = math.Inf(1)
		}
	}
	return x, std, resolved
}
