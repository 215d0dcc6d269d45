package dop

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

var testFreqs = []float64{300e3, 500e3, 700e3}

// TestUnwrapBeam_Ramp is the reference reconstruction scenario: a 10x100
// grid, three carriers, velocity ramping -0.5..0.5 m/s, 90% correlation.
func TestUnwrapBeam_Ramp(t *testing.T) {
	opts := SynthOptions{R: 10, T: 100, Velocity: RampVelocity(-0.5, 0.5, 100), Correl: 90}
	phase, correl := SynthBeamCapture(opts, testFreqs, testAcq)

	res, err := UnwrapBeam(phase, correl, testFreqs, testAcq, DefaultUnwrapOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sumSq float64
	n := 0
	for r := 0; r < opts.R; r++ {
		for tt := 0; tt < opts.T; tt++ {
			got := res.Velocity.At(r, tt)
			if math.IsNaN(got) {
				t.Fatalf("unexpected NaN velocity at (%d,%d)", r, tt)
			}
			d := got - opts.Velocity(r, tt)
			sumSq += d * d
			n++
		}
	}
	if rms := math.Sqrt(sumSq / float64(n)); rms >= 0.01 {
		t.Errorf("ramp RMS error = %v, want < 0.01 m/s", rms)
	}
	if res.InvalidCount != 0 {
		t.Errorf("expected no invalid pixels, got %d", res.InvalidCount)
	}
}

// TestUnwrapBeam_Idempotent: a constant velocity within every carrier's
// ambiguity range at 100% correlation must come back exactly.
func TestUnwrapBeam_Idempotent(t *testing.T) {
	const v = 0.37
	phase, _ := SynthBeamCapture(SynthOptions{R: 4, T: 8, Velocity: func(_, _ int) float64 { return v }, Correl: 100}, testFreqs, testAcq)

	res, err := UnwrapBeam(phase, nil, testFreqs, testAcq, DefaultUnwrapOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for r := 0; r < 4; r++ {
		for tt := 0; tt < 8; tt++ {
			if got := res.Velocity.At(r, tt); math.Abs(got-v) > 1e-9 {
				t.Fatalf("velocity at (%d,%d) = %v, want %v", r, tt, got, v)
			}
			if res.Iterations.At(r, tt) < 1 {
				t.Fatalf("iteration count not recorded at (%d,%d)", r, tt)
			}
		}
	}
}

// TestUnwrapBeam_WrappedCarrier: a velocity beyond the highest carrier's
// half-span forces a genuine unwrap via the beat seed.
func TestUnwrapBeam_WrappedCarrier(t *testing.T) {
	const v = 1.4 // half-spans: 2.5, 1.5, ~1.07 m/s -> wraps the top two carriers
	phase, correl := SynthBeamCapture(SynthOptions{R: 3, T: 5, Velocity: func(_, _ int) float64 { return v }, Correl: 95}, testFreqs, testAcq)

	res, err := UnwrapBeam(phase, correl, testFreqs, testAcq, DefaultUnwrapOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for r := 0; r < 3; r++ {
		for tt := 0; tt < 5; tt++ {
			if got := res.Velocity.At(r, tt); math.Abs(got-v) > 1e-6 {
				t.Fatalf("velocity at (%d,%d) = %v, want %v", r, tt, got, v)
			}
		}
	}
}

// TestUnwrapBeam_RoundTrip: re-wrapping the unwrapped phase reproduces the
// wrapped input at every frequency (property checked over random constant
// velocities across the full beat-resolvable span).
func TestUnwrapBeam_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Float64Range(-1.8, 1.8).Draw(rt, "velocity")
		phase, _ := SynthBeamCapture(SynthOptions{R: 2, T: 3, Velocity: func(_, _ int) float64 { return v }, Correl: 100}, testFreqs, testAcq)

		res, err := UnwrapBeam(phase, nil, testFreqs, testAcq, DefaultUnwrapOptions())
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		for r := 0; r < 2; r++ {
			for tt := 0; tt < 3; tt++ {
				for fi := range testFreqs {
					rewrapped := wrapPhase(res.Phase.At(r, tt, fi))
					if math.Abs(rewrapped-phase.At(r, tt, fi)) > 1e-6 {
						rt.Fatalf("round-trip broken at (%d,%d,f%d): rewrapped %v, input %v (v=%v)",
							r, tt, fi, rewrapped, phase.At(r, tt, fi), v)
					}
				}
			}
		}
	})
}

// TestUnwrapBeam_AllInvalid: correlation below the floor everywhere must
// yield all-NaN velocity and std in standard mode.
func TestUnwrapBeam_AllInvalid(t *testing.T) {
	phase, correl := SynthBeamCapture(SynthOptions{R: 5, T: 20, Velocity: RampVelocity(-0.5, 0.5, 20), Correl: 10}, testFreqs, testAcq)

	res, err := UnwrapBeam(phase, correl, testFreqs, testAcq, DefaultUnwrapOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.InvalidCount != 5*20 {
		t.Errorf("InvalidCount = %d, want %d", res.InvalidCount, 5*20)
	}
	for r := 0; r < 5; r++ {
		for tt := 0; tt < 20; tt++ {
			if !math.IsNaN(res.Velocity.At(r, tt)) || !math.IsNaN(res.Std.At(r, tt)) {
				t.Fatalf("expected NaN at (%d,%d), got v=%v std=%v",
					r, tt, res.Velocity.At(r, tt), res.Std.At(r, tt))
			}
		}
	}
}

// TestUnwrapBeam_QualityFloorUsesReferenceFrequency: only the highest
// frequency's correlation gates a pixel.
func TestUnwrapBeam_QualityFloorUsesReferenceFrequency(t *testing.T) {
	phase, correl := SynthBeamCapture(SynthOptions{R: 2, T: 2, Velocity: func(_, _ int) float64 { return 0.1 }, Correl: 90}, testFreqs, testAcq)
	// Degrade the two lower carriers only; the 700 kHz reference stays 90%.
	for r := 0; r < 2; r++ {
		for tt := 0; tt < 2; tt++ {
			correl.Set(r, tt, 0, 10)
			correl.Set(r, tt, 1, 10)
		}
	}
	res, err := UnwrapBeam(phase, correl, testFreqs, testAcq, DefaultUnwrapOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.InvalidCount != 0 {
		t.Errorf("pixels gated by non-reference correlation: InvalidCount = %d", res.InvalidCount)
	}
	if math.IsNaN(res.Velocity.At(0, 0)) {
		t.Error("velocity unexpectedly NaN")
	}
}

func TestUnwrapBeam_RangeBounds(t *testing.T) {
	phase, correl := SynthBeamCapture(SynthOptions{R: 6, T: 4, Velocity: func(_, _ int) float64 { return 0.2 }, Correl: 90}, testFreqs, testAcq)
	opts := DefaultUnwrapOptions()
	opts.RangeMin, opts.RangeMax = 2, 5

	res, err := UnwrapBeam(phase, correl, testFreqs, testAcq, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for r := 0; r < 6; r++ {
		inside := r >= 2 && r < 5
		if got := !math.IsNaN(res.Velocity.At(r, 0)); got != inside {
			t.Errorf("range bin %d: finite=%v, want %v", r, got, inside)
		}
	}
	if res.InvalidCount != 3*4 {
		t.Errorf("InvalidCount = %d, want %d", res.InvalidCount, 3*4)
	}
}

// TestUnwrapBeam_TwoFrequencies: the two-carrier fallback seeds from the
// single (high, low) beat pair.
func TestUnwrapBeam_TwoFrequencies(t *testing.T) {
	freqs := []float64{300e3, 700e3}
	const v = 0.9
	phase, _ := SynthBeamCapture(SynthOptions{R: 3, T: 4, Velocity: func(_, _ int) float64 { return v }, Correl: 100}, freqs, testAcq)

	res, err := UnwrapBeam(phase, nil, freqs, testAcq, DefaultUnwrapOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Velocity.At(1, 1); math.Abs(got-v) > 1e-9 {
		t.Errorf("two-frequency velocity = %v, want %v", got, v)
	}
	if res.Roles.Mid != res.Roles.Low {
		t.Errorf("two-frequency roles: Mid = %d, want Low = %d", res.Roles.Mid, res.Roles.Low)
	}
}

func TestUnwrapBeam_TooFewFrequencies(t *testing.T) {
	phase := NewCube(2, 2, 1)
	_, err := UnwrapBeam(phase, nil, []float64{700e3}, testAcq, DefaultUnwrapOptions())
	if err == nil {
		t.Fatal("expected ConfigError for a single frequency")
	}
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

// TestAssignRoles: role assignment works on unsorted frequency lists and
// reports indices into the caller's slice.
func TestAssignRoles(t *testing.T) {
	got := assignRoles([]float64{500e3, 700e3, 300e3})
	want := FrequencyRoles{Low: 2, Mid: 0, High: 1, SortedHz: []float64{300e3, 500e3, 700e3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assignRoles mismatch (-want +got):\n%s", diff)
	}
}

// TestIRLSRefine_HuberGatesOnSigmaUnits: the robust reweighting must key
// on the residual in sigma units, so a residual far below kappa sigma is
// left at full weight while a genuine outlier is pulled down.
func TestIRLSRefine_HuberGatesOnSigmaUnits(t *testing.T) {
	ambV := []float64{5, 5, 5}
	const noise = 0.1 // per-observation sigma, m/s
	mk := func(vels ...float64) *pixelScratch {
		px := &pixelScratch{
			phase: make([]float64, len(vels)),
			w:     make([]float64, len(vels)),
			resid: make([]float64, len(vels)),
		}
		for i, v := range vels {
			px.phase[i] = velocityToPhase(v, ambV[i])
			px.w[i] = 1 / (noise * noise)
		}
		return px
	}
	huber := DefaultUnwrapOptions()
	plain := DefaultUnwrapOptions()
	plain.UseHuber = false

	// One observation off by 1e-6 sigma: nominal data. The robust path
	// must agree with the plain weighted mean, std included.
	vh, sh, _ := irlsRefine(mk(0.3, 0.3, 0.3+1e-7), ambV, 0.3, huber)
	vp, sp, _ := irlsRefine(mk(0.3, 0.3, 0.3+1e-7), ambV, 0.3, plain)
	if math.Abs(sh-sp) > 1e-12 {
		t.Errorf("huber inflated std on nominal data: %v vs %v", sh, sp)
	}
	if math.Abs(vh-vp) > 1e-12 {
		t.Errorf("huber moved the estimate on nominal data: %v vs %v", vh, vp)
	}

	// One observation off by 10 sigma: a wrap-level outlier. The robust
	// estimate stays near the two agreeing observations, with the loss
	// of effective weight showing up as a larger std.
	vh, sh, _ = irlsRefine(mk(0.3, 0.3, 1.3), ambV, 0.3, huber)
	vp, sp, _ = irlsRefine(mk(0.3, 0.3, 1.3), ambV, 0.3, plain)
	if math.Abs(vp-(0.3+1.0/3)) > 1e-9 {
		t.Fatalf("plain weighted mean = %v, want %v", vp, 0.3+1.0/3)
	}
	if vh <= 0.3 || vh >= 0.4 {
		t.Errorf("outlier pulled robust estimate to %v, want near 0.3", vh)
	}
	if !(sh > sp) {
		t.Errorf("downweighting should grow std: huber %v vs plain %v", sh, sp)
	}
}

func TestUnwrapBeam_NoHuber(t *testing.T) {
	phase, correl := SynthBeamCapture(SynthOptions{R: 2, T: 4, Velocity: func(_, _ int) float64 { return -0.3 }, Correl: 80}, testFreqs, testAcq)
	opts := DefaultUnwrapOptions()
	opts.UseHuber = false

	res, err := UnwrapBeam(phase, correl, testFreqs, testAcq, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.Velocity.At(0, 0); math.Abs(got+0.3) > 1e-9 {
		t.Errorf("velocity = %v, want -0.3", got)
	}
}
