package dop

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMainHeadBeams_CanonicalOrder(t *testing.T) {
	beams := MainHeadBeams(25, 0.1)
	order, err := canonicalOrder(beams, mainHeadOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, bi := range order {
		if beams[bi].Name != mainHeadOrder[i] {
			t.Errorf("slot %d: got %q, want %q", i, beams[bi].Name, mainHeadOrder[i])
		}
	}

	// Shuffled input still maps onto the canonical slots.
	shuffled := []Beam{beams[3], beams[0], beams[4], beams[1], beams[2]}
	order, err = canonicalOrder(shuffled, mainHeadOrder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shuffled[order[0]].Name != BeamCenter {
		t.Errorf("slot 0 should be the centre beam, got %q", shuffled[order[0]].Name)
	}

	// A missing required beam is a ConfigError.
	if _, err = canonicalOrder(beams[:4], mainHeadOrder); err == nil {
		t.Error("expected ConfigError for missing beam")
	}
}

func TestDesignMatrix_CenterBeamVertical(t *testing.T) {
	a := DesignMatrix(MainHeadBeams(25, 0.1), 0, 0, 0)
	r, c := a.Dims()
	if r != 5 || c != 3 {
		t.Fatalf("design matrix is %dx%d, want 5x3", r, c)
	}
	// Centre beam sees only w.
	if math.Abs(a.At(0, 0)) > 1e-12 || math.Abs(a.At(0, 1)) > 1e-12 || math.Abs(a.At(0, 2)-1) > 1e-12 {
		t.Errorf("centre row = [%v %v %v], want [0 0 1]", a.At(0, 0), a.At(0, 1), a.At(0, 2))
	}
	// Every row is a unit vector.
	for i := 0; i < 5; i++ {
		n := math.Sqrt(a.At(i, 0)*a.At(i, 0) + a.At(i, 1)*a.At(i, 1) + a.At(i, 2)*a.At(i, 2))
		if math.Abs(n-1) > 1e-12 {
			t.Errorf("row %d norm = %v, want 1", i, n)
		}
	}
}

func TestDesignMatrix_FullRank(t *testing.T) {
	a := DesignMatrix(MainHeadBeams(25, 0.1), 0, 0, 0)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		t.Fatal("SVD failed")
	}
	s := svd.Values(nil)
	if s[2] < 1e-6 {
		t.Errorf("design matrix near rank-deficient: singular values %v", s)
	}
}

func TestDesignMatrix_YawRotatesHorizontalOnly(t *testing.T) {
	base := DesignMatrix(MainHeadBeams(25, 0.1), 0, 0, 0)
	yawed := DesignMatrix(MainHeadBeams(25, 0.1), 0, 0, 90)
	for i := 0; i < 5; i++ {
		// w sensitivity is untouched by yaw.
		if math.Abs(base.At(i, 2)-yawed.At(i, 2)) > 1e-12 {
			t.Errorf("row %d: yaw changed vertical component", i)
		}
	}
	// 90 degree yaw maps the east beam's x sensitivity onto y.
	if math.Abs(base.At(1, 0)-yawed.At(1, 1)) > 1e-12 {
		t.Errorf("yaw rotation wrong: base x %v, yawed y %v", base.At(1, 0), yawed.At(1, 1))
	}
}

func TestTiltRotation(t *testing.T) {
	if got := tiltRotation(0, 0); got != identityRot() {
		t.Errorf("zero pitch/roll should be identity, got %v", got)
	}

	// The rotation must map the tilted transducer normal back to vertical.
	for _, c := range []struct{ pitch, roll float64 }{{5, 0}, {0, -3}, {7, 4}, {-10, 12}} {
		p := c.pitch * math.Pi / 180
		r := c.roll * math.Pi / 180
		n := [3]float64{math.Sin(p) * math.Cos(r), -math.Sin(r), math.Cos(p) * math.Cos(r)}
		got := tiltRotation(c.pitch, c.roll).apply(n)
		if math.Abs(got[0]) > 1e-9 || math.Abs(got[1]) > 1e-9 || math.Abs(got[2]-1) > 1e-9 {
			t.Errorf("pitch=%v roll=%v: rotated normal = %v, want z-hat", c.pitch, c.roll, got)
		}
	}
}

func TestTiltRotation_IsProperRotation(t *testing.T) {
	m := tiltRotation(7, -4)
	// det = 1 for a proper rotation.
	det := m[0]*(m[4]*m[8]-m[5]*m[7]) - m[1]*(m[3]*m[8]-m[5]*m[6]) + m[2]*(m[3]*m[7]-m[4]*m[6])
	if math.Abs(det-1) > 1e-9 {
		t.Errorf("det = %v, want 1", det)
	}
}
