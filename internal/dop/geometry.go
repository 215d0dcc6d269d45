package dop

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Beam identifies one acoustic transducer channel and its mounting
// geometry. Angles are user-facing degrees; all internal trigonometry is
// in radians.
type Beam struct {
	// Name is the channel identifier used for canonical reordering.
	Name string
	// Elevation is the mounting angle from the vertical axis (degrees).
	// The centre beam is 0.
	Elevation float64
	// Azimuth is the beam's direction in the instrument frame (degrees).
	Azimuth float64
	// Baseline is the receiver's separation from the transmit centre
	// (metres); 0 selects the normal-incidence ambiguity formula.
	Baseline float64
	// Polarity is +1 when positive beam velocity means flow toward the
	// transducer, -1 for an inverted channel convention.
	Polarity float64
}

// Canonical beam names for the five-beam "Main" head, in the geometric
// order expected by the design-matrix derivation.
const (
	BeamCenter = "center"
	BeamEast   = "east"
	BeamNorth  = "north"
	BeamWest   = "west"
	BeamSouth  = "south"
)

// mainHeadOrder is the canonical geometric ordering for the Main head.
var mainHeadOrder = []string{BeamCenter, BeamEast, BeamNorth, BeamWest, BeamSouth}

// instrumentRotationDeg is the fixed 45 degree rotation between the
// instrument axes and the world axes.
const instrumentRotationDeg = 45

// MainHeadBeams returns the reference Main-head layout: a vertical centre
// beam and four outboard beams at 90 degree azimuth spacing, tilted
// elevationDeg from vertical with the given baseline separation.
func MainHeadBeams(elevationDeg, baseline float64) []Beam {
	return []Beam{
		{Name: BeamCenter, Elevation: 0, Azimuth: 0, Baseline: 0, Polarity: 1},
		{Name: BeamEast, Elevation: elevationDeg, Azimuth: 0, Baseline: baseline, Polarity: 1},
		{Name: BeamNorth, Elevation: elevationDeg, Azimuth: 90, Baseline: baseline, Polarity: 1},
		{Name: BeamWest, Elevation: elevationDeg, Azimuth: 180, Baseline: baseline, Polarity: 1},
		{Name: BeamSouth, Elevation: elevationDeg, Azimuth: 270, Baseline: baseline, Polarity: 1},
	}
}

// canonicalOrder maps the canonical geometric ordering onto the caller's
// beam slice, returning for each canonical slot the index into beams.
// A missing required beam is a ConfigError.
func canonicalOrder(beams []Beam, required []string) ([]int, error) {
	order := make([]int, 0, len(required))
	for _, name := range required {
		found := -1
		for i := range beams {
			if beams[i].Name == name {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, configErrorf("required beam %q is absent", name)
		}
		order = append(order, found)
	}
	return order, nil
}

// DesignMatrix builds the fixed N x 3 beam-to-Cartesian transform. Row i
// is the unit vector from the sample volume toward beam i's transducer
// (scaled by the channel polarity), so that beamVel_i = row_i . (u,v,w).
//
// The instrument-to-world 45 degree rotation and any yaw offset rotate the
// azimuths; nonzero pitch/roll apply an axis-angle rotation aligning the
// tilted transducer-plane normal back to vertical. All rotation parameters
// are degrees.
func DesignMatrix(beams []Beam, pitchDeg, rollDeg, yawDeg float64) *mat.Dense {
	tilt := tiltRotation(pitchDeg, rollDeg)
	a := mat.NewDense(len(beams), 3, nil)
	for i, b := range beams {
		el := b.Elevation * math.Pi / 180
		az := (b.Azimuth + instrumentRotationDeg + yawDeg) * math.Pi / 180
		d := [3]float64{
			math.Sin(el) * math.Cos(az),
			math.Sin(el) * math.Sin(az),
			math.Cos(el),
		}
		d = tilt.apply(d)
		pol := b.Polarity
		if pol == 0 {
			pol = 1
		}
		a.Set(i, 0, pol*d[0])
		a.Set(i, 1, pol*d[1])
		a.Set(i, 2, pol*d[2])
	}
	return a
}

// rot3 is a 3x3 rotation matrix in row-major order.
type rot3 [9]float64

func identityRot() rot3 {
	return rot3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func (m rot3) apply(v [3]float64) [3]float64 {
	return [3]float64{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// tiltRotation returns the rotation correcting a pitched/rolled mounting.
// The transducer-plane normal under pitch p (about y) and roll r (about x)
// is n = Ry(p) Rx(r) z-hat; the returned matrix rotates n back onto z-hat
// about the axis n x z-hat (axis-angle, Rodrigues form). Zero pitch and
// roll yield the identity.
func tiltRotation(pitchDeg, rollDeg float64) rot3 {
	if pitchDeg == 0 && rollDeg == 0 {
		return identityRot()
	}
	p := pitchDeg * math.Pi / 180
	r := rollDeg * math.Pi / 180
	// n = Ry(p) Rx(r) applied to (0,0,1).
	n := [3]float64{
		math.Sin(p) * math.Cos(r),
		-math.Sin(r),
		math.Cos(p) * math.Cos(r),
	}
	// Axis = n x z-hat, angle = acos(n . z-hat).
	axis := [3]float64{n[1], -n[0], 0}
	norm := math.Hypot(axis[0], axis[1])
	if norm < 1e-12 {
		return identityRot()
	}
	axis[0] /= norm
	axis[1] /= norm
	cos := n[2]
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	sin := math.Sqrt(1 - cos*cos)
	return rodrigues(axis, cos, sin)
}

// rodrigues builds the rotation matrix for a unit axis and angle given by
// its cosine and sine: R = cos I + sin [k]_x + (1-cos) k k^T.
func rodrigues(k [3]float64, cos, sin float64) rot3 {
	c1 := 1 - cos
	return rot3{
		cos + k[0]*k[0]*c1, k[0]*k[1]*c1 - k[2]*sin, k[0]*k[2]*c1 + k[1]*sin,
		k[1]*k[0]*c1 + k[2]*sin, cos + k[1]*k[1]*c1, k[1]*k[2]*c1 - k[0]*sin,
		k[2]*k[0]*c1 - k[1]*sin, k[2]*k[1]*c1 + k[0]*sin, cos + k[2]*k[2]*c1,
	}
}
