// Package dop implements the MFDop velocity processing engine: multi-frequency
// phase unwrapping, single-beam velocity estimation, and beam-to-Cartesian
// geometric inversion for laboratory flow captures.
//
// All processing is strictly batch: inputs are fully materialised cubes of
// per-ping phase and correlation, outputs are velocity fields with companion
// uncertainty. Missing or rejected data is NaN end to end; per-pixel trouble
// never raises an error.
package dop

import "math"

// Cube is a dense range × time × frequency grid for one beam channel.
// The backing slice is row-major in (range, time, frequency) order.
// Cubes handed to the pipeline are treated as immutable inputs.
type Cube struct {
	R, T, F int
	data    []float64
}

// NewCube allocates a zero-filled cube.
func NewCube(r, t, f int) *Cube {
	return &Cube{R: r, T: t, F: f, data: make([]float64, r*t*f)}
}

// NewCubeFilled allocates a cube with every cell set to v.
func NewCubeFilled(r, t, f int, v float64) *Cube {
	c := NewCube(r, t, f)
	for i := range c.data {
		c.data[i] = v
	}
	return c
}

func (c *Cube) idx(r, t, f int) int { return (r*c.T+t)*c.F + f }

// At returns the value at (range r, time t, frequency f).
func (c *Cube) At(r, t, f int) float64 { return c.data[c.idx(r, t, f)] }

// Set stores v at (range r, time t, frequency f).
func (c *Cube) Set(r, t, f int, v float64) { c.data[c.idx(r, t, f)] = v }

// SameShape reports whether o has identical dimensions.
func (c *Cube) SameShape(o *Cube) bool {
	return o != nil && c.R == o.R && c.T == o.T && c.F == o.F
}

// Field is a dense range × time plane (velocity, uncertainty, wrap counts).
type Field struct {
	R, T int
	data []float64
}

// NewField allocates a zero-filled field.
func NewField(r, t int) *Field {
	return &Field{R: r, T: t, data: make([]float64, r*t)}
}

// NewFieldFilled allocates a field with every cell set to v.
func NewFieldFilled(r, t int, v float64) *Field {
	f := NewField(r, t)
	for i := range f.data {
		f.data[i] = v
	}
	return f
}

// At returns the value at (range r, time t).
func (f *Field) At(r, t int) float64 { return f.data[r*f.T+t] }

// Set stores v at (range r, time t).
func (f *Field) Set(r, t int, v float64) { f.data[r*f.T+t] = v }

// Fill sets every cell to v.
func (f *Field) Fill(v float64) {
	for i := range f.data {
		f.data[i] = v
	}
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	c := NewField(f.R, f.T)
	copy(c.data, f.data)
	return c
}

// CountFinite returns the number of non-NaN cells.
func (f *Field) CountFinite() int {
	n := 0
	for _, v := range f.data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// IntField is a dense range × time plane of counters (IRLS iterations).
type IntField struct {
	R, T int
	data []int
}

// NewIntField allocates a zero-filled integer field.
func NewIntField(r, t int) *IntField {
	return &IntField{R: r, T: t, data: make([]int, r*t)}
}

// At returns the value at (range r, time t).
func (f *IntField) At(r, t int) int { return f.data[r*f.T+t] }

// Set stores v at (range r, time t).
func (f *IntField) Set(r, t int, v int) { f.data[r*f.T+t] = v }

// wrapPhase wraps an angle in radians into (-pi, pi].
func wrapPhase(p float64) float64 {
	w := math.Mod(p+math.Pi, 2*math.Pi)
	if w <= 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}

// wrapToHalf wraps x into [-span/2, span/2) by whole multiples of span.
func wrapToHalf(x, span float64) float64 {
	w := x - span*math.Round(x/span)
	if w >= span/2 {
		w -= span
	}
	return w
}
