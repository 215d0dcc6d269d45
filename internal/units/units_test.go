package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	for _, u := range []string{"", "mph", "furlongs"} {
		if IsValid(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}

func TestConvertVelocity(t *testing.T) {
	cases := []struct {
		unit string
		want float64
	}{
		{MPS, 0.25},
		{CMPS, 25},
		{MMPS, 250},
		{KPH, 0.9},
		{"bogus", 0.25}, // unknown units pass through as m/s
	}
	for _, c := range cases {
		got := ConvertVelocity(0.25, c.unit)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("ConvertVelocity(0.25, %q) = %v, want %v", c.unit, got, c.want)
		}
	}
}

func TestSuffix(t *testing.T) {
	if got := Suffix(CMPS); got != "cm/s" {
		t.Errorf("Suffix(CMPS) = %q", got)
	}
	if got := Suffix("bogus"); got != "m/s" {
		t.Errorf("Suffix fallback = %q, want m/s", got)
	}
}
