// Package units provides shared constants and validation for the velocity
// units used in user-facing output. The pipeline itself works in m/s
// throughout; laboratory flows are conventionally reported in cm/s.
package units

// Unit constants
const (
	MPS  = "mps"
	CMPS = "cmps"
	MMPS = "mmps"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, CMPS, MMPS, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, cmps, mmps, kph"
}

// ConvertVelocity converts a velocity from meters per second to the target
// units. All pipeline outputs are stored in m/s.
func ConvertVelocity(velMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return velMPS
	case CMPS:
		return velMPS * 100
	case MMPS:
		return velMPS * 1000
	case KPH:
		return velMPS * 3.6
	default:
		return velMPS
	}
}

// Suffix returns the display suffix for a unit.
func Suffix(unit string) string {
	switch unit {
	case CMPS:
		return "cm/s"
	case MMPS:
		return "mm/s"
	case KPH:
		return "km/h"
	default:
		return "m/s"
	}
}
