// Package units converts estimated vehicle speeds into display units.
// Hazard thresholds are always evaluated in km/h; units only affect labels.
package units

import "strings"

// Unit constants
const (
	KMPH = "kmph"
	MPH  = "mph"
	MPS  = "mps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KMPH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, valid := range ValidUnits {
		if unit == valid {
			return true
		}
	}
	return false
}

// ValidUnitsString returns a comma-separated list for flag errors
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// FromKmph converts a speed in km/h to the target unit. Unknown units are
// left in km/h.
func FromKmph(kmph float64, target string) float64 {
	switch target {
	case MPH:
		return kmph / 1.609344
	case MPS:
		return kmph / 3.6
	default:
		return kmph
	}
}

// Symbol is the suffix printed after a converted speed
func Symbol(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case MPS:
		return "m/s"
	default:
		return "km/h"
	}
}
