// Package alert turns per-vehicle zone and speed readings into a tiered
// hazard status for the whole frame.
package alert

import (
	"fmt"

	"lanecam/units"
	"lanecam/vehicle"
	"lanecam/zones"
)

// Severity is the hazard level, ordered Green < Yellow < Red
type Severity int

const (
	Green Severity = iota
	Yellow
	Red
)

func (s Severity) String() string {
	switch s {
	case Green:
		return "GREEN"
	case Yellow:
		return "YELLOW"
	case Red:
		return "RED"
	default:
		return "UNKNOWN"
	}
}

// Thresholds are the per-zone speed limits in km/h. A vehicle at or below the
// limit of its zone gets the lower of the zone's two severities.
type Thresholds struct {
	Green  float64
	Yellow float64
	Red    float64
}

// DefaultThresholds are the stock lane limits
var DefaultThresholds = Thresholds{Green: 10, Yellow: 8, Red: 5}

// Severity maps a zone and speed to a hazard level. An unknown speed counts
// as below every threshold.
func (t Thresholds) Severity(zone zones.Name, kmph float64, known bool) Severity {
	if !known {
		kmph = 0
	}
	switch zone {
	case zones.Green:
		if kmph > t.Green {
			return Yellow
		}
		return Green
	case zones.Yellow:
		if kmph > t.Yellow {
			return Red
		}
		return Yellow
	case zones.Red:
		if kmph > t.Red {
			return Red
		}
		return Yellow
	default:
		return Green
	}
}

// Vehicle is one zone-classified track with its hazard reading for a frame
type Vehicle struct {
	Track      vehicle.Track
	Zone       zones.Name
	SpeedKmph  float64
	SpeedKnown bool
	Severity   Severity
}

// SpeedLabel renders the speed in the given display unit, or "Calculating"
// while the estimate is undefined.
func (v Vehicle) SpeedLabel(unit string) string {
	if !v.SpeedKnown {
		return "Speed: Calculating"
	}
	return fmt.Sprintf("Speed: %.3f %s", units.FromKmph(v.SpeedKmph, unit), units.Symbol(unit))
}

// Aggregate is the maximum severity across the frame's vehicles, Green when
// there are none.
func Aggregate(vehicles []Vehicle) Severity {
	status := Green
	for _, v := range vehicles {
		if v.Severity > status {
			status = v.Severity
		}
	}
	return status
}
