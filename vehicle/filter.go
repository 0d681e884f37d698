package vehicle

import (
	"lanecam/zones"
)

// FilterVehicles keeps only detections whose class is a vehicle class
func FilterVehicles(dets []Detection) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if IsVehicle(d.ClassID) {
			out = append(out, d)
		}
	}
	return out
}

// Filter keeps vehicle-class detections that overlap the lane trapezoid of
// set by at least minOverlap. Duplicate boxes are expected to be suppressed
// by the detector before this runs.
func Filter(dets []Detection, set zones.Set, minOverlap float64) []Detection {
	out := FilterVehicles(dets)
	kept := out[:0]
	for _, d := range out {
		if zones.InTrapezoid(d.Box, set, minOverlap) {
			kept = append(kept, d)
		}
	}
	return kept
}
