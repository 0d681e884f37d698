package zones

import "github.com/golang/geo/r2"

// Classify returns the first zone in Priority order whose overlap ratio with
// the box reaches minOverlap. Ties go to the higher priority zone, not the
// larger overlap. Missing zones are skipped.
func Classify(box r2.Rect, set Set, minOverlap float64) (Name, bool) {
	if BoxArea(box) <= 0 {
		return "", false
	}
	for _, name := range Priority {
		zone, ok := set.Get(name)
		if !ok {
			continue
		}
		if OverlapRatio(box, zone.Points) >= minOverlap {
			return name, true
		}
	}
	return "", false
}

// InTrapezoid is the coarse pre-filter against full_trapezoid. A set without
// a trapezoid lets every box through.
func InTrapezoid(box r2.Rect, set Set, minOverlap float64) bool {
	trapezoid, ok := set.Get(Trapezoid)
	if !ok {
		return true
	}
	return OverlapRatio(box, trapezoid.Points) >= minOverlap
}
