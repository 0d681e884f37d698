package detection

import (
	"fmt"
	"strings"

	"lanecam/vehicle"
	"lanecam/zones"

	"gocv.io/x/gocv"
)

// VehicleDetector adapts an InferenceProvider to the pipeline: it keeps the
// vehicle classes and drops boxes off the lane.
type VehicleDetector struct {
	provider   InferenceProvider
	minOverlap float64
	verbose    bool
}

// NewVehicleDetector wraps provider. minOverlap is the trapezoid pre-filter
// threshold.
func NewVehicleDetector(provider InferenceProvider, minOverlap float64) *VehicleDetector {
	classes := make([]string, 0, len(vehicle.ClassIDs()))
	for _, id := range vehicle.ClassIDs() {
		classes = append(classes, vehicle.ClassName(id))
	}
	debugMsg("YOLO", fmt.Sprintf("tracking classes %s, trapezoid overlap >= %.2f", strings.Join(classes, ","), minOverlap))
	return &VehicleDetector{provider: provider, minOverlap: minOverlap}
}

// SetVerbose logs the per-frame detection counts
func (d *VehicleDetector) SetVerbose(v bool) {
	d.verbose = v
}

// Detect returns the lane vehicles in a prepared frame
func (d *VehicleDetector) Detect(frame gocv.Mat, set zones.Set) ([]vehicle.Detection, error) {
	raw, err := d.provider.Detect(frame)
	if err != nil {
		return nil, err
	}
	dets := vehicle.Filter(raw, set, d.minOverlap)
	if d.verbose {
		debugMsg("YOLO", fmt.Sprintf("%d raw boxes, %d lane vehicles", len(raw), len(dets)))
	}
	return dets, nil
}
