// Package vehicle holds the detection and track value types shared by the
// detector, the tracker and the hazard pipeline.
package vehicle

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
)

// COCO class ids the lane monitor treats as vehicles
const (
	ClassCar        = 2
	ClassMotorcycle = 3
	ClassBus        = 5
	ClassTruck      = 7
)

var classNames = map[int]string{
	ClassCar:        "car",
	ClassMotorcycle: "motorcycle",
	ClassBus:        "bus",
	ClassTruck:      "truck",
}

// IsVehicle reports whether a COCO class id is one of the vehicle classes
func IsVehicle(classID int) bool {
	_, ok := classNames[classID]
	return ok
}

// ClassName returns the label for a vehicle class, or "class N" otherwise
func ClassName(classID int) string {
	if name, ok := classNames[classID]; ok {
		return name
	}
	return fmt.Sprintf("class %d", classID)
}

// ClassIDs returns the vehicle class ids in ascending order
func ClassIDs() []int {
	return []int{ClassCar, ClassMotorcycle, ClassBus, ClassTruck}
}

// Detection is one detector output in pixel coordinates of the canonical frame
type Detection struct {
	Box        r2.Rect
	ClassID    int
	Confidence float64
}

// Track is a detection with an identity that persists across frames
type Track struct {
	ID      uuid.UUID
	Box     r2.Rect
	ClassID int
}

// NewBox builds a box from corner coordinates given in any order
func NewBox(x1, y1, x2, y2 float64) r2.Rect {
	return r2.RectFromPoints(r2.Point{X: x1, Y: y1}, r2.Point{X: x2, Y: y2})
}

// IoU is the intersection over union of two boxes, 0 when either is empty
func IoU(a, b r2.Rect) float64 {
	inter := a.Intersection(b)
	if inter.IsEmpty() {
		return 0
	}
	interArea := inter.X.Length() * inter.Y.Length()
	union := area(a) + area(b) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

func area(r r2.Rect) float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.X.Length() * r.Y.Length()
}
