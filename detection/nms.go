package detection

import (
	"image"
	"math"
	"sort"

	"lanecam/vehicle"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// suppress runs OpenCV non-maximum suppression separately for each class, so
// a car box never hides an overlapping truck box. Survivors come back by
// descending confidence.
func suppress(dets []vehicle.Detection, minConfidence, nmsThreshold float64) []vehicle.Detection {
	var classes []int
	byClass := make(map[int][]int)
	for i, d := range dets {
		if _, seen := byClass[d.ClassID]; !seen {
			classes = append(classes, d.ClassID)
		}
		byClass[d.ClassID] = append(byClass[d.ClassID], i)
	}

	kept := make([]vehicle.Detection, 0, len(dets))
	for _, class := range classes {
		members := byClass[class]
		boxes := make([]image.Rectangle, len(members))
		scores := make([]float32, len(members))
		for j, idx := range members {
			boxes[j] = toRectangle(dets[idx].Box)
			scores[j] = float32(dets[idx].Confidence)
		}
		for _, j := range gocv.NMSBoxes(boxes, scores, float32(minConfidence), float32(nmsThreshold)) {
			kept = append(kept, dets[members[j]])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	return kept
}

func toRectangle(box r2.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(box.X.Lo)), int(math.Round(box.Y.Lo)),
		int(math.Round(box.X.Hi)), int(math.Round(box.Y.Hi)),
	)
}
