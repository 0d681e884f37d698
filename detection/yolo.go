package detection

import (
	"image"
	"math"
	"sync"

	"lanecam/vehicle"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// yoloNet is the network shared by the CPU and GPU providers. Rows of the
// output are [cx, cy, w, h, objectness, class scores...] normalised to the
// square letterboxed input.
type yoloNet struct {
	net           gocv.Net
	inputSize     int
	minConfidence float64
	nmsThreshold  float64
	mu            sync.Mutex
}

func (y *yoloNet) load(modelPath, configPath string, backend gocv.NetBackendType, target gocv.NetTargetType) error {
	y.net = gocv.ReadNet(modelPath, configPath)
	if y.net.Empty() {
		return errors.Errorf("failed to load YOLO network from %s and %s", modelPath, configPath)
	}
	y.net.SetPreferableBackend(backend)
	y.net.SetPreferableTarget(target)
	return nil
}

// letterbox describes how a frame was fitted into the square network input
type letterbox struct {
	scale    float64
	xOffset  float64
	yOffset  float64
	frameW   float64
	frameH   float64
	size     float64
	contentW int
	contentH int
}

func newLetterbox(frameW, frameH, size int) letterbox {
	scale := math.Min(float64(size)/float64(frameW), float64(size)/float64(frameH))
	cw := int(float64(frameW) * scale)
	ch := int(float64(frameH) * scale)
	return letterbox{
		scale:    scale,
		xOffset:  float64(size-cw) / 2,
		yOffset:  float64(size-ch) / 2,
		frameW:   float64(frameW),
		frameH:   float64(frameH),
		size:     float64(size),
		contentW: cw,
		contentH: ch,
	}
}

// toFrame maps a normalised network box back to frame pixels, clipped to the frame
func (l letterbox) toFrame(xNorm, yNorm, wNorm, hNorm float64) r2.Rect {
	cx := (xNorm*l.size - l.xOffset) / l.scale
	cy := (yNorm*l.size - l.yOffset) / l.scale
	w := wNorm * l.size / l.scale
	h := hNorm * l.size / l.scale
	box := r2.RectFromCenterSize(r2.Point{X: cx, Y: cy}, r2.Point{X: w, Y: h})
	return box.Intersection(r2.RectFromPoints(r2.Point{}, r2.Point{X: l.frameW, Y: l.frameH}))
}

// blob builds the letterboxed network input: the frame resized into the
// centre of a black square.
func (y *yoloNet) blob(frame gocv.Mat) (gocv.Mat, letterbox) {
	lb := newLetterbox(frame.Cols(), frame.Rows(), y.inputSize)

	boxed := gocv.NewMatWithSize(y.inputSize, y.inputSize, gocv.MatTypeCV8UC3)
	defer boxed.Close()
	boxed.SetTo(gocv.NewScalar(0, 0, 0, 0))

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(lb.contentW, lb.contentH), 0, 0, gocv.InterpolationLinear)

	x0, y0 := int(lb.xOffset), int(lb.yOffset)
	roi := boxed.Region(image.Rect(x0, y0, x0+lb.contentW, y0+lb.contentH))
	resized.CopyTo(&roi)
	roi.Close()

	return gocv.BlobFromImage(boxed, 1.0/255.0, image.Pt(y.inputSize, y.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false), lb
}

func (y *yoloNet) detect(frame gocv.Mat) ([]vehicle.Detection, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}
	y.mu.Lock()
	defer y.mu.Unlock()

	blob, lb := y.blob(frame)
	defer blob.Close()
	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	if output.Cols() <= 5 {
		return nil, errors.Errorf("unexpected network output shape %dx%d", output.Rows(), output.Cols())
	}

	var dets []vehicle.Detection
	for i := 0; i < output.Rows(); i++ {
		row := output.RowRange(i, i+1)
		scores := row.ColRange(5, row.Cols())
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(scores)
		confidence := float64(maxVal)

		if confidence >= y.minConfidence {
			box := lb.toFrame(
				float64(row.GetFloatAt(0, 0)),
				float64(row.GetFloatAt(0, 1)),
				float64(row.GetFloatAt(0, 2)),
				float64(row.GetFloatAt(0, 3)),
			)
			if !box.IsEmpty() {
				dets = append(dets, vehicle.Detection{Box: box, ClassID: maxLoc.X, Confidence: confidence})
			}
		}
		scores.Close()
		row.Close()
	}
	return suppress(dets, y.minConfidence, y.nmsThreshold), nil
}

func (y *yoloNet) close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
