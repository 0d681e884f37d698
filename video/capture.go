// Package video adapts OpenCV capture, resizing, recording and JPEG
// snapshots to the pipeline's frame interfaces.
package video

import (
	"fmt"
	"image"
	"io"

	"lanecam/zones"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Global debug function for video package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, trackID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, trackID...)
	}
}

// maxEmptyReads is how many consecutive empty frames end the stream
const maxEmptyReads = 30

// CaptureSource reads frames from a file, stream URL or camera index
type CaptureSource struct {
	capture *gocv.VideoCapture
	input   string
}

// OpenCapture opens input. A bare number selects a local camera.
func OpenCapture(input string) (*CaptureSource, error) {
	capture, err := gocv.OpenVideoCapture(input)
	if err != nil {
		return nil, errors.Wrapf(err, "opening video source %q", input)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("video source %q did not open", input)
	}
	// Keep latency low on live streams.
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	debugMsg("CAPTURE", fmt.Sprintf("opened %s", input))
	return &CaptureSource{capture: capture, input: input}, nil
}

// Read returns the next non-empty 8-bit BGR frame, or io.EOF when the source
// is exhausted.
func (s *CaptureSource) Read() (gocv.Mat, error) {
	for empty := 0; empty < maxEmptyReads; empty++ {
		img := gocv.NewMat()
		if ok := s.capture.Read(&img); !ok {
			img.Close()
			return gocv.Mat{}, io.EOF
		}
		if img.Empty() || img.Type() != gocv.MatTypeCV8UC3 {
			img.Close()
			continue
		}
		return img, nil
	}
	return gocv.Mat{}, errors.Errorf("%d consecutive empty frames from %s", maxEmptyReads, s.input)
}

// FPS reports the source frame rate, 0 when unknown
func (s *CaptureSource) FPS() float64 {
	return s.capture.Get(gocv.VideoCaptureFPS)
}

// Close releases the capture device
func (s *CaptureSource) Close() error {
	debugMsg("CAPTURE", fmt.Sprintf("closing %s", s.input))
	return s.capture.Close()
}

// Release frees a frame dropped by the pipeline
func Release(frame gocv.Mat) {
	frame.Close()
}

// Resizer brings every frame to the canonical size and supplies the fixed
// zone layout.
type Resizer struct {
	width  int
	height int
	set    zones.Set
}

// NewResizer creates a preparer for width x height frames with zones set
func NewResizer(width, height int, set zones.Set) *Resizer {
	return &Resizer{width: width, height: height, set: set}
}

// Prepare resizes raw, closing it when a new frame is produced
func (r *Resizer) Prepare(raw gocv.Mat) (gocv.Mat, zones.Set, error) {
	if raw.Empty() {
		return raw, nil, errors.New("empty frame")
	}
	if raw.Cols() == r.width && raw.Rows() == r.height {
		return raw, r.set, nil
	}
	resized := gocv.NewMat()
	gocv.Resize(raw, &resized, image.Pt(r.width, r.height), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		resized.Close()
		return raw, nil, errors.Errorf("resize %dx%d -> %dx%d failed", raw.Cols(), raw.Rows(), r.width, r.height)
	}
	raw.Close()
	return resized, r.set, nil
}
