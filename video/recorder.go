package video

import (
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Recorder writes annotated frames to a video file
type Recorder struct {
	writer *gocv.VideoWriter
	path   string
	frames int
}

// NewRecorder opens path for width x height colour frames at fps using an
// MJPG stream, which every OpenCV build can write.
func NewRecorder(path string, fps float64, width, height int) (*Recorder, error) {
	writer, err := gocv.VideoWriterFile(path, "MJPG", fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "opening video writer %s", path)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, errors.Errorf("video writer %s did not open", path)
	}
	debugMsg("RECORDER", fmt.Sprintf("writing %dx%d @ %.1f fps to %s", width, height, fps, path))
	return &Recorder{writer: writer, path: path}, nil
}

// Write appends one frame
func (r *Recorder) Write(frame gocv.Mat) error {
	if err := r.writer.Write(frame); err != nil {
		return errors.Wrap(err, "writing frame")
	}
	r.frames++
	return nil
}

// Close finalises the file
func (r *Recorder) Close() error {
	debugMsg("RECORDER", fmt.Sprintf("closing %s after %d frames", r.path, r.frames))
	return r.writer.Close()
}
