package tracking

import (
	"lanecam/vehicle"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kalman parameters for an 8-D constant-velocity box state, one step per
// frame and no control input
const (
	kalmanDT        = 1.0
	kalmanStdDevA   = 2.0
	kalmanStdDevPos = 0.1
	kalmanStdDevDim = 0.1
)

// track is one identity. predicted is the Kalman prior for the next frame,
// or the first box until the track has been predicted once.
type track struct {
	id        uuid.UUID
	predicted r2.Rect
	noMatch   int
	kf        *kalman_filter.KalmanBBox
}

func newTrack(d vehicle.Detection) *track {
	c, size := d.Box.Center(), d.Box.Size()
	kf := kalman_filter.NewKalmanBBox(
		kalmanDT, 0, 0, 0, 0,
		kalmanStdDevA, kalmanStdDevPos, kalmanStdDevPos, kalmanStdDevDim, kalmanStdDevDim,
		kalman_filter.WithStateBBox(c.X, c.Y, size.X, size.Y),
	)
	return &track{
		id:        uuid.New(),
		predicted: d.Box,
		kf:        kf,
	}
}

func (t *track) predict() {
	t.kf.Predict()
	cx, cy, w, h := t.kf.GetState()
	t.predicted = r2.RectFromCenterSize(r2.Point{X: cx, Y: cy}, r2.Point{X: w, Y: h})
}

func (t *track) update(d vehicle.Detection) error {
	c, size := d.Box.Center(), d.Box.Size()
	if err := t.kf.Update(c.X, c.Y, size.X, size.Y); err != nil {
		return errors.Wrap(err, "kalman update")
	}
	t.noMatch = 0
	return nil
}
