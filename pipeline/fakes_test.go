package pipeline

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lanecam/alert"
	"lanecam/calibration"
	"lanecam/speed"
	"lanecam/vehicle"
	"lanecam/zones"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// countingSource yields 0, 1, 2, ... up to limit frames, or forever when
// limit is negative.
type countingSource struct {
	limit  int
	next   atomic.Int64
	closes atomic.Int32
}

func (s *countingSource) Read() (int, error) {
	n := s.next.Load()
	if s.limit >= 0 && n >= int64(s.limit) {
		return 0, io.EOF
	}
	s.next.Add(1)
	return int(n), nil
}

func (s *countingSource) Close() error {
	s.closes.Add(1)
	return nil
}

// laneDetector reports one car per frame at the box returned by at. Frames for
// which at returns false have no detections.
type laneDetector struct {
	at   func(frame int) (x1, y1, x2, y2 float64, ok bool)
	fail func(frame int) error
	gate func(frame int)
}

func (d *laneDetector) Detect(frame int, _ zones.Set) ([]vehicle.Detection, error) {
	if d.gate != nil {
		d.gate(frame)
	}
	if d.fail != nil {
		if err := d.fail(frame); err != nil {
			return nil, err
		}
	}
	if d.at == nil {
		return nil, nil
	}
	x1, y1, x2, y2, ok := d.at(frame)
	if !ok {
		return nil, nil
	}
	return []vehicle.Detection{{Box: vehicle.NewBox(x1, y1, x2, y2), ClassID: vehicle.ClassCar, Confidence: 0.9}}, nil
}

// fixedTracker gives the i-th detection of every frame the same identity
type fixedTracker struct {
	ids []uuid.UUID
}

func (t *fixedTracker) Update(dets []vehicle.Detection) ([]vehicle.Track, error) {
	for len(t.ids) < len(dets) {
		t.ids = append(t.ids, uuid.New())
	}
	out := make([]vehicle.Track, len(dets))
	for i, d := range dets {
		out[i] = vehicle.Track{ID: t.ids[i], Box: d.Box, ClassID: d.ClassID}
	}
	return out, nil
}

// markAnnotator negates the frame so tests can tell annotated frames apart
type markAnnotator struct {
	calls atomic.Int32
}

func (a *markAnnotator) Annotate(frame int, _ zones.Set, _ []alert.Vehicle, _ alert.Severity) int {
	a.calls.Add(1)
	return -frame - 1
}

type releaseLog struct {
	mu     sync.Mutex
	frames []int
}

func (r *releaseLog) release(f int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *releaseLog) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.frames...)
}

func newEstimator(t *testing.T) *speed.Estimator {
	t.Helper()
	h, err := calibration.Default()
	require.NoError(t, err)
	e, err := speed.New(30, h)
	require.NoError(t, err)
	return e
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.PushTimeout = 200 * time.Millisecond
	cfg.PopTimeout = 20 * time.Millisecond
	cfg.PausePoll = 5 * time.Millisecond
	cfg.ReadInterval = 0
	return cfg
}

// drain polls the session until it finishes and returns everything delivered
func drain[F any](t *testing.T, s *Session[F]) []Output[F] {
	t.Helper()
	var outs []Output[F]
	deadline := time.After(5 * time.Second)
	for {
		if out, ok := s.Poll(); ok {
			outs = append(outs, out)
			continue
		}
		select {
		case <-s.Done():
			for {
				out, ok := s.Poll()
				if !ok {
					return outs
				}
				outs = append(outs, out)
			}
		case <-deadline:
			t.Fatal("session did not finish")
			return outs
		case <-time.After(time.Millisecond):
		}
	}
}
