// Package speed estimates real-world vehicle speed from the bottom-centre of
// tracked boxes projected onto the calibrated ground plane.
package speed

import (
	"fmt"
	"math"
	"sync"

	"lanecam/calibration"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

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

// Sample is one ground-plane position of a track, in meters
type Sample struct {
	Frame int
	X, Y  float64
}

// Estimator keeps an append-only position history per track and derives speed
// from the first and last samples. Histories are never pruned during a session.
type Estimator struct {
	mu      sync.RWMutex
	fps     float64
	h       *calibration.Homography
	frame   int
	history map[uuid.UUID][]Sample
}

// New creates an estimator for a stream running at fps frames per second
func New(fps float64, h *calibration.Homography) (*Estimator, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, errors.Errorf("invalid fps %v", fps)
	}
	if h == nil {
		return nil, errors.New("nil homography")
	}
	return &Estimator{
		fps:     fps,
		h:       h,
		history: make(map[uuid.UUID][]Sample),
	}, nil
}

// Update records the track's bottom-centre ground position at the current
// frame index.
func (e *Estimator) Update(id uuid.UUID, box r2.Rect) {
	foot := r2.Point{X: box.Center().X, Y: box.Hi().Y}
	ground, ok := e.h.Project(foot)
	if !ok {
		debugMsg("SPEED", fmt.Sprintf("point (%.1f, %.1f) has no ground position, sample skipped", foot.X, foot.Y), id.String())
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history[id] = append(e.history[id], Sample{Frame: e.frame, X: ground.X, Y: ground.Y})
}

// ComputeSpeed returns the average speed in km/h between the first and last
// samples of the track, rounded to three decimals. ok is false with fewer than
// two samples or when no time has elapsed between them.
func (e *Estimator) ComputeSpeed(id uuid.UUID) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	samples := e.history[id]
	if len(samples) < 2 {
		return 0, false
	}
	first, last := samples[0], samples[len(samples)-1]
	elapsed := float64(last.Frame-first.Frame) / e.fps
	if elapsed <= 0 {
		return 0, false
	}
	dist := math.Hypot(last.X-first.X, last.Y-first.Y)
	return round3(dist / elapsed * 3.6), true
}

// AdvanceFrame moves the frame index forward by one. The pipeline calls it
// exactly once per processed frame.
func (e *Estimator) AdvanceFrame() {
	e.mu.Lock()
	e.frame++
	e.mu.Unlock()
}

// FrameIndex returns the index that the next Update will be stamped with
func (e *Estimator) FrameIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frame
}

// History returns a copy of the samples recorded for id
func (e *Estimator) History(id uuid.UUID) []Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	samples := e.history[id]
	if len(samples) == 0 {
		return nil
	}
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out
}

// Tracks returns how many tracks have at least one sample
func (e *Estimator) Tracks() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history)
}

// FPS returns the frame rate the estimator converts frame deltas with
func (e *Estimator) FPS() float64 {
	return e.fps
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
