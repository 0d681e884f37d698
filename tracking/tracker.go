// Package tracking assigns persistent identities to vehicle detections across
// frames with a Kalman-predicted IoU matcher.
package tracking

import (
	"container/heap"
	"fmt"
	"math"

	"lanecam/vehicle"

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

const (
	// DefaultMaxNoMatch is how many frames a track survives without a detection
	DefaultMaxNoMatch = 30
	// DefaultMinScore is the lowest combined score accepted as a match
	DefaultMinScore = 0.1
)

// Tracker matches each frame's detections to existing tracks by the combined
// IoU and centre-distance score against each track's predicted box. It is not
// safe for concurrent use; the pipeline calls it from one goroutine.
type Tracker struct {
	maxNoMatch int
	minScore   float64
	tracks     []*track
}

// New creates a tracker. maxNoMatch <= 0 and minScore < 0 fall back to the
// defaults.
func New(maxNoMatch int, minScore float64) *Tracker {
	if maxNoMatch <= 0 {
		maxNoMatch = DefaultMaxNoMatch
	}
	if minScore < 0 {
		minScore = DefaultMinScore
	}
	return &Tracker{maxNoMatch: maxNoMatch, minScore: minScore}
}

// NewDefault creates a tracker with DefaultMaxNoMatch and DefaultMinScore
func NewDefault() *Tracker {
	return New(DefaultMaxNoMatch, DefaultMinScore)
}

// Update matches dets against the live tracks and returns one Track per
// detection, in detection order. Unmatched detections start new tracks.
// Tracks missing for more than maxNoMatch frames are forgotten.
func (t *Tracker) Update(dets []vehicle.Detection) ([]vehicle.Track, error) {
	pq := &matchHeap{}
	heap.Init(pq)
	for i, d := range dets {
		best, bestScore := -1, 0.0
		for j, tr := range t.tracks {
			if s := score(d.Box, tr.predicted); s > bestScore {
				best, bestScore = j, s
			}
		}
		heap.Push(pq, &match{score: bestScore, det: i, track: best})
	}

	out := make([]vehicle.Track, len(dets))
	reserved := make(map[int]bool, len(t.tracks))
	var created []*track
	for pq.Len() > 0 {
		m := heap.Pop(pq).(*match)
		d := dets[m.det]
		if m.track >= 0 && m.score > t.minScore && !reserved[m.track] {
			tr := t.tracks[m.track]
			if err := tr.update(d); err != nil {
				return nil, errors.Wrapf(err, "updating track %s", tr.id)
			}
			reserved[m.track] = true
			out[m.det] = vehicle.Track{ID: tr.id, Box: d.Box, ClassID: d.ClassID}
			continue
		}
		tr := newTrack(d)
		created = append(created, tr)
		out[m.det] = vehicle.Track{ID: tr.id, Box: d.Box, ClassID: d.ClassID}
		debugMsg("TRACKER", fmt.Sprintf("new %s track at %v", vehicle.ClassName(d.ClassID), d.Box), tr.id.String())
	}

	live := t.tracks[:0]
	for j, tr := range t.tracks {
		if !reserved[j] {
			tr.noMatch++
		}
		if tr.noMatch > t.maxNoMatch {
			debugMsg("TRACKER", fmt.Sprintf("track lost after %d frames", tr.noMatch), tr.id.String())
			continue
		}
		tr.predict()
		live = append(live, tr)
	}
	for j := len(live); j < len(t.tracks); j++ {
		t.tracks[j] = nil
	}
	t.tracks = append(live, created...)
	return out, nil
}

// Len returns the number of live tracks, including ones currently unmatched
func (t *Tracker) Len() int {
	return len(t.tracks)
}

// Predicted returns where a live track is expected in the next frame
func (t *Tracker) Predicted(id uuid.UUID) (r2.Rect, bool) {
	for _, tr := range t.tracks {
		if tr.id == id {
			return tr.predicted, true
		}
	}
	return r2.EmptyRect(), false
}

// score favours IoU when the boxes overlap and falls back to a weaker
// centre-distance similarity otherwise.
func score(det, predicted r2.Rect) float64 {
	iou := vehicle.IoU(det, predicted)
	distance := det.Center().Sub(predicted.Center()).Norm()
	closeness := 1.0 / (1.0 + distance*0.01)
	if iou > 0.05 {
		return iou*0.8 + closeness*0.2
	}
	if math.IsNaN(closeness) {
		return 0
	}
	return closeness * 0.5
}
