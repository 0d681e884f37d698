package pipeline

import (
	"time"

	"lanecam/alert"
	"lanecam/speed"
	"lanecam/vehicle"
	"lanecam/zones"

	"github.com/pkg/errors"
)

// Source yields raw frames. Any error, io.EOF included, ends the stream.
type Source[F any] interface {
	Read() (F, error)
	Close() error
}

// Preparer brings a raw frame to the canonical processing size and supplies
// the zone layout for it. On success it owns raw and must release it if it
// returns a different frame; on error the session releases raw.
type Preparer[F any] interface {
	Prepare(raw F) (F, zones.Set, error)
}

// Detector finds vehicles in a prepared frame
type Detector[F any] interface {
	Detect(frame F, set zones.Set) ([]vehicle.Detection, error)
}

// Tracker assigns persistent identities to a frame's detections
type Tracker interface {
	Update(dets []vehicle.Detection) ([]vehicle.Track, error)
}

// Annotator draws the hazard readings onto a frame. It must not change any
// computed value; it may draw in place and return frame.
type Annotator[F any] interface {
	Annotate(frame F, set zones.Set, vs []alert.Vehicle, status alert.Severity) F
}

// Deps are the collaborators of one session. Preparer, Annotator, Notifier
// and Release are optional.
type Deps[F any] struct {
	Source    Source[F]
	Preparer  Preparer[F]
	Detector  Detector[F]
	Tracker   Tracker
	Estimator *speed.Estimator
	Annotator Annotator[F]
	Notifier  *alert.Notifier
	// Release frees a frame the session drops instead of delivering
	Release func(F)
}

func (d Deps[F]) validate() error {
	switch {
	case d.Source == nil:
		return errors.New("pipeline: nil source")
	case d.Detector == nil:
		return errors.New("pipeline: nil detector")
	case d.Tracker == nil:
		return errors.New("pipeline: nil tracker")
	case d.Estimator == nil:
		return errors.New("pipeline: nil speed estimator")
	}
	return nil
}

// Config sizes the queues and bounds every wait in the workers
type Config struct {
	InputCapacity  int
	OutputCapacity int
	PushTimeout    time.Duration // reader wait for input space before dropping
	PopTimeout     time.Duration // processor wait for a frame before rechecking state
	PausePoll      time.Duration
	ReadInterval   time.Duration // reader pacing after each frame
	MinOverlap     float64
	Thresholds     alert.Thresholds
	// Zones is used when there is no Preparer
	Zones zones.Set
}

// DefaultConfig returns the stock queue sizes and timings
func DefaultConfig() Config {
	return Config{
		InputCapacity:  5,
		OutputCapacity: 5,
		PushTimeout:    time.Second,
		PopTimeout:     time.Second,
		PausePoll:      100 * time.Millisecond,
		ReadInterval:   10 * time.Millisecond,
		MinOverlap:     zones.DefaultMinOverlap,
		Thresholds:     alert.DefaultThresholds,
		Zones:          zones.DefaultSet(),
	}
}

// withDefaults fills unset fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InputCapacity <= 0 {
		c.InputCapacity = def.InputCapacity
	}
	if c.OutputCapacity <= 0 {
		c.OutputCapacity = def.OutputCapacity
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = def.PushTimeout
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = def.PopTimeout
	}
	if c.PausePoll <= 0 {
		c.PausePoll = def.PausePoll
	}
	if c.ReadInterval < 0 {
		c.ReadInterval = 0
	}
	if c.MinOverlap <= 0 {
		c.MinOverlap = def.MinOverlap
	}
	if c.Thresholds == (alert.Thresholds{}) {
		c.Thresholds = def.Thresholds
	}
	if c.Zones == nil {
		c.Zones = def.Zones
	}
	return c
}
