// Package config loads the JSON scene description: calibration points, lane
// zones, hazard thresholds and pipeline timing.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"lanecam/alert"
	"lanecam/calibration"
	"lanecam/zones"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// DefaultConfigPath is the path to the canonical scene defaults file
const DefaultConfigPath = "config/scene.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Point is an [x, y] pair as written in JSON
type Point [2]float64

// SceneConfig is the root of a scene file. Every field is optional; the Get*
// methods fall back to the stock lane layout.
type SceneConfig struct {
	FPS         *float64 `json:"fps,omitempty"`
	FrameWidth  *int     `json:"frame_width,omitempty"`
	FrameHeight *int     `json:"frame_height,omitempty"`
	MinOverlap  *float64 `json:"min_overlap,omitempty"`

	Thresholds  *ThresholdsConfig  `json:"thresholds_kmph,omitempty"`
	Calibration *CalibrationConfig `json:"calibration,omitempty"`
	Zones       map[string][]Point `json:"zones,omitempty"`
	Tracker     *TrackerConfig     `json:"tracker,omitempty"`
	Queues      *QueueConfig       `json:"queues,omitempty"`
}

// ThresholdsConfig holds the per-zone speed limits in km/h
type ThresholdsConfig struct {
	Green  *float64 `json:"green_zone,omitempty"`
	Yellow *float64 `json:"yellow_zone,omitempty"`
	Red    *float64 `json:"red_zone,omitempty"`
}

// CalibrationConfig pairs four pixel points with their ground positions in meters
type CalibrationConfig struct {
	PixelPoints []Point `json:"pixel_points"`
	MeterPoints []Point `json:"meter_points"`
}

// TrackerConfig tunes the IoU tracker
type TrackerConfig struct {
	MaxNoMatch *int     `json:"max_no_match,omitempty"`
	MinScore   *float64 `json:"min_score,omitempty"`
}

// QueueConfig sizes the frame queues and the worker wait bounds. Durations are
// strings like "100ms".
type QueueConfig struct {
	InputCapacity  *int    `json:"input_capacity,omitempty"`
	OutputCapacity *int    `json:"output_capacity,omitempty"`
	PushTimeout    *string `json:"push_timeout,omitempty"`
	PopTimeout     *string `json:"pop_timeout,omitempty"`
	PausePoll      *string `json:"pause_poll,omitempty"`
	ReadInterval   *string `json:"read_interval,omitempty"`
}

// LoadSceneConfig reads and validates a scene file. The path must end in
// .json and the file must be under 1MB.
func LoadSceneConfig(path string) (*SceneConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat config file")
	}
	if info.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return ParseSceneConfig(data)
}

// ParseSceneConfig decodes and validates a scene document
func ParseSceneConfig(data []byte) (*SceneConfig, error) {
	cfg := &SceneConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the working directory or
// its parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SceneConfig {
	for _, path := range []string{DefaultConfigPath, "../" + DefaultConfigPath} {
		if cfg, err := LoadSceneConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable
func (c *SceneConfig) Validate() error {
	if c.FPS != nil && !(*c.FPS > 0) {
		return errors.Errorf("fps must be positive, got %v", *c.FPS)
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return errors.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return errors.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}
	if c.MinOverlap != nil && (*c.MinOverlap <= 0 || *c.MinOverlap > 1) {
		return errors.Errorf("min_overlap must be in (0, 1], got %v", *c.MinOverlap)
	}

	if t := c.Thresholds; t != nil {
		for name, v := range map[string]*float64{"green_zone": t.Green, "yellow_zone": t.Yellow, "red_zone": t.Red} {
			if v != nil && *v < 0 {
				return errors.Errorf("threshold for %s must be non-negative, got %v", name, *v)
			}
		}
	}

	if c.Calibration != nil {
		if _, err := c.GetHomography(); err != nil {
			return err
		}
	}

	if c.Zones != nil {
		for name := range c.Zones {
			if !knownZone(zones.Name(name)) {
				return errors.Errorf("unknown zone %q", name)
			}
		}
		if err := c.GetZones().Validate(); err != nil {
			return errors.Wrap(err, "zones")
		}
	}

	if t := c.Tracker; t != nil {
		if t.MaxNoMatch != nil && *t.MaxNoMatch <= 0 {
			return errors.Errorf("tracker.max_no_match must be positive, got %d", *t.MaxNoMatch)
		}
		if t.MinScore != nil && (*t.MinScore < 0 || *t.MinScore >= 1) {
			return errors.Errorf("tracker.min_score must be in [0, 1), got %v", *t.MinScore)
		}
	}

	if q := c.Queues; q != nil {
		if q.InputCapacity != nil && *q.InputCapacity < 1 {
			return errors.Errorf("queues.input_capacity must be at least 1, got %d", *q.InputCapacity)
		}
		if q.OutputCapacity != nil && *q.OutputCapacity < 1 {
			return errors.Errorf("queues.output_capacity must be at least 1, got %d", *q.OutputCapacity)
		}
		for name, s := range map[string]*string{
			"push_timeout": q.PushTimeout, "pop_timeout": q.PopTimeout,
			"pause_poll": q.PausePoll, "read_interval": q.ReadInterval,
		} {
			if s == nil || *s == "" {
				continue
			}
			d, err := time.ParseDuration(*s)
			if err != nil {
				return errors.Wrapf(err, "invalid queues.%s %q", name, *s)
			}
			if d < 0 {
				return errors.Errorf("queues.%s must not be negative, got %s", name, d)
			}
		}
	}
	return nil
}

func knownZone(name zones.Name) bool {
	return name == zones.Trapezoid || name == zones.Red || name == zones.Yellow || name == zones.Green
}

// GetFPS returns the stream frame rate or the default of 30
func (c *SceneConfig) GetFPS() float64 {
	if c.FPS == nil {
		return 30
	}
	return *c.FPS
}

// GetFrameSize returns the canonical processing size or the default 760x480
func (c *SceneConfig) GetFrameSize() (int, int) {
	w, h := 760, 480
	if c.FrameWidth != nil {
		w = *c.FrameWidth
	}
	if c.FrameHeight != nil {
		h = *c.FrameHeight
	}
	return w, h
}

// GetMinOverlap returns the zone overlap threshold or zones.DefaultMinOverlap
func (c *SceneConfig) GetMinOverlap() float64 {
	if c.MinOverlap == nil {
		return zones.DefaultMinOverlap
	}
	return *c.MinOverlap
}

// GetThresholds merges configured limits over alert.DefaultThresholds
func (c *SceneConfig) GetThresholds() alert.Thresholds {
	t := alert.DefaultThresholds
	if c.Thresholds == nil {
		return t
	}
	if c.Thresholds.Green != nil {
		t.Green = *c.Thresholds.Green
	}
	if c.Thresholds.Yellow != nil {
		t.Yellow = *c.Thresholds.Yellow
	}
	if c.Thresholds.Red != nil {
		t.Red = *c.Thresholds.Red
	}
	return t
}

// GetHomography builds the pixel to meter transform from the configured
// points, or the stock calibration when none are set.
func (c *SceneConfig) GetHomography() (*calibration.Homography, error) {
	if c.Calibration == nil {
		return calibration.Default()
	}
	src, err := fourPoints(c.Calibration.PixelPoints)
	if err != nil {
		return nil, errors.Wrap(err, "calibration.pixel_points")
	}
	dst, err := fourPoints(c.Calibration.MeterPoints)
	if err != nil {
		return nil, errors.Wrap(err, "calibration.meter_points")
	}
	h, err := calibration.NewHomography(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "calibration")
	}
	return h, nil
}

func fourPoints(pts []Point) ([4]r2.Point, error) {
	var out [4]r2.Point
	if len(pts) != 4 {
		return out, errors.Errorf("need exactly 4 points, got %d", len(pts))
	}
	for i, p := range pts {
		out[i] = r2.Point{X: p[0], Y: p[1]}
	}
	return out, nil
}

// GetZones returns the configured zone polygons, or zones.DefaultSet
func (c *SceneConfig) GetZones() zones.Set {
	if len(c.Zones) == 0 {
		return zones.DefaultSet()
	}
	set := make(zones.Set, len(c.Zones))
	for name, pts := range c.Zones {
		poly := zones.Polygon{Name: zones.Name(name), Points: make([]r2.Point, len(pts))}
		for i, p := range pts {
			poly.Points[i] = r2.Point{X: p[0], Y: p[1]}
		}
		set[poly.Name] = poly
	}
	return set
}

// GetMaxNoMatch returns the tracker miss budget in frames, 30 by default
func (c *SceneConfig) GetMaxNoMatch() int {
	if c.Tracker == nil || c.Tracker.MaxNoMatch == nil {
		return 30
	}
	return *c.Tracker.MaxNoMatch
}

// GetMinScore returns the tracker match threshold, 0.1 by default
func (c *SceneConfig) GetMinScore() float64 {
	if c.Tracker == nil || c.Tracker.MinScore == nil {
		return 0.1
	}
	return *c.Tracker.MinScore
}

// GetInputCapacity returns the input queue size, 5 by default
func (c *SceneConfig) GetInputCapacity() int {
	if c.Queues == nil || c.Queues.InputCapacity == nil {
		return 5
	}
	return *c.Queues.InputCapacity
}

// GetOutputCapacity returns the output queue size, 5 by default
func (c *SceneConfig) GetOutputCapacity() int {
	if c.Queues == nil || c.Queues.OutputCapacity == nil {
		return 5
	}
	return *c.Queues.OutputCapacity
}

// GetPushTimeout returns how long the reader waits for input queue space
func (c *SceneConfig) GetPushTimeout() time.Duration {
	return c.queueDuration(func(q *QueueConfig) *string { return q.PushTimeout }, time.Second)
}

// GetPopTimeout returns how long the processor waits for a frame
func (c *SceneConfig) GetPopTimeout() time.Duration {
	return c.queueDuration(func(q *QueueConfig) *string { return q.PopTimeout }, time.Second)
}

// GetPausePoll returns the sleep between pause checks
func (c *SceneConfig) GetPausePoll() time.Duration {
	return c.queueDuration(func(q *QueueConfig) *string { return q.PausePoll }, 100*time.Millisecond)
}

// GetReadInterval returns the reader's pacing delay after each frame
func (c *SceneConfig) GetReadInterval() time.Duration {
	return c.queueDuration(func(q *QueueConfig) *string { return q.ReadInterval }, 10*time.Millisecond)
}

func (c *SceneConfig) queueDuration(field func(*QueueConfig) *string, def time.Duration) time.Duration {
	if c.Queues == nil {
		return def
	}
	s := field(c.Queues)
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
